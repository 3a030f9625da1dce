// Package textutil holds the tokenizer, stopword list and sentence splitter
// shared by the embedder, summarizer and console.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	wordRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	stopwords = buildStopwords()
)

// Words returns the lower-cased word and number tokens of text.
func Words(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// Terms is Words with stopwords removed.
func Terms(text string) []string {
	raw := Words(text)
	out := raw[:0]
	for _, t := range raw {
		if IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Sentences splits text after runs of terminal punctuation that are
// followed by whitespace or the end of text, so decimals and addresses
// stay whole. An unterminated tail is kept as the last sentence.
func Sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if !isTerminator(r) {
			continue
		}
		for i < len(text) && isTerminator(rune(text[i])) {
			i++
		}
		if i < len(text) {
			if next, _ := utf8.DecodeRuneInString(text[i:]); !unicode.IsSpace(next) {
				continue
			}
		}
		out = appendSentence(out, text[start:i])
		start = i
	}
	return appendSentence(out, text[start:])
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func appendSentence(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

// TokenSet returns the distinct Words of text.
func TokenSet(text string) map[string]struct{} {
	tokens := Words(text)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// Overlap counts the distinct tokens of text that appear in set.
func Overlap(set map[string]struct{}, text string) int {
	score := 0
	for t := range TokenSet(text) {
		if _, ok := set[t]; ok {
			score++
		}
	}
	return score
}

func buildStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "i", "my", "me", "you", "your", "we", "our", "do", "does",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
