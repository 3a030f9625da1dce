package corpus

import (
	"os"
	"strings"

	supporterr "supportbot/pkg/errors"
)

// Read loads the policy source at path and splits it into documents.
// An unreadable or empty source is reported as CorpusUnavailable.
func Read(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, supporterr.Wrap(err, supporterr.CodeCorpusUnavailable, "reading corpus", supporterr.FieldPath(path))
	}
	docs := Split(string(data))
	if len(docs) == 0 {
		return nil, supporterr.New(supporterr.CodeCorpusUnavailable, "corpus contains no documents", supporterr.FieldPath(path))
	}
	return docs, nil
}

// Split breaks text into paragraphs separated by blank lines. When that
// yields fewer than two paragraphs, every non-empty line becomes its own
// document instead.
func Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		if p := strings.TrimSpace(strings.Join(current, "\n")); p != "" {
			paragraphs = append(paragraphs, p)
		}
		current = current[:0]
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	if len(paragraphs) >= 2 {
		return paragraphs
	}

	var out []string
	for _, line := range lines {
		if l := strings.TrimSpace(line); l != "" {
			out = append(out, l)
		}
	}
	return out
}
