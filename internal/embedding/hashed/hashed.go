package hashed

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"

	"supportbot/internal/embedding"
	"supportbot/internal/textutil"
)

// DefaultDimension matches the all-MiniLM-L6-v2 sentence model the policy
// corpus was originally indexed with.
const DefaultDimension = 384

// Embedder is a deterministic bag-of-words embedder using the hashing
// trick: every non-stopword token is hashed into one of dim buckets with a
// hash-derived sign, weighted by term frequency, and the result is L2
// normalized. It needs no vocabulary, so vectors built in one process are
// comparable with query vectors computed in another.
type Embedder struct {
	dim int
}

var _ embedding.Embedder = (*Embedder)(nil)

// New creates a hashing embedder. Non-positive dimensions fall back to
// DefaultDimension.
func New(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim}
}

func (e *Embedder) Name() string { return "hashed-" + strconv.Itoa(e.dim) }

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dim)
	tokens := textutil.Terms(text)
	if len(tokens) == 0 {
		return vec
	}
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	total := float64(len(tokens))
	for tok, count := range tf {
		bucket, sign := e.bucket(tok)
		vec[bucket] += float32(sign * float64(count) / total)
	}
	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func (e *Embedder) bucket(token string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(e.dim)), sign
}
