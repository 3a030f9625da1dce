package retrieval

import (
	"time"

	"supportbot/internal/vectorstore"
)

// metadata is the JSON document persisted next to the vector index.
type metadata struct {
	Docs      []string  `json:"docs"`
	Embedder  string    `json:"embedder"`
	Dimension int       `json:"dimension"`
	BuiltAt   time.Time `json:"built_at"`

	// IndexSHA256 is the hex checksum of the index artifact written with
	// this metadata.
	IndexSHA256 string `json:"index_sha256"`
}

// Snapshot is an immutable index/metadata pair. Document i is stored at
// ordinal i of the index.
type Snapshot struct {
	index vectorstore.Index
	meta  metadata
}

// Docs returns a copy of the indexed documents in ordinal order.
func (s *Snapshot) Docs() []string {
	return append([]string(nil), s.meta.Docs...)
}

// Len is the number of indexed vectors, always equal to len(Docs()).
func (s *Snapshot) Len() int { return s.index.Len() }

// Dimension is the length of every indexed vector.
func (s *Snapshot) Dimension() int { return s.index.Dimension() }

// Embedder names the model the index was built with.
func (s *Snapshot) Embedder() string { return s.meta.Embedder }

// BuiltAt is when the artifacts were written.
func (s *Snapshot) BuiltAt() time.Time { return s.meta.BuiltAt }
