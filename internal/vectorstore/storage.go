package vectorstore

// Neighbor is one search hit: the ordinal of the stored vector and its
// squared Euclidean distance to the query.
type Neighbor struct {
	ID       int
	Distance float32
}

// Index stores an ordered set of fixed-dimension vectors and answers
// nearest-neighbor queries. Vector i keeps ordinal i for the lifetime of
// the index. Implementations are immutable after Build and safe for
// concurrent Search calls.
type Index interface {
	// Build replaces the contents of the index with vectors.
	// All vectors must share one non-zero dimension.
	Build(vectors [][]float32) error

	// Search returns up to k neighbors ordered by ascending distance.
	Search(query []float32, k int) ([]Neighbor, error)

	Len() int
	Dimension() int

	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// Factory returns an empty Index ready for Build or UnmarshalBinary.
type Factory func() Index
