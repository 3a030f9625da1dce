package embedding

import "context"

// Embedder converts text into fixed-dimension vectors. Implementations must
// return one vector per input, in input order, and keep Dimension stable
// for the lifetime of the value so that index and query vectors agree.
type Embedder interface {
	// Name identifies the model; it is recorded with a built index and
	// compared on load.
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
