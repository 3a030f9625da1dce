package flat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"supportbot/internal/vectorstore"
)

const (
	// File header:
	//   0..7   magic "SBFLAT01"
	//   8..15  dim (uint64)
	//   16..23 count (uint64)
	headerSize = 24
	floatSize  = 4
)

var fileMagic = [8]byte{'S', 'B', 'F', 'L', 'A', 'T', '0', '1'}

// Index is an exact brute-force index over squared Euclidean distance.
// It is meant for small corpora where scanning every vector is cheap.
type Index struct {
	dim  int
	vecs [][]float32
}

var _ vectorstore.Index = (*Index)(nil)

// New returns an empty index.
func New() *Index { return &Index{} }

// Factory adapts New to vectorstore.Factory.
func Factory() vectorstore.Index { return New() }

func (i *Index) Build(vectors [][]float32) error {
	if len(vectors) == 0 {
		i.dim, i.vecs = 0, nil
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return errors.New("flat: zero-dimension vector")
	}
	vecs := make([][]float32, len(vectors))
	for j, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("flat: inconsistent vector dims %d vs %d at %d", len(v), dim, j)
		}
		vecs[j] = append([]float32(nil), v...)
	}
	i.dim = dim
	i.vecs = vecs
	return nil
}

func (i *Index) Search(query []float32, k int) ([]vectorstore.Neighbor, error) {
	if k <= 0 || len(i.vecs) == 0 {
		return nil, nil
	}
	if len(query) != i.dim {
		return nil, fmt.Errorf("flat: query dim %d != index dim %d", len(query), i.dim)
	}
	hits := make([]vectorstore.Neighbor, len(i.vecs))
	for j, v := range i.vecs {
		hits[j] = vectorstore.Neighbor{ID: j, Distance: squaredL2(query, v)}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].ID < hits[b].ID
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (i *Index) Len() int { return len(i.vecs) }

func (i *Index) Dimension() int { return i.dim }

func (i *Index) MarshalBinary() ([]byte, error) {
	out := make([]byte, headerSize+len(i.vecs)*i.dim*floatSize)
	copy(out[:8], fileMagic[:])
	binary.LittleEndian.PutUint64(out[8:16], uint64(i.dim))
	binary.LittleEndian.PutUint64(out[16:24], uint64(len(i.vecs)))
	off := headerSize
	for _, v := range i.vecs {
		for _, x := range v {
			binary.LittleEndian.PutUint32(out[off:], math.Float32bits(x))
			off += floatSize
		}
	}
	return out, nil
}

func (i *Index) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("flat: data too small for header: %d < %d", len(data), headerSize)
	}
	var mg [8]byte
	copy(mg[:], data[:8])
	if mg != fileMagic {
		return errors.New("flat: invalid header (magic mismatch)")
	}
	dim := binary.LittleEndian.Uint64(data[8:16])
	count := binary.LittleEndian.Uint64(data[16:24])
	if count > 0 && dim == 0 {
		return errors.New("flat: invalid header (dim=0)")
	}
	if dim > math.MaxInt32 {
		return fmt.Errorf("flat: invalid header (dim=%d)", dim)
	}
	// Division only: a crafted header must not overflow the size check.
	body := uint64(len(data) - headerSize)
	if count > 0 && (dim > body/floatSize || count > body/floatSize/dim) {
		return fmt.Errorf("flat: truncated: header declares %d vectors of dim %d", count, dim)
	}
	if want := count * dim * floatSize; body != want {
		return fmt.Errorf("flat: body is %d bytes, want %d", body, want)
	}
	vecs := make([][]float32, count)
	off := headerSize
	for j := range vecs {
		v := make([]float32, dim)
		for n := range v {
			v[n] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += floatSize
		}
		vecs[j] = v
	}
	if count == 0 {
		i.dim, i.vecs = int(dim), nil
		return nil
	}
	return i.Build(vecs)
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for n := range a {
		d := a[n] - b[n]
		sum += d * d
	}
	return sum
}
