package cluster

import (
	"github.com/viant/vec/search"
)

// NormalizeRows returns a copy of m where every row has unit L2 norm.
// Zero rows are copied through unchanged so callers never divide by zero.
// Euclidean distance between normalized rows is monotonic with cosine
// distance between the raw rows, which is why every clustering path that
// wants cosine geometry normalizes first.
func NormalizeRows(m [][]float32) [][]float32 {
	out := make([][]float32, len(m))
	for i, row := range m {
		out[i] = normalizeRow(row)
	}
	return out
}

func normalizeRow(row []float32) []float32 {
	dup := make([]float32, len(row))
	copy(dup, row)

	mag := search.Float32s(dup).Magnitude()
	if mag == 0 {
		return dup
	}
	for i := range dup {
		dup[i] = float32(float64(dup[i]) / float64(mag))
	}
	return dup
}
