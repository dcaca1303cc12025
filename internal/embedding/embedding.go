// Package embedding provides a pluggable interface for text embedding providers.
package embedding

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
// Implementations must be deterministic for identical input within a process.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	x, y := widen(a), widen(b)
	na, nb := floats.Norm(x, 2), floats.Norm(y, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(x, y) / (na * nb)
}

// Normalize returns a unit-length copy of v. A zero vector is returned as a zero copy.
func Normalize(v Vector) Vector {
	x := widen(v)
	out := make(Vector, len(v))
	n := floats.Norm(x, 2)
	if n == 0 || math.IsNaN(n) {
		return out
	}
	floats.Scale(1/n, x)
	for i, f := range x {
		out[i] = float32(f)
	}
	return out
}

// IsZero reports whether every component of v is zero.
func IsZero(v Vector) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}

func widen(v Vector) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
