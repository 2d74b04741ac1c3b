package cluster

import (
	"math"
	"math/rand"
)

// projectionSeed fixes the random projection matrix so that repeated runs
// over the same batch produce the same reduced space.
const projectionSeed = 42

// projectVectors applies a Gaussian random projection to the given vectors,
// reducing them to the requested number of components. Random projection
// approximately preserves pairwise distances (Johnson-Lindenstrauss), which
// is all the density clustering needs; centroids are still computed from
// the original vectors.
func projectVectors(vectors [][]float32, components int) [][]float32 {
	if len(vectors) == 0 {
		return vectors
	}

	dim := len(vectors[0])
	if components >= dim {
		return vectors
	}

	matrix := projectionMatrix(dim, components)
	scale := float32(1 / math.Sqrt(float64(components)))

	out := make([][]float32, len(vectors))

	for vi, v := range vectors {
		reduced := make([]float32, components)

		if len(v) == dim {
			for c := 0; c < components; c++ {
				var sum float32
				for d := 0; d < dim; d++ {
					sum += v[d] * matrix[d][c]
				}

				reduced[c] = sum * scale
			}
		}

		out[vi] = reduced
	}

	return out
}

// projectionMatrix builds a deterministic dim x components Gaussian matrix.
func projectionMatrix(dim, components int) [][]float32 {
	rng := rand.New(rand.NewSource(projectionSeed)) //nolint:gosec // deterministic projection, not cryptographic

	matrix := make([][]float32, dim)
	for d := range matrix {
		row := make([]float32, components)
		for c := range row {
			row[c] = float32(rng.NormFloat64())
		}

		matrix[d] = row
	}

	return matrix
}
