// Package reduce compresses embeddings with an approximate PCA based on
// fixed-iteration power iteration. The result is deterministic for a given
// input and target dimension, but it is not an exact eigendecomposition.
package reduce

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Iterations is the fixed number of power iterations per component.
const Iterations = 100

// ErrRagged is returned when input vectors differ in length.
var ErrRagged = errors.New("reduce: vectors have different dimensions")

// Model is a fitted projection: the per-dimension mean and k unit components.
type Model struct {
	Mean       []float64   `json:"mean"`
	Components [][]float64 `json:"components"`
}

// Dim returns the input dimension the model expects.
func (m *Model) Dim() int { return len(m.Mean) }

// K returns the output dimension.
func (m *Model) K() int { return len(m.Components) }

// Project centers v and takes its dot product with every component.
func (m *Model) Project(v []float32) ([]float32, error) {
	if len(v) != len(m.Mean) {
		return nil, fmt.Errorf("project: got dim %d, model expects %d", len(v), len(m.Mean))
	}
	out := make([]float32, len(m.Components))
	for c, comp := range m.Components {
		var dot float64
		for j, x := range v {
			dot += (float64(x) - m.Mean[j]) * comp[j]
		}
		out[c] = float32(dot)
	}
	return out, nil
}

// Skip reports whether reduction is a no-op for count vectors of dim to k.
func Skip(count, dim, k int) bool {
	return k <= 0 || count == 0 || count < k || dim <= k
}

// Reduce returns one k-dimensional vector per input vector in the same order.
// When Skip holds, the input is returned unchanged.
func Reduce(vectors [][]float32, k int) ([][]float32, error) {
	model, err := Fit(vectors, k)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return vectors, nil
	}
	return model.ProjectAll(vectors)
}

// ProjectAll projects every vector through the model.
func (m *Model) ProjectAll(vectors [][]float32) ([][]float32, error) {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		p, err := m.Project(v)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// Fit learns k components from vectors. It returns a nil model when Skip holds.
func Fit(vectors [][]float32, k int) (*Model, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d, want %d", ErrRagged, i, len(v), dim)
		}
	}
	if Skip(len(vectors), dim, k) {
		return nil, nil
	}

	mean := meanOf(vectors, dim)
	cov := covariance(vectors, mean)

	components := make([][]float64, k)
	for c := 0; c < k; c++ {
		v := powerIterate(cov, c)
		components[c] = v
		deflate(cov, v)
	}

	return &Model{Mean: mean, Components: components}, nil
}

func meanOf(vectors [][]float32, dim int) []float64 {
	mean := make([]float64, dim)
	for _, v := range vectors {
		for j, x := range v {
			mean[j] += float64(x)
		}
	}
	n := float64(len(vectors))
	for j := range mean {
		mean[j] /= n
	}
	return mean
}

// covariance returns the d x d matrix sum(x xᵀ)/(n-1) of the centered data.
func covariance(vectors [][]float32, mean []float64) [][]float64 {
	dim := len(mean)
	cov := make([][]float64, dim)
	for i := range cov {
		cov[i] = make([]float64, dim)
	}

	centered := make([]float64, dim)
	for _, v := range vectors {
		for j, x := range v {
			centered[j] = float64(x) - mean[j]
		}
		for a := 0; a < dim; a++ {
			ca := centered[a]
			if ca == 0 {
				continue
			}
			row := cov[a]
			for b := a; b < dim; b++ {
				row[b] += ca * centered[b]
			}
		}
	}

	div := float64(len(vectors) - 1)
	if div < 1 {
		div = 1
	}
	for a := 0; a < dim; a++ {
		for b := a; b < dim; b++ {
			cov[a][b] /= div
			cov[b][a] = cov[a][b]
		}
	}
	return cov
}

// powerIterate approximates the dominant eigenvector of m. The start vector is
// seeded from the component index so repeated fits agree.
func powerIterate(m [][]float64, component int) []float64 {
	dim := len(m)
	rng := rand.New(rand.NewSource(int64(component))) //nolint:gosec // reproducible seed, not security
	v := make([]float64, dim)
	for i := range v {
		v[i] = rng.Float64() - 0.5
	}
	normalize(v)

	next := make([]float64, dim)
	for it := 0; it < Iterations; it++ {
		for i, row := range m {
			var s float64
			for j, x := range row {
				s += x * v[j]
			}
			next[i] = s
		}
		// Exhausted variance: keep the last direction.
		if !normalize(next) {
			break
		}
		v, next = next, v
	}
	return v
}

// deflate subtracts v vᵀ from m in place.
func deflate(m [][]float64, v []float64) {
	for i, row := range m {
		for j := range row {
			row[j] -= v[i] * v[j]
		}
	}
}

func normalize(v []float64) bool {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return false
	}
	for i := range v {
		v[i] /= norm
	}
	return true
}
