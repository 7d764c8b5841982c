package reduce

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
		for j := range out[i] {
			out[i][j] = float32(rng.NormFloat64())
		}
	}
	return out
}

func TestReduce_NoOp(t *testing.T) {
	tests := []struct {
		name string
		n    int
		dim  int
		k    int
	}{
		{"fewer vectors than k", 2, 8, 3},
		{"dim equals k", 10, 3, 3},
		{"dim below k", 10, 2, 3},
		{"zero k", 10, 8, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := randomVectors(tc.n, tc.dim, 1)
			out, err := Reduce(in, tc.k)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(out) != len(in) {
				t.Fatalf("len = %d, want %d", len(out), len(in))
			}
			for i := range in {
				if &out[i][0] != &in[i][0] {
					t.Fatalf("vector %d was copied or changed, want input returned unchanged", i)
				}
			}
		})
	}
}

func TestReduce_Empty(t *testing.T) {
	out, err := Reduce(nil, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
}

func TestReduce_OutputShape(t *testing.T) {
	in := randomVectors(20, 16, 2)
	out, err := Reduce(in, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i, v := range out {
		if len(v) != 3 {
			t.Fatalf("vector %d has %d elements, want 3", i, len(v))
		}
	}
}

func TestReduce_CountEqualsK(t *testing.T) {
	in := randomVectors(3, 8, 3)
	out, err := Reduce(in, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range out {
		if len(v) != 3 {
			t.Fatalf("vector %d has %d elements, want 3", i, len(v))
		}
	}
}

func TestReduce_Deterministic(t *testing.T) {
	in := randomVectors(12, 10, 4)

	a, err := Reduce(in, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Reduce(in, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("out[%d][%d] differs: %v vs %v", i, j, a[i][j], b[i][j])
			}
		}
	}
}

func TestReduce_Ragged(t *testing.T) {
	in := [][]float32{{1, 2, 3, 4}, {1, 2, 3}}
	_, err := Reduce(in, 1)
	if !errors.Is(err, ErrRagged) {
		t.Fatalf("expected ErrRagged, got %v", err)
	}
}

// Points on a line through (1,1,1,1) along (1,1,0,0): the first component
// should recover that direction and preserve distances along it.
func TestFit_RecoversDominantDirection(t *testing.T) {
	dir := []float64{1 / math.Sqrt2, 1 / math.Sqrt2, 0, 0}
	ts := []float64{-3, -1, 0, 2, 5, 7}

	vectors := make([][]float32, len(ts))
	for i, s := range ts {
		v := make([]float32, 4)
		for j := range v {
			v[j] = float32(1 + s*dir[j])
		}
		vectors[i] = v
	}

	model, err := Fit(vectors, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model == nil {
		t.Fatal("expected a fitted model")
	}

	comp := model.Components[0]
	var dot float64
	for j := range comp {
		dot += comp[j] * dir[j]
	}
	if math.Abs(math.Abs(dot)-1) > 1e-3 {
		t.Fatalf("|component . direction| = %f, want ~1", math.Abs(dot))
	}

	var meanT float64
	for _, s := range ts {
		meanT += s
	}
	meanT /= float64(len(ts))

	out, err := model.ProjectAll(vectors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, s := range ts {
		want := math.Abs(s - meanT)
		got := math.Abs(float64(out[i][0]))
		if math.Abs(got-want) > 1e-3 {
			t.Errorf("point %d: |projection| = %f, want ~%f", i, got, want)
		}
	}
}

func TestModel_ProjectDimMismatch(t *testing.T) {
	model, err := Fit(randomVectors(10, 6, 5), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := model.Project([]float32{1, 2}); err == nil {
		t.Fatal("expected error for wrong dimension")
	}
	if model.Dim() != 6 || model.K() != 2 {
		t.Errorf("dim=%d k=%d, want 6 and 2", model.Dim(), model.K())
	}
}

func TestSkip(t *testing.T) {
	tests := []struct {
		count, dim, k int
		want          bool
	}{
		{10, 768, 3, false},
		{2, 768, 3, true},
		{10, 3, 3, true},
		{0, 768, 3, true},
		{10, 768, 0, true},
	}
	for _, tc := range tests {
		if got := Skip(tc.count, tc.dim, tc.k); got != tc.want {
			t.Errorf("Skip(%d, %d, %d) = %v, want %v", tc.count, tc.dim, tc.k, got, tc.want)
		}
	}
}
