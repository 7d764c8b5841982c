package sqlite

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/tidwall/gjson"
	sqlitedrv "modernc.org/sqlite"

	"github.com/kailas-cloud/incidex/internal/db"
)

// missingCosine is returned when the stored vector is absent so such rows sort last.
const missingCosine = 2.0

var (
	registerOnce sync.Once
	errRegister  error
)

// registerFunctions installs VectorDistance for every connection opened by the driver.
// Registration is process-wide and may only happen once.
func registerFunctions() error {
	registerOnce.Do(func() {
		errRegister = sqlitedrv.RegisterFunction("VectorDistance", &sqlitedrv.FunctionImpl{
			NArgs:         -1,
			Deterministic: true,
			Scalar:        vectorDistance,
		})
	})
	return errRegister
}

// vectorDistance implements VectorDistance(stored, query [, metric]).
// Vectors arrive as JSON array text.
func vectorDistance(_ *sqlitedrv.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, fmt.Errorf("VectorDistance: expected 2 or 3 arguments, got %d", len(args))
	}

	metric := db.DistanceCosine
	if len(args) == 3 {
		m, ok := args[2].(string)
		if !ok {
			return nil, fmt.Errorf("VectorDistance: metric must be text, got %T", args[2])
		}
		metric = db.DistanceMetric(m)
	}

	a, err := vectorArg(args[0])
	if err != nil {
		return nil, fmt.Errorf("VectorDistance: stored vector: %w", err)
	}
	b, err := vectorArg(args[1])
	if err != nil {
		return nil, fmt.Errorf("VectorDistance: query vector: %w", err)
	}
	if a == nil || b == nil {
		return missingDistance(metric), nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("VectorDistance: dimension mismatch %d != %d", len(a), len(b))
	}

	return distance(metric, a, b)
}

func missingDistance(metric db.DistanceMetric) float64 {
	if metric == db.DistanceCosine {
		return missingCosine
	}
	return math.MaxFloat64
}

func vectorArg(v driver.Value) ([]float64, error) {
	var text string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		text = t
	case []byte:
		text = string(t)
	default:
		return nil, fmt.Errorf("unexpected %T", v)
	}

	res := gjson.Parse(text)
	if !res.IsArray() {
		return nil, errors.New("not a JSON array")
	}
	items := res.Array()
	out := make([]float64, len(items))
	for i, it := range items {
		if it.Type != gjson.Number {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		out[i] = it.Num
	}
	return out, nil
}

// distance computes a distance where smaller means more similar.
func distance(metric db.DistanceMetric, a, b []float64) (float64, error) {
	switch metric {
	case db.DistanceCosine:
		var dot, na, nb float64
		for i := range a {
			dot += a[i] * b[i]
			na += a[i] * a[i]
			nb += b[i] * b[i]
		}
		if na == 0 || nb == 0 {
			return 1, nil
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
	case db.DistanceEuclidean:
		var sum float64
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return math.Sqrt(sum), nil
	case db.DistanceDotProduct:
		var dot float64
		for i := range a {
			dot += a[i] * b[i]
		}
		return -dot, nil
	default:
		return 0, fmt.Errorf("unknown distance metric %q", metric)
	}
}
