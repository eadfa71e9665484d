package frame

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Scaling names accepted by Normalize.
const (
	MinMaxScaler   = "MinMaxScaler"
	StandardScaler = "StandardScaler"
)

// ErrUnknownScaling is returned for scaling names other than the ones above.
var ErrUnknownScaling = errors.New("unknown scaling type")

// Normalize returns a copy of f with the named numeric columns rescaled one
// column at a time. With no columns given, every numeric column is scaled.
// An empty scaling name returns an unchanged copy. Missing values are ignored
// when fitting and stay missing.
func Normalize(f *Frame, scaling string, columns ...string) (*Frame, error) {
	out := f.Clone()
	if scaling == "" {
		return out, nil
	}
	if scaling != MinMaxScaler && scaling != StandardScaler {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScaling, scaling)
	}
	if len(columns) == 0 {
		for _, c := range out.cols {
			if !c.Nominal {
				columns = append(columns, c.Name)
			}
		}
	}
	for _, name := range columns {
		c, ok := out.Column(name)
		if !ok {
			return nil, fmt.Errorf("no column %q", name)
		}
		if c.Nominal {
			return nil, fmt.Errorf("cannot scale nominal column %q", name)
		}
		present := presentValues(c.Num)
		if len(present) == 0 {
			continue
		}
		var shift, scale float64
		switch scaling {
		case MinMaxScaler:
			shift = floats.Min(present)
			scale = floats.Max(present) - shift
		case StandardScaler:
			shift, scale = stat.PopMeanStdDev(present, nil)
		}
		if scale == 0 {
			scale = 1
		}
		for i, v := range c.Num {
			c.Num[i] = (v - shift) / scale
		}
	}
	return out, nil
}

func presentValues(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// A3R divides a scoring frame by a runtime frame cell by cell. Zero runtimes
// are replaced by the smallest non-zero runtime first. Both frames must have
// the same numeric columns in the same order and the same shape. The build
// does not call it; it serves callers that pair score tables with runtime
// tables of the same grid.
func A3R(scoring, runtime *Frame) (*Frame, error) {
	if !SameColumns(scoring.Columns(), runtime.Columns()) {
		return nil, fmt.Errorf("%w: scoring columns %v differ from runtime columns %v", ErrShape, scoring.Columns(), runtime.Columns())
	}
	if scoring.rows != runtime.rows {
		return nil, fmt.Errorf("%w: scoring has %d rows, runtime has %d", ErrShape, scoring.rows, runtime.rows)
	}

	minNonZero := math.Inf(1)
	for _, c := range runtime.cols {
		if c.Nominal {
			return nil, fmt.Errorf("runtime column %q is not numeric", c.Name)
		}
		for _, v := range c.Num {
			if v != 0 && !math.IsNaN(v) && v < minNonZero {
				minNonZero = v
			}
		}
	}
	if math.IsInf(minNonZero, 1) {
		return nil, errors.New("runtime frame has no non-zero values")
	}

	out := New(scoring.rows)
	for j, sc := range scoring.cols {
		if sc.Nominal {
			return nil, fmt.Errorf("scoring column %q is not numeric", sc.Name)
		}
		rt := runtime.cols[j]
		vals := make([]float64, scoring.rows)
		for i := range vals {
			r := rt.Num[i]
			if r == 0 {
				r = minNonZero
			}
			vals[i] = sc.Num[i] / r
		}
		if err := out.AddNumeric(sc.Name, vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}
