package surrogate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// medianImputer replaces NaN cells with the column median seen at fit time.
type medianImputer struct {
	medians []float64
}

// fitMedians computes one median per column of x, ignoring NaN. Columns with
// no values at all impute 0.
func fitMedians(x mat.Matrix) *medianImputer {
	r, c := x.Dims()
	medians := make([]float64, c)
	col := make([]float64, 0, r)
	for j := 0; j < c; j++ {
		col = col[:0]
		for i := 0; i < r; i++ {
			if v := x.At(i, j); !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		medians[j] = median(col)
	}
	return &medianImputer{medians: medians}
}

// median sorts xs in place. Even lengths average the two middle values.
func median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sort.Float64s(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

// transform returns an imputed copy of x.
func (m *medianImputer) transform(x mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(x)
	r, c := out.Dims()
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		for j := 0; j < c; j++ {
			if math.IsNaN(row[j]) {
				row[j] = m.medians[j]
			}
		}
	}
	return out
}
