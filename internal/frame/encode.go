package frame

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Encoded is a frame expanded into a dense design matrix.
type Encoded struct {
	Columns []string
	Rows    int
	X       *mat.Dense // nil when Rows or len(Columns) is zero
}

// OneHot expands nominal columns into indicator columns. Numeric columns come
// first in frame order, then one column per nominal level, levels sorted
// lexicographically and named "<column>_<level>". Missing nominal values
// encode as all zeros; missing numbers stay NaN.
func OneHot(f *Frame) *Encoded {
	type source struct {
		col   *Column
		level string
	}
	var sources []source
	var names []string

	for _, c := range f.cols {
		if !c.Nominal {
			sources = append(sources, source{col: c})
			names = append(names, c.Name)
		}
	}
	for _, c := range f.cols {
		if !c.Nominal {
			continue
		}
		levels := c.Levels()
		sort.Strings(levels)
		for _, l := range levels {
			sources = append(sources, source{col: c, level: l})
			names = append(names, c.Name+"_"+l)
		}
	}

	enc := &Encoded{Columns: names, Rows: f.rows}
	if f.rows == 0 || len(names) == 0 {
		return enc
	}
	enc.X = mat.NewDense(f.rows, len(names), nil)
	for j, s := range sources {
		for i := 0; i < f.rows; i++ {
			if !s.col.Nominal {
				enc.X.Set(i, j, s.col.Num[i])
				continue
			}
			if s.col.Str[i] == s.level {
				enc.X.Set(i, j, 1)
			}
		}
	}
	return enc
}

// SameColumns reports whether two column orders are identical.
func SameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
