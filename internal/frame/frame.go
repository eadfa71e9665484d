// Package frame is a small columnar table used for task data, grids and the
// combined surrogate table. Numeric columns hold float64 with NaN as missing;
// nominal columns hold strings with "" as missing.
package frame

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrShape is returned when a column does not fit the frame.
var ErrShape = errors.New("frame shape mismatch")

// Column is one named column. Exactly one of Num and Str is populated.
type Column struct {
	Name    string
	Nominal bool
	Num     []float64
	Str     []string
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	if c.Nominal {
		return len(c.Str)
	}
	return len(c.Num)
}

// Missing reports whether row i holds no value.
func (c *Column) Missing(i int) bool {
	if c.Nominal {
		return c.Str[i] == ""
	}
	return math.IsNaN(c.Num[i])
}

// Format renders row i, using "?" for missing values.
func (c *Column) Format(i int) string {
	if c.Missing(i) {
		return "?"
	}
	if c.Nominal {
		return c.Str[i]
	}
	return strconv.FormatFloat(c.Num[i], 'g', -1, 64)
}

// Levels returns the distinct non-missing values of a nominal column in order
// of first appearance.
func (c *Column) Levels() []string {
	if !c.Nominal {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, s := range c.Str {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (c *Column) clone() *Column {
	cp := &Column{Name: c.Name, Nominal: c.Nominal}
	if c.Nominal {
		cp.Str = append([]string(nil), c.Str...)
	} else {
		cp.Num = append([]float64(nil), c.Num...)
	}
	return cp
}

// Frame is an ordered set of equal-length columns.
type Frame struct {
	rows  int
	cols  []*Column
	index map[string]int
}

// New returns an empty frame with a fixed row count.
func New(rows int) *Frame {
	return &Frame{rows: rows, index: make(map[string]int)}
}

// Rows returns the row count.
func (f *Frame) Rows() int { return f.rows }

// Shape returns (rows, columns).
func (f *Frame) Shape() (int, int) { return f.rows, len(f.cols) }

// Columns returns column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// At returns the i-th column.
func (f *Frame) At(i int) *Column { return f.cols[i] }

// AddNumeric appends a numeric column. The slice is copied.
func (f *Frame) AddNumeric(name string, values []float64) error {
	return f.add(&Column{Name: name, Num: append([]float64(nil), values...)})
}

// AddNominal appends a nominal column. The slice is copied.
func (f *Frame) AddNominal(name string, values []string) error {
	return f.add(&Column{Name: name, Nominal: true, Str: append([]string(nil), values...)})
}

func (f *Frame) add(c *Column) error {
	if c.Len() != f.rows {
		return fmt.Errorf("%w: column %q has %d values, frame has %d rows", ErrShape, c.Name, c.Len(), f.rows)
	}
	if _, dup := f.index[c.Name]; dup {
		return fmt.Errorf("%w: duplicate column %q", ErrShape, c.Name)
	}
	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// Drop removes the named column.
func (f *Frame) Drop(name string) error {
	i, ok := f.index[name]
	if !ok {
		return fmt.Errorf("no column %q", name)
	}
	f.cols = append(f.cols[:i], f.cols[i+1:]...)
	f.reindex()
	return nil
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.cols))
	for i, c := range f.cols {
		f.index[c.Name] = i
	}
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	cp := New(f.rows)
	for _, c := range f.cols {
		cp.cols = append(cp.cols, c.clone())
	}
	cp.reindex()
	return cp
}

// CountEqual counts rows of a nominal column equal to value.
func (f *Frame) CountEqual(name, value string) (int, error) {
	c, ok := f.Column(name)
	if !ok {
		return 0, fmt.Errorf("no column %q", name)
	}
	if !c.Nominal {
		return 0, fmt.Errorf("column %q is not nominal", name)
	}
	n := 0
	for _, s := range c.Str {
		if s == value {
			n++
		}
	}
	return n, nil
}
