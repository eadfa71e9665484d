package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/surrogate/internal/frame"
)

type stubModel struct {
	scale float64
	short bool
	err   error
}

// Predict returns scale times the first encoded column.
func (m stubModel) Predict(enc *frame.Encoded) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	n := enc.Rows
	if m.short {
		n--
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = m.scale * enc.X.At(i, 0)
	}
	return out, nil
}

func testGrid(t *testing.T) *frame.Frame {
	t.Helper()
	f := frame.New(4)
	require.NoError(t, f.AddNominal("kernel", []string{"rbf", "sigmoid", "rbf", "sigmoid"}))
	require.NoError(t, f.AddNumeric("C", []float64{1, 1, 10, 10}))
	return f
}

var gridColumns = []string{"C", "kernel_rbf", "kernel_sigmoid"}

func TestAssemble(t *testing.T) {
	g := testGrid(t)
	tasks := []TaskSurrogate{
		{TaskID: 6, Model: stubModel{scale: 0.5}, Columns: gridColumns},
		{TaskID: 3, Model: stubModel{scale: 2}, Columns: gridColumns},
	}

	out, err := Assemble(g, 2, "predictive_accuracy", tasks)
	require.NoError(t, err)

	assert.Equal(t, []string{"kernel", "C", "predictive_accuracy_task_6", "predictive_accuracy_task_3"}, out.Columns())
	c6, _ := out.Column("predictive_accuracy_task_6")
	assert.Equal(t, []float64{0.5, 0.5, 5, 5}, c6.Num)
	c3, _ := out.Column("predictive_accuracy_task_3")
	assert.Equal(t, []float64{2, 2, 20, 20}, c3.Num)

	_, cols := g.Shape()
	assert.Equal(t, 2, cols, "grid must not be modified")
}

func TestAssembleNoTasks(t *testing.T) {
	out, err := Assemble(testGrid(t), 2, "predictive_accuracy", nil)
	require.NoError(t, err)
	rows, cols := out.Shape()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 2, cols)
}

func TestAssembleConsistencyErrors(t *testing.T) {
	tests := []struct {
		name  string
		hps   int
		tasks []TaskSurrogate
	}{
		{
			name:  "column mismatch",
			hps:   2,
			tasks: []TaskSurrogate{{TaskID: 1, Model: stubModel{scale: 1}, Columns: []string{"C", "kernel_rbf"}}},
		},
		{
			name:  "predict error",
			hps:   2,
			tasks: []TaskSurrogate{{TaskID: 1, Model: stubModel{err: errors.New("boom")}, Columns: gridColumns}},
		},
		{
			name:  "short prediction",
			hps:   2,
			tasks: []TaskSurrogate{{TaskID: 1, Model: stubModel{scale: 1, short: true}, Columns: gridColumns}},
		},
		{
			name: "duplicate task",
			hps:  2,
			tasks: []TaskSurrogate{
				{TaskID: 1, Model: stubModel{scale: 1}, Columns: gridColumns},
				{TaskID: 1, Model: stubModel{scale: 1}, Columns: gridColumns},
			},
		},
		{
			name:  "unexpected width",
			hps:   3,
			tasks: []TaskSurrogate{{TaskID: 1, Model: stubModel{scale: 1}, Columns: gridColumns}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(testGrid(t), tt.hps, "acc", tt.tasks)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConsistency), "got %v", err)
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, "predictive_accuracy_task_31", ColumnName("predictive_accuracy", 31))
	assert.Equal(t, "surrogate_libsvm_svc_c8.arff", OutputName("libsvm_svc", 8))
}
