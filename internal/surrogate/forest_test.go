package surrogate

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/surrogate/internal/dataset"
	"github.com/banshee-data/surrogate/internal/frame"
)

// stepTable has y = 1 for x > 5 and 0 otherwise, plus a nominal column that
// adds 10 for level "b".
func stepTable(t *testing.T, n int) *frame.Frame {
	t.Helper()
	x := make([]float64, n)
	level := make([]string, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i % 11)
		level[i] = "a"
		if i%2 == 1 {
			level[i] = "b"
		}
		if x[i] > 5 {
			y[i] = 1
		}
		if level[i] == "b" {
			y[i] += 10
		}
	}
	f := frame.New(n)
	require.NoError(t, f.AddNominal("level", level))
	require.NoError(t, f.AddNumeric("x", x))
	require.NoError(t, f.AddNumeric(dataset.TargetColumn, y))
	return f
}

func forestDepth(f *Forest) int {
	d := 0
	for _, tree := range f.trees {
		d = max(d, tree.depth())
	}
	return d
}

func encode(t *testing.T, f *frame.Frame) *frame.Encoded {
	t.Helper()
	cp := f.Clone()
	require.NoError(t, cp.Drop(dataset.TargetColumn))
	return frame.OneHot(cp)
}

func TestForestFitsStepFunction(t *testing.T) {
	data := stepTable(t, 88)
	model, columns, err := ForestTrainer{Trees: 16, Seed: 1}.Train(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "level_a", "level_b"}, columns)

	probe := frame.New(4)
	require.NoError(t, probe.AddNominal("level", []string{"a", "a", "b", "b"}))
	require.NoError(t, probe.AddNumeric("x", []float64{1, 9, 1, 9}))
	enc := frame.OneHot(probe)
	// Probe levels sort the same way as training levels.
	require.Equal(t, columns, enc.Columns)

	pred, err := model.Predict(enc)
	require.NoError(t, err)
	want := []float64{0, 1, 10, 11}
	for i := range want {
		assert.InDelta(t, want[i], pred[i], 0.5, "row %d", i)
	}

	f := model.(*Forest)
	assert.Len(t, f.trees, 16)
	assert.Greater(t, forestDepth(f), 0)
}

func TestForestDeterministic(t *testing.T) {
	data := stepTable(t, 40)
	enc := encode(t, data)

	a, _, err := ForestTrainer{Trees: 5, Seed: 42, MaxFeatures: 1}.Train(context.Background(), data)
	require.NoError(t, err)
	b, _, err := ForestTrainer{Trees: 5, Seed: 42, MaxFeatures: 1}.Train(context.Background(), data)
	require.NoError(t, err)

	pa, err := a.Predict(enc)
	require.NoError(t, err)
	pb, err := b.Predict(enc)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestForestDefaults(t *testing.T) {
	model, _, err := ForestTrainer{}.Train(context.Background(), stepTable(t, 22))
	require.NoError(t, err)
	assert.Len(t, model.(*Forest).trees, DefaultTrees)
}

func TestForestMaxDepth(t *testing.T) {
	model, _, err := ForestTrainer{Trees: 4, MaxDepth: 1}.Train(context.Background(), stepTable(t, 44))
	require.NoError(t, err)
	assert.LessOrEqual(t, forestDepth(model.(*Forest)), 1)
}

func TestForestFeatureCount(t *testing.T) {
	model, _, err := ForestTrainer{Trees: 2}.Train(context.Background(), stepTable(t, 22))
	require.NoError(t, err)

	probe := frame.New(1)
	require.NoError(t, probe.AddNumeric("x", []float64{3}))
	_, err = model.Predict(frame.OneHot(probe))
	assert.True(t, errors.Is(err, ErrFeatureCount))
}

func TestForestImputesMissing(t *testing.T) {
	data := frame.New(6)
	require.NoError(t, data.AddNumeric("a", []float64{1, 2, math.NaN(), 4, 5, 6}))
	require.NoError(t, data.AddNumeric("empty", []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}))
	require.NoError(t, data.AddNumeric(dataset.TargetColumn, []float64{1, 2, 3, 4, 5, 6}))

	model, _, err := ForestTrainer{Trees: 3}.Train(context.Background(), data)
	require.NoError(t, err)
	f := model.(*Forest)
	assert.Equal(t, []float64{4, 0}, f.imputer.medians)

	probe := frame.New(2)
	require.NoError(t, probe.AddNumeric("a", []float64{math.NaN(), 1}))
	require.NoError(t, probe.AddNumeric("empty", []float64{math.NaN(), math.NaN()}))
	pred, err := model.Predict(frame.OneHot(probe))
	require.NoError(t, err)
	for _, v := range pred {
		assert.False(t, math.IsNaN(v))
	}
}

func TestTrainErrors(t *testing.T) {
	noTarget := frame.New(2)
	require.NoError(t, noTarget.AddNumeric("x", []float64{1, 2}))

	missingTarget := frame.New(2)
	require.NoError(t, missingTarget.AddNumeric("x", []float64{1, 2}))
	require.NoError(t, missingTarget.AddNumeric(dataset.TargetColumn, []float64{1, math.NaN()}))

	noFeatures := frame.New(2)
	require.NoError(t, noFeatures.AddNumeric(dataset.TargetColumn, []float64{1, 2}))

	empty := frame.New(0)
	require.NoError(t, empty.AddNumeric("x", nil))
	require.NoError(t, empty.AddNumeric(dataset.TargetColumn, nil))

	for name, data := range map[string]*frame.Frame{
		"no target":      noTarget,
		"missing target": missingTarget,
		"no features":    noFeatures,
		"no rows":        empty,
	} {
		_, _, err := ForestTrainer{Trees: 1}.Train(context.Background(), data)
		assert.Error(t, err, name)
	}
}

func TestTrainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := ForestTrainer{Trees: 2}.Train(ctx, stepTable(t, 22))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}

func TestImputerTransformCopies(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, math.NaN(), 3, 8})
	imp := fitMedians(x)
	out := imp.transform(x)
	assert.Equal(t, 8.0, out.At(0, 1))
	assert.True(t, math.IsNaN(x.At(0, 1)))
}

func TestTreeSplitsOnThreshold(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := []float64{0, 0, 1, 1}
	tree := growTree(x, y, []int{0, 1, 2, 3}, treeParams{minSamplesSplit: 2, minSamplesLeaf: 1}, nil)

	assert.Equal(t, 1, tree.depth())
	root := tree.nodes[0]
	assert.Equal(t, 2.5, root.threshold)
	assert.Equal(t, 0.0, tree.predict([]float64{2.5}))
	assert.Equal(t, 1.0, tree.predict([]float64{2.6}))
}
