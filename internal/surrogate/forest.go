// Package surrogate fits per-task regression models that predict a
// configuration's score from its encoded hyperparameters.
package surrogate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/surrogate/internal/dataset"
	"github.com/banshee-data/surrogate/internal/frame"
	"github.com/banshee-data/surrogate/internal/pipeline"
)

// DefaultTrees is the forest size used when ForestTrainer.Trees is zero.
const DefaultTrees = 64

// ErrFeatureCount is returned when prediction input has a different number
// of encoded columns than the training data.
var ErrFeatureCount = errors.New("encoded column count differs from training data")

// ForestTrainer fits a median imputer followed by a random forest of
// regression trees. The zero value uses 64 bootstrapped trees grown to purity
// with every feature considered at each split.
type ForestTrainer struct {
	Trees           int
	Seed            uint64
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxDepth of 0 leaves depth unlimited.
	MaxDepth int
	// MaxFeatures of 0 considers every feature at each split.
	MaxFeatures int
}

var _ pipeline.Trainer = ForestTrainer{}

// Train fits a forest to data, whose y column is the target and whose
// remaining columns are one-hot encoded. It returns the model and the
// encoded column order the model expects.
func (t ForestTrainer) Train(ctx context.Context, data *frame.Frame) (pipeline.Model, []string, error) {
	features := data.Clone()
	target, ok := features.Column(dataset.TargetColumn)
	if !ok || target.Nominal {
		return nil, nil, fmt.Errorf("training data needs a numeric %q column", dataset.TargetColumn)
	}
	y := append([]float64(nil), target.Num...)
	if floats.HasNaN(y) {
		return nil, nil, fmt.Errorf("training target %q has missing values", dataset.TargetColumn)
	}
	if err := features.Drop(dataset.TargetColumn); err != nil {
		return nil, nil, err
	}

	enc := frame.OneHot(features)
	if enc.X == nil {
		return nil, nil, fmt.Errorf("cannot train on %d rows and %d encoded columns", enc.Rows, len(enc.Columns))
	}
	imputer := fitMedians(enc.X)
	x := imputer.transform(enc.X)

	params := treeParams{
		minSamplesSplit: max(t.MinSamplesSplit, 2),
		minSamplesLeaf:  max(t.MinSamplesLeaf, 1),
		maxDepth:        t.MaxDepth,
		maxFeatures:     t.MaxFeatures,
	}
	trees := t.Trees
	if trees <= 0 {
		trees = DefaultTrees
	}

	n := len(y)
	forest := &Forest{
		columns: append([]string(nil), enc.Columns...),
		imputer: imputer,
		trees:   make([]*regressionTree, 0, trees),
	}
	samples := make([]int, n)
	for k := 0; k < trees; k++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rng := rand.New(rand.NewPCG(t.Seed, uint64(k)))
		for i := range samples {
			samples[i] = rng.IntN(n)
		}
		forest.trees = append(forest.trees, growTree(x, y, samples, params, rng))
	}
	return forest, forest.Columns(), nil
}

// Forest is a fitted imputer and tree ensemble.
type Forest struct {
	columns []string
	imputer *medianImputer
	trees   []*regressionTree
}

// Columns returns the encoded column order the forest was trained on.
func (f *Forest) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Predict returns the mean tree prediction for every row of enc. Missing
// cells are imputed with the training medians.
func (f *Forest) Predict(enc *frame.Encoded) ([]float64, error) {
	if len(enc.Columns) != len(f.columns) {
		return nil, fmt.Errorf("%w: got %d, trained on %d", ErrFeatureCount, len(enc.Columns), len(f.columns))
	}
	out := make([]float64, enc.Rows)
	if enc.X == nil {
		return out, nil
	}
	row := make([]float64, len(f.columns))
	for i := range out {
		for j := range row {
			v := enc.X.At(i, j)
			if math.IsNaN(v) {
				v = f.imputer.medians[j]
			}
			row[j] = v
		}
		var sum float64
		for _, t := range f.trees {
			sum += t.predict(row)
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out, nil
}
