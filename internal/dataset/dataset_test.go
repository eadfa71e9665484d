package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/surrogate/internal/openml"
	"github.com/banshee-data/surrogate/internal/searchspace"
	"github.com/banshee-data/surrogate/internal/testutil"
)

func svcRequest(taskID int) Request {
	c, _ := searchspace.LookupClassifier("libsvm_svc")
	return Request{TaskID: taskID, FlowID: c.FlowID, NumRuns: 500, Space: c.Space, Scoring: "predictive_accuracy"}
}

func TestLoadAndValidate(t *testing.T) {
	repo := testutil.NewFakeRepository()
	repo.Runs[3] = testutil.SVCRuns(40)
	loader := NewLoader(repo, 0)

	f, err := loader.LoadAndValidate(context.Background(), svcRequest(3))
	require.NoError(t, err)

	rows, cols := f.Shape()
	assert.Equal(t, 40, rows)
	assert.Equal(t, 4, cols)
	assert.Equal(t, []string{"kernel", "C", "gamma", TargetColumn}, f.Columns())

	kernel, _ := f.Column("kernel")
	assert.True(t, kernel.Nominal)
	assert.Equal(t, "rbf", kernel.Str[0])
	c, _ := f.Column("C")
	assert.Equal(t, 1.0, c.Num[0])
	y, _ := f.Column(TargetColumn)
	assert.InDelta(t, repo.Runs[3][5].Value, y.Num[5], 1e-12)

	require.Len(t, repo.Queries, 1)
	assert.Equal(t, openml.RunQuery{TaskID: 3, FlowID: 7707, Limit: 500, Measure: "predictive_accuracy"}, repo.Queries[0])
}

func TestLoadAndValidateInsufficient(t *testing.T) {
	runs := testutil.SVCRuns(20)
	// Leave 5 sigmoid runs.
	for i := 1; i < 10; i += 2 {
		runs[i].Parameters["kernel"] = "rbf"
	}
	repo := testutil.NewFakeRepository()
	repo.Runs[6] = runs

	_, err := NewLoader(repo, 10).LoadAndValidate(context.Background(), svcRequest(6))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 6, ide.TaskID)
	assert.Equal(t, "kernel", ide.Hyperparameter)
	assert.Equal(t, "sigmoid", ide.Value)
	assert.Equal(t, 10, ide.Required)
	assert.Equal(t, 5, ide.Got)
	assert.Equal(t, "Nominal hyperparameter kernel value sigmoid does not have enough values. Required 10, got: 5", err.Error())
}

func TestLoadAndValidateRepositoryError(t *testing.T) {
	boom := errors.New("HTTP 500")
	repo := testutil.NewFakeRepository()
	repo.Errs[3] = boom

	_, err := NewLoader(repo, 10).LoadAndValidate(context.Background(), svcRequest(3))
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrInsufficientData))
}

func TestLoadAndValidateNoRuns(t *testing.T) {
	space := searchspace.MustNew(searchspace.UniformFloat("x", 0, 1, false))
	repo := testutil.NewFakeRepository()

	_, err := NewLoader(repo, 10).LoadAndValidate(context.Background(), Request{TaskID: 9, Space: space})
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Equal(t, "task 9 has no runs", err.Error())
}

func TestTableParsing(t *testing.T) {
	space := searchspace.MustNew(
		searchspace.Categorical("criterion", "gini", "entropy"),
		searchspace.UniformInteger("depth", 1, 10, false),
		searchspace.Constant("solver", searchspace.Str("smo")),
		searchspace.Constant("tol", searchspace.Num(0.001)),
	)
	runs := []openml.Run{
		{RunID: 1, Value: 0.5, Parameters: map[string]string{"criterion": "gini", "depth": "3", "solver": "smo", "tol": "0.001"}},
		{RunID: 2, Value: 0.6, Parameters: map[string]string{"criterion": " entropy ", "depth": "None"}},
		{RunID: 3, Value: 0.7, Parameters: map[string]string{}},
	}

	f, err := Table(space, runs)
	require.NoError(t, err)

	criterion, _ := f.Column("criterion")
	assert.Equal(t, []string{"gini", "entropy", ""}, criterion.Str)

	depth, _ := f.Column("depth")
	assert.Equal(t, 3.0, depth.Num[0])
	assert.True(t, math.IsNaN(depth.Num[1]))
	assert.True(t, math.IsNaN(depth.Num[2]))

	// Unreported constants take their fixed value.
	solver, _ := f.Column("solver")
	assert.True(t, solver.Nominal)
	assert.Equal(t, []string{"smo", "smo", "smo"}, solver.Str)
	tol, _ := f.Column("tol")
	assert.False(t, tol.Nominal)
	assert.Equal(t, []float64{0.001, 0.001, 0.001}, tol.Num)
}

func TestConforming(t *testing.T) {
	space := searchspace.MustNew(
		searchspace.Categorical("kernel", "rbf", "sigmoid"),
		searchspace.UniformFloat("C", 0.5, 8, true),
		searchspace.UniformInteger("depth", 1, 10, false),
		searchspace.Constant("solver", searchspace.Str("smo")),
		searchspace.Constant("tol", searchspace.Num(0.001)),
	)
	tests := []struct {
		name   string
		params map[string]string
		want   bool
	}{
		{"inside", map[string]string{"kernel": "rbf", "C": "8", "depth": "1", "solver": "smo", "tol": "1e-3"}, true},
		{"absent values", map[string]string{}, true},
		{"unparsable number", map[string]string{"depth": "None"}, true},
		{"padded choice", map[string]string{"kernel": " sigmoid "}, true},
		{"undeclared choice", map[string]string{"kernel": "poly"}, false},
		{"below lower bound", map[string]string{"C": "0.25"}, false},
		{"above upper bound", map[string]string{"depth": "11"}, false},
		{"other string constant", map[string]string{"solver": "lbfgs"}, false},
		{"other numeric constant", map[string]string{"tol": "0.01"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Conforming(space, []openml.Run{{RunID: 1, Parameters: tt.params}})
			assert.Equal(t, tt.want, len(got) == 1)
		})
	}
}

func TestLoadAndValidateDropsUndeclaredValues(t *testing.T) {
	runs := testutil.SVCRuns(41)
	runs[40].Parameters["kernel"] = "poly"
	runs[39].Parameters["C"] = "65536"
	repo := testutil.NewFakeRepository()
	repo.Runs[3] = runs

	f, err := NewLoader(repo, 10).LoadAndValidate(context.Background(), svcRequest(3))
	require.NoError(t, err)
	assert.Equal(t, 39, f.Rows())

	kernel, _ := f.Column("kernel")
	assert.ElementsMatch(t, []string{"rbf", "sigmoid"}, kernel.Levels())
}

func TestValidateChecksEveryChoice(t *testing.T) {
	space := searchspace.MustNew(
		searchspace.Categorical("a", "x", "y"),
		searchspace.Categorical("b", "p", "q", "r"),
	)
	tests := []struct {
		name      string
		counts    map[string]int
		wantValue string
		wantGot   int
	}{
		{"all present", map[string]int{"x": 3, "y": 3, "p": 2, "q": 2, "r": 2}, "", 0},
		{"first hyperparameter short", map[string]int{"x": 1, "y": 5, "p": 2, "q": 2, "r": 2}, "x", 1},
		{"missing level", map[string]int{"x": 3, "y": 3, "p": 3, "q": 3, "r": 0}, "r", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var runs []openml.Run
			add := func(name, value string, n int) {
				for i := 0; i < n; i++ {
					runs = append(runs, openml.Run{Parameters: map[string]string{name: value}})
				}
			}
			for _, v := range []string{"x", "y"} {
				add("a", v, tt.counts[v])
			}
			for _, v := range []string{"p", "q", "r"} {
				add("b", v, tt.counts[v])
			}
			f, err := Table(space, runs)
			require.NoError(t, err)

			err = Validate(f, space, 1, 2)
			if tt.wantValue == "" {
				assert.NoError(t, err)
				return
			}
			var ide *InsufficientDataError
			require.True(t, errors.As(err, &ide), fmt.Sprint(err))
			assert.Equal(t, tt.wantValue, ide.Value)
			assert.Equal(t, tt.wantGot, ide.Got)
		})
	}
}
