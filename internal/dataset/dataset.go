// Package dataset turns the historical runs of one flow on one task into a
// training table and checks that every categorical choice is well supported.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/banshee-data/surrogate/internal/frame"
	"github.com/banshee-data/surrogate/internal/openml"
	"github.com/banshee-data/surrogate/internal/searchspace"
)

// TargetColumn holds the evaluation measure in a task table.
const TargetColumn = "y"

// DefaultMinNominalCount is the fewest rows each categorical choice needs.
const DefaultMinNominalCount = 10

// ErrInsufficientData marks a task whose runs cannot support a surrogate.
// Callers skip such tasks.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError names the under-represented choice. Hyperparameter
// is empty when the task has no usable runs at all.
type InsufficientDataError struct {
	TaskID         int
	Hyperparameter string
	Value          string
	Required       int
	Got            int
}

func (e *InsufficientDataError) Error() string {
	if e.Hyperparameter == "" {
		return fmt.Sprintf("task %d has no runs", e.TaskID)
	}
	return fmt.Sprintf("Nominal hyperparameter %s value %s does not have enough values. Required %d, got: %d",
		e.Hyperparameter, e.Value, e.Required, e.Got)
}

// Is makes errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// Request selects the runs to load for one task.
type Request struct {
	TaskID  int
	FlowID  int
	NumRuns int
	Space   *searchspace.Space
	Scoring string
}

// Loader fetches task tables from a repository.
type Loader struct {
	Repo            openml.Repository
	MinNominalCount int
}

// NewLoader returns a loader requiring minNominal rows per categorical
// choice. A non-positive minNominal selects DefaultMinNominalCount.
func NewLoader(repo openml.Repository, minNominal int) *Loader {
	if minNominal <= 0 {
		minNominal = DefaultMinNominalCount
	}
	return &Loader{Repo: repo, MinNominalCount: minNominal}
}

// LoadAndValidate fetches up to req.NumRuns runs and returns them as a
// table with one column per hyperparameter in space order followed by y.
// Repository errors are wrapped with the task id; thin data yields an
// *InsufficientDataError.
func (l *Loader) LoadAndValidate(ctx context.Context, req Request) (*frame.Frame, error) {
	runs, err := l.Repo.TaskFlowRuns(ctx, openml.RunQuery{
		TaskID:  req.TaskID,
		FlowID:  req.FlowID,
		Limit:   req.NumRuns,
		Measure: req.Scoring,
	})
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", req.TaskID, err)
	}

	kept := Conforming(req.Space, runs)
	if dropped := len(runs) - len(kept); dropped > 0 {
		diagf("task %d: dropped %d of %d runs outside the search space", req.TaskID, dropped, len(runs))
	}

	f, err := Table(req.Space, kept)
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", req.TaskID, err)
	}
	rows, cols := f.Shape()
	diagf("task %d: %d runs, %d columns", req.TaskID, rows, cols-1)

	minCount := l.MinNominalCount
	if minCount <= 0 {
		minCount = DefaultMinNominalCount
	}
	if err := Validate(f, req.Space, req.TaskID, minCount); err != nil {
		return nil, err
	}
	return f, nil
}

// Conforming returns the runs whose reported values fit space: categorical
// values must be declared choices, numbers must lie within bounds and
// constants must equal their value. Absent or unparsable values are kept and
// treated as missing.
func Conforming(space *searchspace.Space, runs []openml.Run) []openml.Run {
	out := make([]openml.Run, 0, len(runs))
	for _, run := range runs {
		if fits(space, run) {
			out = append(out, run)
		}
	}
	return out
}

func fits(space *searchspace.Space, run openml.Run) bool {
	for i := 0; i < space.Len(); i++ {
		hp := space.At(i)
		raw := strings.TrimSpace(run.Parameters[hp.Name])
		if raw == "" {
			continue
		}
		switch hp.Kind {
		case searchspace.KindCategorical:
			if !slices.Contains(hp.Choices, raw) {
				return false
			}
		case searchspace.KindUniformFloat, searchspace.KindUniformInteger:
			v := parseNumber(raw)
			if !math.IsNaN(v) && (v < hp.Lower || v > hp.Upper) {
				return false
			}
		case searchspace.KindConstant:
			if !hp.Value.IsNumeric() {
				if raw != hp.Value.String() {
					return false
				}
				continue
			}
			if v := parseNumber(raw); !math.IsNaN(v) && v != hp.Value.Float() {
				return false
			}
		}
	}
	return true
}

// Table lays runs out as a frame. Numeric hyperparameters parse as floats
// with NaN for absent or unparsable values; categorical ones keep their raw
// strings. Constants a run does not report take their fixed value.
func Table(space *searchspace.Space, runs []openml.Run) (*frame.Frame, error) {
	f := frame.New(len(runs))
	for i := 0; i < space.Len(); i++ {
		hp := space.At(i)
		if hp.Nominal() {
			vals := make([]string, len(runs))
			for r, run := range runs {
				vals[r] = strings.TrimSpace(run.Parameters[hp.Name])
				if vals[r] == "" && hp.Kind == searchspace.KindConstant {
					vals[r] = hp.Value.String()
				}
			}
			if err := f.AddNominal(hp.Name, vals); err != nil {
				return nil, err
			}
			continue
		}
		vals := make([]float64, len(runs))
		for r, run := range runs {
			vals[r] = parseNumber(run.Parameters[hp.Name])
			if math.IsNaN(vals[r]) && hp.Kind == searchspace.KindConstant {
				vals[r] = hp.Value.Float()
			}
		}
		if err := f.AddNumeric(hp.Name, vals); err != nil {
			return nil, err
		}
	}

	y := make([]float64, len(runs))
	for r, run := range runs {
		y[r] = run.Value
	}
	if err := f.AddNumeric(TargetColumn, y); err != nil {
		return nil, err
	}
	return f, nil
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Validate checks that each declared choice of every categorical
// hyperparameter occurs in at least minCount rows, in space and choice order.
// A table with no rows fails even when the space has no categoricals.
func Validate(f *frame.Frame, space *searchspace.Space, taskID, minCount int) error {
	for _, hp := range space.Categoricals() {
		for _, choice := range hp.Choices {
			n, err := f.CountEqual(hp.Name, choice)
			if err != nil {
				return fmt.Errorf("task %d: %w", taskID, err)
			}
			if n < minCount {
				return &InsufficientDataError{
					TaskID:         taskID,
					Hyperparameter: hp.Name,
					Value:          choice,
					Required:       minCount,
					Got:            n,
				}
			}
		}
	}
	if f.Rows() == 0 {
		return &InsufficientDataError{TaskID: taskID, Required: 1}
	}
	return nil
}
