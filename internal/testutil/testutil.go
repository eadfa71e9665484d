// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/banshee-data/surrogate/internal/openml"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// FakeRepository is an in-memory openml.Repository that counts calls.
type FakeRepository struct {
	mu sync.Mutex

	// Studies maps study ids to task lists.
	Studies map[string][]int
	// Runs maps task ids to their runs. Flow and measure are ignored.
	Runs map[int][]openml.Run
	// Errs maps task ids to an error returned instead of runs.
	Errs map[int]error

	StudyCalls int
	RunCalls   int
	Queries    []openml.RunQuery
}

var _ openml.Repository = (*FakeRepository)(nil)

// NewFakeRepository returns an empty repository.
func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		Studies: make(map[string][]int),
		Runs:    make(map[int][]openml.Run),
		Errs:    make(map[int]error),
	}
}

// StudyTasks implements openml.Repository.
func (f *FakeRepository) StudyTasks(ctx context.Context, studyID string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StudyCalls++
	tasks, ok := f.Studies[studyID]
	if !ok {
		return nil, fmt.Errorf("unknown study %s", studyID)
	}
	return append([]int(nil), tasks...), nil
}

// TaskFlowRuns implements openml.Repository.
func (f *FakeRepository) TaskFlowRuns(ctx context.Context, q openml.RunQuery) ([]openml.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RunCalls++
	f.Queries = append(f.Queries, q)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.Errs[q.TaskID]; err != nil {
		return nil, err
	}
	runs := f.Runs[q.TaskID]
	if q.Limit > 0 && len(runs) > q.Limit {
		runs = runs[:q.Limit]
	}
	out := make([]openml.Run, len(runs))
	for i, r := range runs {
		out[i] = r
		out[i].Parameters = make(map[string]string, len(r.Parameters))
		for k, v := range r.Parameters {
			out[i].Parameters[k] = v
		}
	}
	return out, nil
}

// SVCRuns returns n libsvm_svc runs with kernels alternating between rbf
// and sigmoid, C and gamma spread over their ranges, and a score that
// depends on all three.
func SVCRuns(n int) []openml.Run {
	runs := make([]openml.Run, n)
	for i := range runs {
		kernel := "rbf"
		score := 0.8
		if i%2 == 1 {
			kernel = "sigmoid"
			score = 0.6
		}
		c := float64(i%7 + 1)
		gamma := 0.001 * float64(i%5+1)
		runs[i] = openml.Run{
			RunID:   1000 + i,
			SetupID: 500 + i,
			Value:   score + 0.01*c - gamma,
			Parameters: map[string]string{
				"kernel": kernel,
				"C":      fmt.Sprint(c),
				"gamma":  fmt.Sprint(gamma),
			},
		}
	}
	return runs
}
