// Package openml reads benchmark runs from an OpenML server: the task list of
// a study, and the evaluated runs of one flow on one task together with the
// hyperparameter settings each run used.
package openml

import (
	"context"
	"fmt"
)

// Run is one evaluated run of a flow on a task.
type Run struct {
	RunID   int
	SetupID int
	// Value is the evaluation measure the run was queried with.
	Value float64
	// Parameters maps the flow's parameter names to their raw string values.
	Parameters map[string]string
}

// RunQuery selects the runs of a flow on a task.
type RunQuery struct {
	TaskID  int
	FlowID  int
	Limit   int
	Measure string
}

// Key identifies the query in caches and logs.
func (q RunQuery) Key() string {
	return fmt.Sprintf("task=%d flow=%d measure=%s limit=%d", q.TaskID, q.FlowID, q.Measure, q.Limit)
}

// Repository is a source of study tasks and runs.
type Repository interface {
	StudyTasks(ctx context.Context, studyID string) ([]int, error)
	TaskFlowRuns(ctx context.Context, q RunQuery) ([]Run, error)
}
