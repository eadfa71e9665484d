// Package pipeline builds a surrogate table: it discretises a classifier's
// search space into a grid, trains one surrogate per study task and predicts
// every grid configuration under each of them.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/surrogate/internal/dataset"
	"github.com/banshee-data/surrogate/internal/frame"
)

// ErrConsistency marks a broken internal invariant, such as a trained model
// that disagrees with the grid encoding. It is never recoverable.
var ErrConsistency = errors.New("consistency error")

// Model predicts one score per row of an encoded table.
type Model interface {
	Predict(enc *frame.Encoded) ([]float64, error)
}

// Trainer fits a Model to a task table with a y column and returns the
// encoded column order the model expects.
type Trainer interface {
	Train(ctx context.Context, data *frame.Frame) (Model, []string, error)
}

// DataLoader produces a validated task table.
type DataLoader interface {
	LoadAndValidate(ctx context.Context, req dataset.Request) (*frame.Frame, error)
}

// TaskSource lists the tasks of a study.
type TaskSource interface {
	StudyTasks(ctx context.Context, studyID string) ([]int, error)
}

// BuildRecord describes one written surrogate table.
type BuildRecord struct {
	ID           string
	Classifier   string
	StudyID      string
	Scoring      string
	GridSize     int
	Rows         int
	Columns      int
	TrainedTasks []int
	SkippedTasks []int
	OutputPath   string
	TableHash    string
	CreatedAt    int64
}

// BuildRecorder stores build history. Implementations fill in ID and
// CreatedAt when they are empty.
type BuildRecorder interface {
	RecordBuild(ctx context.Context, b *BuildRecord) error
}

// ColumnName names the score column of a task.
func ColumnName(scoring string, taskID int) string {
	return fmt.Sprintf("%s_task_%d", scoring, taskID)
}

// OutputName is the file name of the table for a classifier and grid size.
func OutputName(classifier string, gridSize int) string {
	return fmt.Sprintf("surrogate_%s_c%d.arff", classifier, gridSize)
}
