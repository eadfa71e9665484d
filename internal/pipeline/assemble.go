package pipeline

import (
	"fmt"

	"github.com/banshee-data/surrogate/internal/frame"
)

// TaskSurrogate is a trained model with the encoded column order it was
// trained on.
type TaskSurrogate struct {
	TaskID  int
	Model   Model
	Columns []string
}

// Assemble predicts every grid row under each task's model and appends one
// score column per task, in task order. The grid is encoded once; a model
// trained on a different encoding, a prediction of the wrong length or a
// final shape other than (grid rows, numHyperparameters+len(tasks)) fails
// with ErrConsistency. The grid itself is not modified.
func Assemble(grid *frame.Frame, numHyperparameters int, scoring string, tasks []TaskSurrogate) (*frame.Frame, error) {
	enc := frame.OneHot(grid)
	out := grid.Clone()

	for _, t := range tasks {
		if !frame.SameColumns(t.Columns, enc.Columns) {
			return nil, fmt.Errorf("%w: task %d was trained on columns %v, grid encodes %v",
				ErrConsistency, t.TaskID, t.Columns, enc.Columns)
		}
		pred, err := t.Model.Predict(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: task %d: predict: %w", ErrConsistency, t.TaskID, err)
		}
		if len(pred) != grid.Rows() {
			return nil, fmt.Errorf("%w: task %d predicted %d scores for %d grid rows",
				ErrConsistency, t.TaskID, len(pred), grid.Rows())
		}
		if err := out.AddNumeric(ColumnName(scoring, t.TaskID), pred); err != nil {
			return nil, fmt.Errorf("%w: task %d: %w", ErrConsistency, t.TaskID, err)
		}
		diagf("task %d: predicted %d configurations", t.TaskID, len(pred))
	}

	rows, cols := out.Shape()
	wantCols := numHyperparameters + len(tasks)
	if rows != grid.Rows() || cols != wantCols {
		return nil, fmt.Errorf("%w: table shape (%d, %d), expected (%d, %d)",
			ErrConsistency, rows, cols, grid.Rows(), wantCols)
	}
	return out, nil
}
