package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/surrogate/internal/arff"
	"github.com/banshee-data/surrogate/internal/dataset"
	"github.com/banshee-data/surrogate/internal/frame"
	"github.com/banshee-data/surrogate/internal/fsutil"
	"github.com/banshee-data/surrogate/internal/grid"
	"github.com/banshee-data/surrogate/internal/report"
	"github.com/banshee-data/surrogate/internal/searchspace"
	"github.com/banshee-data/surrogate/internal/version"
)

// HeaderComment opens every written table.
const HeaderComment = "Generated using OpenML-defaults"

// Config selects what to build and where to write it.
type Config struct {
	StudyID    string
	Classifier string
	Scoring    string
	NumRuns    int
	GridSize   int
	OutputDir  string
	// NormalizeScores is "", frame.MinMaxScaler or frame.StandardScaler.
	NormalizeScores string
	// Report also writes PNG and HTML box plots of the score columns.
	Report bool
}

// SkippedTask is a task left out of the table for lack of data.
type SkippedTask struct {
	TaskID int
	Reason string
}

// Result is the outcome of a successful run.
type Result struct {
	Table      *frame.Frame
	GridSize   int
	OutputPath string
	Reports    []string
	Trained    []int
	Skipped    []SkippedTask
	Build      *BuildRecord
}

// Runner wires the pipeline stages together. FS defaults to the OS
// filesystem; Recorder is optional.
type Runner struct {
	Config   Config
	Tasks    TaskSource
	Loader   DataLoader
	Trainer  Trainer
	FS       fsutil.FileSystem
	Recorder BuildRecorder
}

// Run builds the table, processing tasks one at a time in study order.
// Tasks with insufficient data are logged and skipped; any other error
// aborts the run before anything is written.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.Config
	switch cfg.NormalizeScores {
	case "", frame.MinMaxScaler, frame.StandardScaler:
	default:
		return nil, fmt.Errorf("%w: %w: %s", searchspace.ErrConfiguration, frame.ErrUnknownScaling, cfg.NormalizeScores)
	}

	clf, err := searchspace.LookupClassifier(cfg.Classifier)
	if err != nil {
		return nil, err
	}
	configs, err := grid.Generate(clf.Space, cfg.GridSize)
	if err != nil {
		return nil, err
	}
	gridFrame, err := frame.FromConfigurations(clf.Space, configs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConsistency, err)
	}

	tasks, err := r.Tasks.StudyTasks(ctx, cfg.StudyID)
	if err != nil {
		return nil, fmt.Errorf("list tasks of study %s: %w", cfg.StudyID, err)
	}
	opsf("study %s: %d tasks, classifier %s (flow %d), %d grid configurations",
		cfg.StudyID, len(tasks), clf.ID, clf.FlowID, len(configs))

	res := &Result{GridSize: len(configs)}
	var surrogates []TaskSurrogate
	for _, taskID := range tasks {
		data, err := r.Loader.LoadAndValidate(ctx, dataset.Request{
			TaskID:  taskID,
			FlowID:  clf.FlowID,
			NumRuns: cfg.NumRuns,
			Space:   clf.Space,
			Scoring: cfg.Scoring,
		})
		if errors.Is(err, dataset.ErrInsufficientData) {
			opsf("Error at task %d: %v", taskID, err)
			res.Skipped = append(res.Skipped, SkippedTask{TaskID: taskID, Reason: err.Error()})
			continue
		}
		if err != nil {
			return nil, err
		}
		rows, cols := data.Shape()
		diagf("Dimensions of meta-data task %d: (%d, %d)", taskID, rows, cols-1)

		model, columns, err := r.Trainer.Train(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("train surrogate for task %d: %w", taskID, err)
		}
		surrogates = append(surrogates, TaskSurrogate{TaskID: taskID, Model: model, Columns: columns})
		res.Trained = append(res.Trained, taskID)
	}

	table, err := Assemble(gridFrame, clf.Space.Len(), cfg.Scoring, surrogates)
	if err != nil {
		return nil, err
	}
	scoreColumns := table.Columns()[clf.Space.Len():]
	if cfg.NormalizeScores != "" && len(scoreColumns) > 0 {
		table, err = frame.Normalize(table, cfg.NormalizeScores, scoreColumns...)
		if err != nil {
			return nil, err
		}
	}
	res.Table = table

	if err := r.write(ctx, clf, table, scoreColumns, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) write(ctx context.Context, clf searchspace.Classifier, table *frame.Frame, scoreColumns []string, res *Result) error {
	cfg := r.Config
	fsys := r.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if err := fsys.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	relation := "surrogate_" + clf.ID
	comments := []string{HeaderComment, version.String()}
	path := filepath.Join(cfg.OutputDir, OutputName(clf.ID, cfg.GridSize))
	if err := writeWith(fsys, path, func(w io.Writer) error {
		return arff.Write(w, relation, comments, table)
	}); err != nil {
		return err
	}
	res.OutputPath = path
	opsf("wrote %s (%d rows, %d score columns)", path, table.Rows(), len(scoreColumns))

	if cfg.Report && len(scoreColumns) > 0 {
		base := strings.TrimSuffix(path, ".arff")
		renders := []struct {
			path   string
			render func(io.Writer, string, *frame.Frame, []string) error
		}{
			{base + ".png", report.WritePNG},
			{base + ".html", report.WriteHTML},
		}
		for _, rr := range renders {
			if err := writeWith(fsys, rr.path, func(w io.Writer) error {
				return rr.render(w, relation, table, scoreColumns)
			}); err != nil {
				return err
			}
			res.Reports = append(res.Reports, rr.path)
		}
	}

	if r.Recorder == nil {
		return nil
	}
	rows, cols := table.Shape()
	b := &BuildRecord{
		Classifier:   clf.ID,
		StudyID:      cfg.StudyID,
		Scoring:      cfg.Scoring,
		GridSize:     cfg.GridSize,
		Rows:         rows,
		Columns:      cols,
		TrainedTasks: res.Trained,
		SkippedTasks: make([]int, 0, len(res.Skipped)),
		OutputPath:   path,
		TableHash:    table.Hash(),
	}
	for _, s := range res.Skipped {
		b.SkippedTasks = append(b.SkippedTasks, s.TaskID)
	}
	if err := r.Recorder.RecordBuild(ctx, b); err != nil {
		return fmt.Errorf("record build: %w", err)
	}
	res.Build = b
	diagf("recorded build %s", b.ID)
	return nil
}

// writeWith renders into memory and then replaces path atomically.
func writeWith(fsys fsutil.FileSystem, path string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	return fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0o644)
}
