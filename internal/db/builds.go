package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/surrogate/internal/pipeline"
)

// BuildStore persists the history of surrogate table builds.
type BuildStore struct {
	db *sql.DB
}

var _ pipeline.BuildRecorder = (*BuildStore)(nil)

// NewBuildStore creates a new BuildStore.
func NewBuildStore(db *sql.DB) *BuildStore {
	return &BuildStore{db: db}
}

// RecordBuild persists b. If ID is empty, a UUID is generated; if CreatedAt
// is zero, the current time is used.
func (s *BuildStore) RecordBuild(ctx context.Context, b *pipeline.BuildRecord) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt == 0 {
		b.CreatedAt = time.Now().UnixNano()
	}
	trained, err := json.Marshal(nonNil(b.TrainedTasks))
	if err != nil {
		return err
	}
	skipped, err := json.Marshal(nonNil(b.SkippedTasks))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO surrogate_builds (
			build_id, classifier, study_id, scoring, grid_size, num_rows, num_columns,
			trained_tasks_json, skipped_tasks_json, output_path, table_hash, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Classifier, b.StudyID, b.Scoring, b.GridSize, b.Rows, b.Columns,
		string(trained), string(skipped), b.OutputPath, b.TableHash, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// ListByClassifier returns the builds of one classifier, newest first.
func (s *BuildStore) ListByClassifier(ctx context.Context, classifier string) ([]*pipeline.BuildRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT build_id, classifier, study_id, scoring, grid_size, num_rows, num_columns,
		       trained_tasks_json, skipped_tasks_json, output_path, table_hash, created_at
		FROM surrogate_builds
		WHERE classifier = ?
		ORDER BY created_at DESC`, classifier)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var builds []*pipeline.BuildRecord
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// Get returns a single build by ID.
func (s *BuildStore) Get(ctx context.Context, buildID string) (*pipeline.BuildRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT build_id, classifier, study_id, scoring, grid_size, num_rows, num_columns,
		       trained_tasks_json, skipped_tasks_json, output_path, table_hash, created_at
		FROM surrogate_builds
		WHERE build_id = ?`, buildID)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build %s not found", buildID)
	}
	return b, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*pipeline.BuildRecord, error) {
	var b pipeline.BuildRecord
	var trained, skipped string
	if err := row.Scan(
		&b.ID, &b.Classifier, &b.StudyID, &b.Scoring, &b.GridSize, &b.Rows, &b.Columns,
		&trained, &skipped, &b.OutputPath, &b.TableHash, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(trained), &b.TrainedTasks); err != nil {
		return nil, fmt.Errorf("decode trained tasks: %w", err)
	}
	if err := json.Unmarshal([]byte(skipped), &b.SkippedTasks); err != nil {
		return nil, fmt.Errorf("decode skipped tasks: %w", err)
	}
	return &b, nil
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
