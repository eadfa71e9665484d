package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/surrogate/internal/monitoring"
	"github.com/banshee-data/surrogate/internal/openml"
	"github.com/banshee-data/surrogate/internal/timeutil"
)

// CachedRepository serves study task lists and run listings from the
// database, fetching from the wrapped repository on a miss. With a zero
// MaxAge entries never expire.
type CachedRepository struct {
	db   *DB
	next openml.Repository

	MaxAge time.Duration
	Clock  timeutil.Clock
}

var _ openml.Repository = (*CachedRepository)(nil)

// NewCachedRepository wraps next with the cache stored in db.
func NewCachedRepository(db *DB, next openml.Repository) *CachedRepository {
	return &CachedRepository{db: db, next: next, Clock: timeutil.RealClock{}}
}

func (r *CachedRepository) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

// stale reports whether an entry fetched at fetchedAt (UnixNano) is too old.
func (r *CachedRepository) stale(fetchedAt int64) bool {
	return r.MaxAge > 0 && r.now().Sub(time.Unix(0, fetchedAt)) > r.MaxAge
}

// StudyTasks implements openml.Repository.
func (r *CachedRepository) StudyTasks(ctx context.Context, studyID string) ([]int, error) {
	tasks, err := r.cachedStudyTasks(ctx, studyID)
	if err != nil {
		return nil, err
	}
	if len(tasks) > 0 {
		monitoring.Tagf("cache", "study %s: %d tasks from cache", studyID, len(tasks))
		return tasks, nil
	}

	tasks, err = r.next.StudyTasks(ctx, studyID)
	if err != nil {
		return nil, err
	}
	if err := r.storeStudyTasks(ctx, studyID, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// TaskFlowRuns implements openml.Repository. Empty listings are cached too.
func (r *CachedRepository) TaskFlowRuns(ctx context.Context, q openml.RunQuery) ([]openml.Run, error) {
	runs, hit, err := r.cachedRuns(ctx, q)
	if err != nil {
		return nil, err
	}
	if hit {
		monitoring.Tagf("cache", "%s: %d runs from cache", q.Key(), len(runs))
		return runs, nil
	}

	runs, err = r.next.TaskFlowRuns(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := r.storeRuns(ctx, q, runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *CachedRepository) cachedStudyTasks(ctx context.Context, studyID string) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id, fetched_at FROM study_tasks WHERE study_id = ? ORDER BY position`, studyID)
	if err != nil {
		return nil, fmt.Errorf("query study tasks: %w", err)
	}
	defer rows.Close()

	var tasks []int
	expired := false
	for rows.Next() {
		var id int
		var fetchedAt int64
		if err := rows.Scan(&id, &fetchedAt); err != nil {
			return nil, err
		}
		expired = expired || r.stale(fetchedAt)
		tasks = append(tasks, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if expired {
		return nil, nil
	}
	return tasks, nil
}

func (r *CachedRepository) storeStudyTasks(ctx context.Context, studyID string, tasks []int) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM study_tasks WHERE study_id = ?`, studyID); err != nil {
			return err
		}
		now := r.now().UnixNano()
		for i, id := range tasks {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO study_tasks (study_id, position, task_id, fetched_at) VALUES (?, ?, ?, ?)`,
				studyID, i, id, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CachedRepository) cachedRuns(ctx context.Context, q openml.RunQuery) ([]openml.Run, bool, error) {
	key := q.Key()
	var fetchedAt int64
	err := r.db.QueryRowContext(ctx, `SELECT fetched_at FROM run_queries WHERE query_key = ?`, key).Scan(&fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query run cache: %w", err)
	}
	if r.stale(fetchedAt) {
		return nil, false, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, setup_id, value, parameters_json
		FROM runs
		WHERE query_key = ?
		ORDER BY run_id`, key)
	if err != nil {
		return nil, false, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []openml.Run{}
	for rows.Next() {
		var run openml.Run
		var params string
		if err := rows.Scan(&run.RunID, &run.SetupID, &run.Value, &params); err != nil {
			return nil, false, err
		}
		if err := json.Unmarshal([]byte(params), &run.Parameters); err != nil {
			return nil, false, fmt.Errorf("decode parameters of run %d: %w", run.RunID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return runs, true, nil
}

func (r *CachedRepository) storeRuns(ctx context.Context, q openml.RunQuery, runs []openml.Run) error {
	key := q.Key()
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE query_key = ?`, key); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO run_queries (query_key, task_id, flow_id, measure, run_limit, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			key, q.TaskID, q.FlowID, q.Measure, q.Limit, r.now().UnixNano()); err != nil {
			return err
		}
		for _, run := range runs {
			params := run.Parameters
			if params == nil {
				params = map[string]string{}
			}
			b, err := json.Marshal(params)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO runs (query_key, run_id, setup_id, value, parameters_json)
				VALUES (?, ?, ?, ?, ?)`,
				key, run.RunID, run.SetupID, run.Value, string(b)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CachedRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("write cache: %w", err)
	}
	return tx.Commit()
}
