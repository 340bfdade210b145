package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quillon/agent-memory/internal/model"
)

const jobCols = `id, user_id, session_id, status, input_ids, output_ids,
	processed, consolidated, reinforced, patterns_found, error,
	created_at, started_at, completed_at`

// CreateJob records a new pending consolidation job.
func (s *SQLiteStore) CreateJob(ctx context.Context, userID, sessionID string) (*model.ConsolidationJob, error) {
	job := &model.ConsolidationJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Status:    model.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consolidation_jobs (id, user_id, session_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		job.ID, userID, sessionID, string(model.JobPending), fmtTime(job.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// StartJob transitions pending -> processing. The WHERE guard makes the
// transition happen exactly once.
func (s *SQLiteStore) StartJob(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE consolidation_jobs SET status = 'processing', started_at = ?
		 WHERE id = ? AND status = 'pending'`,
		fmtTime(now), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not pending", id)
	}
	return nil
}

// CompleteJob records the run's results and transitions processing ->
// completed.
func (s *SQLiteStore) CompleteJob(ctx context.Context, id string, inputIDs, outputIDs []string, stats model.JobStats, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE consolidation_jobs
		 SET status = 'completed', input_ids = ?, output_ids = ?,
		     processed = ?, consolidated = ?, reinforced = ?, patterns_found = ?,
		     completed_at = ?
		 WHERE id = ? AND status = 'processing'`,
		jsonOrNil(inputIDs), jsonOrNil(outputIDs),
		stats.Processed, stats.Consolidated, stats.Reinforced, stats.PatternsFound,
		fmtTime(now), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not processing", id)
	}
	return nil
}

// FailJob captures the error and transitions processing -> failed. Failed
// jobs are not retried automatically; re-triggering is an explicit caller
// decision.
func (s *SQLiteStore) FailJob(ctx context.Context, id, errMsg string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE consolidation_jobs SET status = 'failed', error = ?, completed_at = ?
		 WHERE id = ? AND status IN ('pending', 'processing')`,
		errMsg, fmtTime(now), id)
	return err
}

// GetJob retrieves one job by id.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.ConsolidationJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobCols+` FROM consolidation_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return job, err
}

// ListJobs returns recent jobs for a session, newest first.
func (s *SQLiteStore) ListJobs(ctx context.Context, userID, sessionID string, limit int) ([]model.ConsolidationJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobCols+` FROM consolidation_jobs
		 WHERE user_id = ? AND session_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		userID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ConsolidationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

func scanJob(row scanner) (*model.ConsolidationJob, error) {
	var j model.ConsolidationJob
	var status, createdAt string
	var inputIDs, outputIDs, errMsg, startedAt, completedAt sql.NullString

	err := row.Scan(&j.ID, &j.UserID, &j.SessionID, &status, &inputIDs, &outputIDs,
		&j.Stats.Processed, &j.Stats.Consolidated, &j.Stats.Reinforced,
		&j.Stats.PatternsFound, &errMsg, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	j.Status = model.JobStatus(status)
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.StartedAt = parseTimePtr(startedAt)
	j.CompletedAt = parseTimePtr(completedAt)
	if inputIDs.Valid {
		json.Unmarshal([]byte(inputIDs.String), &j.InputIDs)
	}
	if outputIDs.Valid {
		json.Unmarshal([]byte(outputIDs.String), &j.OutputIDs)
	}
	return &j, nil
}
