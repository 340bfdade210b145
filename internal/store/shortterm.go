package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quillon/agent-memory/internal/model"
)

// PutShortTermParams holds parameters for storing a short-term memory.
type PutShortTermParams struct {
	UserID            string
	EnterpriseID      string
	SessionID         string
	MemoryType        model.MemoryType
	Content           string
	Payload           string
	Context           map[string]string
	Importance        model.Importance
	Confidence        float64
	ExpiresAt         *time.Time
	ShouldConsolidate bool
}

const shortTermCols = `id, user_id, enterprise_id, session_id, memory_type, content, payload, context,
	importance, confidence, access_count, last_accessed_at, created_at, expires_at,
	consolidated_at, is_processed, should_consolidate`

// PutShortTerm stores a new short-term memory.
func (s *SQLiteStore) PutShortTerm(ctx context.Context, p PutShortTermParams) (*model.ShortTermMemory, error) {
	if !model.ValidTypes[p.MemoryType] {
		return nil, fmt.Errorf("invalid memory type %q", p.MemoryType)
	}
	if p.Importance == "" {
		p.Importance = model.ImportanceMedium
	}
	if !model.ValidImportances[p.Importance] {
		return nil, fmt.Errorf("invalid importance %q", p.Importance)
	}
	if strings.TrimSpace(p.Content) == "" {
		return nil, fmt.Errorf("content is required")
	}

	now := time.Now().UTC()
	id := s.newID()

	var contextJSON *string
	if len(p.Context) > 0 {
		b, _ := json.Marshal(p.Context)
		v := string(b)
		contextJSON = &v
	}
	var payload *string
	if p.Payload != "" {
		payload = &p.Payload
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO short_term_memories
		 (id, user_id, enterprise_id, session_id, memory_type, content, payload, context,
		  importance, confidence, access_count, created_at, expires_at, is_processed, should_consolidate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, 0, ?)`,
		id, p.UserID, nullable(p.EnterpriseID), p.SessionID, string(p.MemoryType),
		p.Content, payload, contextJSON, string(p.Importance), p.Confidence,
		fmtTime(now), fmtTimePtr(p.ExpiresAt), boolInt(p.ShouldConsolidate))
	if err != nil {
		return nil, fmt.Errorf("insert short-term memory: %w", err)
	}

	return &model.ShortTermMemory{
		ID:                id,
		UserID:            p.UserID,
		EnterpriseID:      p.EnterpriseID,
		SessionID:         p.SessionID,
		MemoryType:        p.MemoryType,
		Content:           p.Content,
		Payload:           p.Payload,
		Context:           p.Context,
		Importance:        p.Importance,
		Confidence:        p.Confidence,
		CreatedAt:         now,
		ExpiresAt:         p.ExpiresAt,
		ShouldConsolidate: p.ShouldConsolidate,
	}, nil
}

// GetShortTerm retrieves one record by id and increments its access
// telemetry.
func (s *SQLiteStore) GetShortTerm(ctx context.Context, id string) (*model.ShortTermMemory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+shortTermCols+` FROM short_term_memories WHERE id = ?`, id)
	m, err := scanShortTerm(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.db.ExecContext(ctx,
		`UPDATE short_term_memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
		fmtTime(time.Now()), id)

	return m, nil
}

// GetByUserAndSession returns non-expired short-term memories for a session.
func (s *SQLiteStore) GetByUserAndSession(ctx context.Context, userID, sessionID string) ([]model.ShortTermMemory, error) {
	return s.queryShortTerm(ctx,
		`SELECT `+shortTermCols+` FROM short_term_memories
		 WHERE user_id = ? AND session_id = ?
		   AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY created_at DESC`,
		userID, sessionID, fmtTime(time.Now()))
}

// GetByTypeAndImportance returns non-expired records filtered by type and
// importance.
func (s *SQLiteStore) GetByTypeAndImportance(ctx context.Context, userID string, t model.MemoryType, imp model.Importance) ([]model.ShortTermMemory, error) {
	return s.queryShortTerm(ctx,
		`SELECT `+shortTermCols+` FROM short_term_memories
		 WHERE user_id = ? AND memory_type = ? AND importance = ?
		   AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY created_at DESC`,
		userID, string(t), string(imp), fmtTime(time.Now()))
}

// GetExpired returns records whose TTL has elapsed without consolidation.
func (s *SQLiteStore) GetExpired(ctx context.Context, now time.Time) ([]model.ShortTermMemory, error) {
	return s.queryShortTerm(ctx,
		`SELECT `+shortTermCols+` FROM short_term_memories
		 WHERE expires_at IS NOT NULL AND expires_at <= ? AND consolidated_at IS NULL`,
		fmtTime(now))
}

// GetEligibleForConsolidation returns the candidate set for a consolidation
// run: flagged, never consolidated, and either not low-importance or
// accessed at least reuseThreshold times.
func (s *SQLiteStore) GetEligibleForConsolidation(ctx context.Context, userID, sessionID string, reuseThreshold int) ([]model.ShortTermMemory, error) {
	return s.queryShortTerm(ctx,
		`SELECT `+shortTermCols+` FROM short_term_memories
		 WHERE user_id = ? AND session_id = ?
		   AND should_consolidate = 1 AND consolidated_at IS NULL
		   AND (importance != 'low' OR access_count >= ?)
		   AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY created_at ASC`,
		userID, sessionID, reuseThreshold, fmtTime(time.Now()))
}

// MarkConsolidated stamps records as promoted. Consolidated records are
// read-only from here on.
func (s *SQLiteStore) MarkConsolidated(ctx context.Context, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, fmtTime(now))
	ph := make([]string, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE short_term_memories SET consolidated_at = ?, is_processed = 1
		 WHERE id IN (`+strings.Join(ph, ",")+`) AND consolidated_at IS NULL`,
		args...)
	return err
}

// PurgeExpired hard-deletes records whose TTL elapsed without
// consolidation. Returns the number deleted.
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM short_term_memories
		 WHERE expires_at IS NOT NULL AND expires_at <= ? AND consolidated_at IS NULL`,
		fmtTime(now))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) queryShortTerm(ctx context.Context, query string, args ...interface{}) ([]model.ShortTermMemory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ShortTermMemory
	for rows.Next() {
		m, err := scanShortTerm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanShortTerm(row scanner) (*model.ShortTermMemory, error) {
	var m model.ShortTermMemory
	var enterprise, payload, contextJSON, lastAccessed, expiresAt, consolidatedAt sql.NullString
	var createdAt, memType, importance string
	var isProcessed, shouldConsolidate int

	err := row.Scan(
		&m.ID, &m.UserID, &enterprise, &m.SessionID, &memType, &m.Content,
		&payload, &contextJSON, &importance, &m.Confidence, &m.AccessCount,
		&lastAccessed, &createdAt, &expiresAt, &consolidatedAt,
		&isProcessed, &shouldConsolidate,
	)
	if err != nil {
		return nil, err
	}

	m.MemoryType = model.MemoryType(memType)
	m.Importance = model.Importance(importance)
	m.CreatedAt = parseTime(createdAt)
	m.EnterpriseID = enterprise.String
	m.Payload = payload.String
	m.LastAccessedAt = parseTimePtr(lastAccessed)
	m.ExpiresAt = parseTimePtr(expiresAt)
	m.ConsolidatedAt = parseTimePtr(consolidatedAt)
	m.IsProcessed = isProcessed != 0
	m.ShouldConsolidate = shouldConsolidate != 0
	if contextJSON.Valid {
		json.Unmarshal([]byte(contextJSON.String), &m.Context)
	}

	return &m, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
