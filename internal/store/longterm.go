package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quillon/agent-memory/internal/config"
	"github.com/quillon/agent-memory/internal/decay"
	"github.com/quillon/agent-memory/internal/model"
)

const longTermCols = `id, user_id, enterprise_id, memory_type, content, summary, keywords, embedding,
	importance, confidence, strength, decay_rate, reinforcement_count, access_count,
	last_accessed_at, last_reinforced_at, is_verified, contradicted_by, consolidated_from, created_at`

// InsertLongTerm stores a new long-term memory. Only the consolidation
// engine creates these. The id is assigned if empty.
func (s *SQLiteStore) InsertLongTerm(ctx context.Context, m *model.LongTermMemory) error {
	if m.ID == "" {
		m.ID = s.newID()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.LastReinforcedAt.IsZero() {
		m.LastReinforcedAt = now
	}
	if m.ReinforcementCount == 0 {
		m.ReinforcementCount = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO long_term_memories
		 (id, user_id, enterprise_id, memory_type, content, summary, keywords, embedding,
		  importance, confidence, strength, decay_rate, reinforcement_count, access_count,
		  last_reinforced_at, is_verified, contradicted_by, consolidated_from, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, nullable(m.EnterpriseID), string(m.MemoryType), m.Content, m.Summary,
		jsonOrNil(m.Keywords), jsonOrNil(m.Embedding), string(m.Importance), m.Confidence,
		m.Strength, m.DecayRate, m.ReinforcementCount, fmtTime(m.LastReinforcedAt),
		boolInt(m.IsVerified), jsonOrNil(m.ContradictedBy), jsonOrNil(m.ConsolidatedFrom),
		fmtTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert long-term memory: %w", err)
	}
	return nil
}

// GetLongTerm retrieves one record by id through the read cache.
func (s *SQLiteStore) GetLongTerm(ctx context.Context, id string) (*model.LongTermMemory, error) {
	if v, ok := s.ltCache.Get(id); ok {
		m := v.(model.LongTermMemory)
		return &m, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+longTermCols+` FROM long_term_memories WHERE id = ?`, id)
	m, err := scanLongTerm(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	s.ltCache.Set(id, *m, 1)
	return m, nil
}

// ListLongTermByUser returns a user's long-term memories, optionally
// filtered by type.
func (s *SQLiteStore) ListLongTermByUser(ctx context.Context, userID string, t model.MemoryType, limit int) ([]model.LongTermMemory, error) {
	if limit <= 0 {
		limit = 100
	}
	where := []string{"user_id = ?"}
	args := []interface{}{userID}
	if t != "" {
		where = append(where, "memory_type = ?")
		args = append(args, string(t))
	}
	args = append(args, limit)

	return s.queryLongTerm(ctx,
		`SELECT `+longTermCols+` FROM long_term_memories
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY last_reinforced_at DESC LIMIT ?`, args...)
}

// SearchLongTerm returns FTS relevance candidates for a query. An empty or
// stopword-only query falls back to the most recently reinforced records.
func (s *SQLiteStore) SearchLongTerm(ctx context.Context, userID, query string, limit int) ([]model.LongTermMemory, error) {
	if limit <= 0 {
		limit = 50
	}

	terms := ftsTerms(query)
	if terms == "" {
		return s.ListLongTermByUser(ctx, userID, "", limit)
	}

	return s.queryLongTerm(ctx,
		`SELECT `+prefixCols(longTermCols, "m.")+`
		 FROM long_term_memories m
		 JOIN ltm_fts f ON f.rowid = m.rowid
		 WHERE m.user_id = ? AND ltm_fts MATCH ?
		 ORDER BY rank LIMIT ?`,
		userID, terms, limit)
}

// ReinforceLongTerm increments the reinforcement count, resets the decay
// clock, and rebases the stored strength to the new plateau. The plateau
// is computed by the caller through the decay formula.
func (s *SQLiteStore) ReinforceLongTerm(ctx context.Context, id string, newStrength float64, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE long_term_memories
		 SET reinforcement_count = reinforcement_count + 1,
		     last_reinforced_at = ?, strength = ?
		 WHERE id = ?`,
		fmtTime(now), newStrength, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.ltCache.Del(id)
	return nil
}

// TouchLongTerm records an access without reinforcing.
func (s *SQLiteStore) TouchLongTerm(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE long_term_memories
		 SET access_count = access_count + 1, last_accessed_at = ?
		 WHERE id = ?`, fmtTime(now), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.ltCache.Del(id)
	return nil
}

// ResetReinforcementClock is the light retrieval-time bump: the decay
// clock resets without incrementing the reinforcement count.
func (s *SQLiteStore) ResetReinforcementClock(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE long_term_memories SET last_reinforced_at = ? WHERE id = ?`,
		fmtTime(now), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.ltCache.Del(id)
	return nil
}

// UpdateLongTermDigest replaces a record's merged keywords and summary
// after a reinforce-instead-of-create consolidation.
func (s *SQLiteStore) UpdateLongTermDigest(ctx context.Context, id string, keywords []string, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE long_term_memories SET keywords = ?, summary = ? WHERE id = ?`,
		jsonOrNil(keywords), summary, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.ltCache.Del(id)
	return nil
}

// AddContradiction appends otherID to a record's contradicted_by set.
func (s *SQLiteStore) AddContradiction(ctx context.Context, id, otherID string) error {
	m, err := s.GetLongTerm(ctx, id)
	if err != nil {
		return err
	}
	for _, c := range m.ContradictedBy {
		if c == otherID {
			return nil
		}
	}
	updated := append(m.ContradictedBy, otherID)
	_, err = s.db.ExecContext(ctx,
		`UPDATE long_term_memories SET contradicted_by = ? WHERE id = ?`,
		jsonOrNil(updated), id)
	if err != nil {
		return err
	}
	s.ltCache.Del(id)
	return nil
}

// SetVerified marks a record user-confirmed.
func (s *SQLiteStore) SetVerified(ctx context.Context, id string, verified bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE long_term_memories SET is_verified = ? WHERE id = ?`,
		boolInt(verified), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.ltCache.Del(id)
	return nil
}

// PruneWeak hard-deletes long-term records whose effective strength has
// stayed below the floor past the grace period, along with their edges.
// This is the soft-eviction escape hatch; normal operation just lets
// records decay toward irrelevance.
func (s *SQLiteStore) PruneWeak(ctx context.Context, now time.Time, dcfg config.Decay, floor float64, grace time.Duration) (int, error) {
	cutoff := now.Add(-grace)
	candidates, err := s.queryLongTerm(ctx,
		`SELECT `+longTermCols+` FROM long_term_memories WHERE last_reinforced_at <= ?`,
		fmtTime(cutoff))
	if err != nil {
		return 0, err
	}

	pruned := 0
	for i := range candidates {
		m := &candidates[i]
		if m.Importance == model.ImportanceCritical {
			continue
		}
		if decay.LongTermStrength(m, now, dcfg) >= floor {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM memory_associations WHERE from_id = ? OR to_id = ?`, m.ID, m.ID); err != nil {
			return pruned, err
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM long_term_memories WHERE id = ?`, m.ID); err != nil {
			return pruned, err
		}
		s.ltCache.Del(m.ID)
		pruned++
	}
	return pruned, nil
}

// ExportLongTerm returns all long-term memories for a user (audit/lineage).
func (s *SQLiteStore) ExportLongTerm(ctx context.Context, userID string) ([]model.LongTermMemory, error) {
	return s.queryLongTerm(ctx,
		`SELECT `+longTermCols+` FROM long_term_memories WHERE user_id = ? ORDER BY created_at`,
		userID)
}

func (s *SQLiteStore) queryLongTerm(ctx context.Context, query string, args ...interface{}) ([]model.LongTermMemory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LongTermMemory
	for rows.Next() {
		m, err := scanLongTerm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanLongTerm(row scanner) (*model.LongTermMemory, error) {
	var m model.LongTermMemory
	var enterprise, keywords, embeddingJSON, lastAccessed, contradictedBy, consolidatedFrom sql.NullString
	var memType, importance, lastReinforced, createdAt string
	var isVerified int

	err := row.Scan(
		&m.ID, &m.UserID, &enterprise, &memType, &m.Content, &m.Summary,
		&keywords, &embeddingJSON, &importance, &m.Confidence, &m.Strength,
		&m.DecayRate, &m.ReinforcementCount, &m.AccessCount, &lastAccessed,
		&lastReinforced, &isVerified, &contradictedBy, &consolidatedFrom, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	m.MemoryType = model.MemoryType(memType)
	m.Importance = model.Importance(importance)
	m.EnterpriseID = enterprise.String
	m.LastAccessedAt = parseTimePtr(lastAccessed)
	m.LastReinforcedAt = parseTime(lastReinforced)
	m.CreatedAt = parseTime(createdAt)
	m.IsVerified = isVerified != 0
	if keywords.Valid {
		json.Unmarshal([]byte(keywords.String), &m.Keywords)
	}
	if embeddingJSON.Valid {
		json.Unmarshal([]byte(embeddingJSON.String), &m.Embedding)
	}
	if contradictedBy.Valid {
		json.Unmarshal([]byte(contradictedBy.String), &m.ContradictedBy)
	}
	if consolidatedFrom.Valid {
		json.Unmarshal([]byte(consolidatedFrom.String), &m.ConsolidatedFrom)
	}

	return &m, nil
}

func jsonOrNil(v interface{}) *string {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return nil
		}
	case []float32:
		if len(x) == 0 {
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

// prefixCols qualifies each column in a comma-separated list with a table
// alias, for queries that join the FTS table.
func prefixCols(cols, prefix string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// ftsTerms builds an OR query of sanitized terms for FTS5 matching.
func ftsTerms(query string) string {
	fields := strings.Fields(strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, query))
	if len(fields) == 0 {
		return ""
	}
	for i, f := range fields {
		fields[i] = `"` + f + `"`
	}
	return strings.Join(fields, " OR ")
}
