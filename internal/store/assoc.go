package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quillon/agent-memory/internal/model"
)

const assocCols = `from_id, to_id, assoc_type, strength, confidence, created_at, last_reinforced_at`

// GetAssociation fetches one edge by its (from, to, type) key.
func (s *SQLiteStore) GetAssociation(ctx context.Context, fromID, toID string, t model.AssociationType) (*model.MemoryAssociation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assocCols+` FROM memory_associations
		 WHERE from_id = ? AND to_id = ? AND assoc_type = ?`,
		fromID, toID, string(t))
	a, err := scanAssociation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

// InsertAssociation creates a new edge. The schema rejects self-loops.
func (s *SQLiteStore) InsertAssociation(ctx context.Context, a *model.MemoryAssociation) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.LastReinforcedAt.IsZero() {
		a.LastReinforcedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_associations
		 (from_id, to_id, assoc_type, strength, confidence, created_at, last_reinforced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.FromID, a.ToID, string(a.Type), a.Strength, a.Confidence,
		fmtTime(a.CreatedAt), fmtTime(a.LastReinforcedAt))
	if err != nil {
		return fmt.Errorf("insert association: %w", err)
	}
	return nil
}

// BumpAssociation raises an edge's strength toward 1.0 and resets its
// decay clock.
func (s *SQLiteStore) BumpAssociation(ctx context.Context, fromID, toID string, t model.AssociationType, step float64, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memory_associations
		 SET strength = MIN(1.0, strength + ?), last_reinforced_at = ?
		 WHERE from_id = ? AND to_id = ? AND assoc_type = ?`,
		step, fmtTime(now), fromID, toID, string(t))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LinksFrom returns outgoing edges of a memory, optionally filtered by type.
func (s *SQLiteStore) LinksFrom(ctx context.Context, memoryID string, t model.AssociationType) ([]model.MemoryAssociation, error) {
	return s.queryAssociations(ctx, `from_id = ?`, memoryID, t)
}

// LinksTo returns incoming edges of a memory, optionally filtered by type.
func (s *SQLiteStore) LinksTo(ctx context.Context, memoryID string, t model.AssociationType) ([]model.MemoryAssociation, error) {
	return s.queryAssociations(ctx, `to_id = ?`, memoryID, t)
}

func (s *SQLiteStore) queryAssociations(ctx context.Context, where, id string, t model.AssociationType) ([]model.MemoryAssociation, error) {
	query := `SELECT ` + assocCols + ` FROM memory_associations WHERE ` + where
	args := []interface{}{id}
	if t != "" {
		query += ` AND assoc_type = ?`
		args = append(args, string(t))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MemoryAssociation
	for rows.Next() {
		a, err := scanAssociation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAssociation(row scanner) (*model.MemoryAssociation, error) {
	var a model.MemoryAssociation
	var t, createdAt, lastReinforced string
	err := row.Scan(&a.FromID, &a.ToID, &t, &a.Strength, &a.Confidence, &createdAt, &lastReinforced)
	if err != nil {
		return nil, err
	}
	a.Type = model.AssociationType(t)
	a.CreatedAt = parseTime(createdAt)
	a.LastReinforcedAt = parseTime(lastReinforced)
	return &a, nil
}
