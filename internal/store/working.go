package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/quillon/agent-memory/internal/model"
)

// EnsureWorkingState creates the per-session container if it does not
// exist yet. Idempotent: insert against an existing session is a no-op.
func (s *SQLiteStore) EnsureWorkingState(ctx context.Context, userID, sessionID string, capacity int) error {
	if capacity <= 0 {
		capacity = model.DefaultCapacity
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO working_memory_states (user_id, session_id, capacity, updated_at)
		 VALUES (?, ?, ?, ?)`,
		userID, sessionID, capacity, fmtTime(time.Now()))
	return err
}

// GetWorkingState loads the container and its items. A session that was
// never written returns an empty state with the default capacity.
func (s *SQLiteStore) GetWorkingState(ctx context.Context, userID, sessionID string) (*model.WorkingMemoryState, error) {
	state := &model.WorkingMemoryState{
		UserID:    userID,
		SessionID: sessionID,
		Capacity:  model.DefaultCapacity,
	}

	var focus sql.NullString
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT capacity, focus_item, updated_at FROM working_memory_states
		 WHERE user_id = ? AND session_id = ?`,
		userID, sessionID).Scan(&state.Capacity, &focus, &updatedAt)
	if err == nil {
		state.FocusItem = focus.String
		state.UpdatedAt = parseTime(updatedAt)
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, item_type, activation, last_accessed, access_count, associations, source, created_at
		 FROM working_memory_items
		 WHERE user_id = ? AND session_id = ?
		 ORDER BY created_at ASC`,
		userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it model.WorkingMemoryItem
		var itemType, lastAccessed, createdAt string
		var assoc, source sql.NullString
		if err := rows.Scan(&it.ID, &it.Content, &itemType, &it.Activation,
			&lastAccessed, &it.AccessCount, &assoc, &source, &createdAt); err != nil {
			return nil, err
		}
		it.Type = model.WorkingItemType(itemType)
		it.LastAccessed = parseTime(lastAccessed)
		it.CreatedAt = parseTime(createdAt)
		it.Source = source.String
		if assoc.Valid {
			json.Unmarshal([]byte(assoc.String), &it.Associations)
		}
		state.Items = append(state.Items, it)
	}
	return state, rows.Err()
}

// InsertWorkingItem persists a new item. The id is assigned if empty.
func (s *SQLiteStore) InsertWorkingItem(ctx context.Context, userID, sessionID string, it *model.WorkingMemoryItem) error {
	if it.ID == "" {
		it.ID = s.newID()
	}
	now := time.Now().UTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	if it.LastAccessed.IsZero() {
		it.LastAccessed = now
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO working_memory_items
		 (id, user_id, session_id, content, item_type, activation, last_accessed, access_count, associations, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, userID, sessionID, it.Content, string(it.Type), it.Activation,
		fmtTime(it.LastAccessed), it.AccessCount, jsonOrNil(it.Associations),
		nullable(it.Source), fmtTime(it.CreatedAt))
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE working_memory_states SET updated_at = ? WHERE user_id = ? AND session_id = ?`,
		fmtTime(now), userID, sessionID)
	return err
}

// AccessWorkingItem resets an item's activation to 1.0 and bumps its
// telemetry.
func (s *SQLiteStore) AccessWorkingItem(ctx context.Context, itemID string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE working_memory_items
		 SET activation = 1.0, last_accessed = ?, access_count = access_count + 1
		 WHERE id = ?`, fmtTime(now), itemID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWorkingItem removes an evicted item.
func (s *SQLiteStore) DeleteWorkingItem(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM working_memory_items WHERE id = ?`, itemID)
	return err
}

// SetFocus marks the focus item of a session.
func (s *SQLiteStore) SetFocus(ctx context.Context, userID, sessionID, itemID string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM working_memory_items WHERE id = ? AND user_id = ? AND session_id = ?`,
		itemID, userID, sessionID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE working_memory_states SET focus_item = ?, updated_at = ?
		 WHERE user_id = ? AND session_id = ?`,
		itemID, fmtTime(time.Now()), userID, sessionID)
	return err
}
