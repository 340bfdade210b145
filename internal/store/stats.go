package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath            string      `json:"db_path"`
	DBSizeBytes       int64       `json:"db_size_bytes"`
	ShortTermTotal    int         `json:"short_term_total"`
	ShortTermPending  int         `json:"short_term_pending"` // awaiting consolidation
	LongTermTotal     int         `json:"long_term_total"`
	Associations      int         `json:"associations"`
	WorkingSessions   int         `json:"working_sessions"`
	WorkingItems      int         `json:"working_items"`
	JobsCompleted     int         `json:"jobs_completed"`
	JobsFailed        int         `json:"jobs_failed"`
	AvgStoredStrength float64     `json:"avg_stored_strength"`
	Users             []UserStats `json:"users"`
}

// UserStats holds per-user tier counts.
type UserStats struct {
	UserID    string `json:"user_id"`
	ShortTerm int    `json:"short_term"`
	LongTerm  int    `json:"long_term"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM short_term_memories`).Scan(&st.ShortTermTotal)
	s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM short_term_memories WHERE should_consolidate = 1 AND consolidated_at IS NULL`).
		Scan(&st.ShortTermPending)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM long_term_memories`).Scan(&st.LongTermTotal)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_associations`).Scan(&st.Associations)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM working_memory_states`).Scan(&st.WorkingSessions)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM working_memory_items`).Scan(&st.WorkingItems)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM consolidation_jobs WHERE status = 'completed'`).Scan(&st.JobsCompleted)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM consolidation_jobs WHERE status = 'failed'`).Scan(&st.JobsFailed)
	s.db.QueryRowContext(ctx, `SELECT COALESCE(AVG(strength), 0) FROM long_term_memories`).Scan(&st.AvgStoredStrength)

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id,
		       SUM(CASE WHEN tier = 's' THEN cnt ELSE 0 END),
		       SUM(CASE WHEN tier = 'l' THEN cnt ELSE 0 END)
		FROM (
			SELECT user_id, 's' AS tier, COUNT(*) AS cnt FROM short_term_memories GROUP BY user_id
			UNION ALL
			SELECT user_id, 'l' AS tier, COUNT(*) AS cnt FROM long_term_memories GROUP BY user_id
		)
		GROUP BY user_id ORDER BY user_id`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var u UserStats
		rows.Scan(&u.UserID, &u.ShortTerm, &u.LongTerm)
		st.Users = append(st.Users, u)
	}

	return st, nil
}
