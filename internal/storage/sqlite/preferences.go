package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetPreference returns the stored value for userID/key and whether it exists.
func (s *SQLiteStore) GetPreference(ctx context.Context, userID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM preferences WHERE user_id = ? AND key = ?", userID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get preference: %w", err)
	}
	return value, true, nil
}

// SetPreference upserts a preference; the last write wins.
func (s *SQLiteStore) SetPreference(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}
	return nil
}
