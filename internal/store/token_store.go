package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/showbot/internal/model"
)

// SavePendingToken stores an OAuth request token secret until the user
// returns from the authorize page.
func (s *SQLiteStore) SavePendingToken(ctx context.Context, t model.PendingToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO pending_tokens (token, secret, created_at) VALUES (?, ?, ?)",
		t.Token, t.Secret, t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving pending token: %w", err)
	}
	return nil
}

// TakePendingToken returns and deletes a pending token.
func (s *SQLiteStore) TakePendingToken(ctx context.Context, token string) (*model.PendingToken, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var t model.PendingToken
	err = tx.GetContext(ctx, &t, "SELECT * FROM pending_tokens WHERE token = ?", token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("taking pending token: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taking pending token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM pending_tokens WHERE token = ?", token); err != nil {
		return nil, fmt.Errorf("deleting pending token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing pending token: %w", err)
	}
	return &t, nil
}

// PurgePendingTokens deletes tokens created before olderThan and returns
// how many were removed.
func (s *SQLiteStore) PurgePendingTokens(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM pending_tokens WHERE created_at < ?", olderThan.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purging pending tokens: %w", err)
	}
	return res.RowsAffected()
}
