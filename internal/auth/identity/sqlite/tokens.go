package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/northbeam/tokend/internal/auth/domain"
)

func (s *Store) GetAuthToken(ctx context.Context, userID, provider, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_tokens WHERE user_id = ? AND provider = ? AND name = ?`,
		userID, provider, name,
	).Scan(&value)
	if err != nil {
		return "", mapNotFound(err)
	}
	return value, nil
}

// SetAuthToken upserts the single (user, provider, name) row; the unique
// key makes overwrite-on-set the only possible behavior.
func (s *Store) SetAuthToken(ctx context.Context, userID, provider, name, value string, expiresAt *time.Time) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_tokens (user_id, provider, name, value, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, provider, name)
		 DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		userID, provider, name, value, mapOptionalTime(expiresAt), now, now,
	)
	return err
}

func (s *Store) RemoveAuthToken(ctx context.Context, userID, provider, name string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_tokens WHERE user_id = ? AND provider = ? AND name = ?`,
		userID, provider, name,
	)
	return err
}

func (s *Store) ListAuthTokens(ctx context.Context, provider, name string) ([]domain.AuthToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, provider, name, value, expires_at, created_at, updated_at
		 FROM user_tokens WHERE provider = ? AND name = ?`,
		provider, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.AuthToken
	for rows.Next() {
		var (
			t         domain.AuthToken
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&t.UserID, &t.Provider, &t.Name, &t.Value, &expiresAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.ExpiresAt = mapNullTimePtr(expiresAt)
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// DeleteAuthTokens removes the given rows in a single transaction so a
// sweeper run commits each token type as one batch.
func (s *Store) DeleteAuthTokens(ctx context.Context, tokens []domain.AuthToken) error {
	if len(tokens) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	stmt, err := tx.PrepareContext(ctx,
		`DELETE FROM user_tokens WHERE user_id = ? AND provider = ? AND name = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range tokens {
		if _, err := stmt.ExecContext(ctx, t.UserID, t.Provider, t.Name); err != nil {
			return err
		}
	}

	return tx.Commit()
}
