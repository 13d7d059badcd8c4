package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/northbeam/tokend/internal/auth/domain"
	"github.com/northbeam/tokend/internal/auth/identity"
)

// Lockout policy applied by CheckPassword and TwoFactorSignIn.
const (
	maxFailedAttempts = 5
	lockoutDuration   = 15 * time.Minute
)

// Store is the SQLite-backed identity store. It implements identity.Store
// plus the seeding and migration extras the application wiring needs.
type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return identity.ErrNotFound
	}
	return err
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time
		return &val
	}
	return nil
}

func mapOptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u            domain.User
		totpSecret   sql.NullString
		lockoutUntil sql.NullTime
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Active,
		&u.EmailConfirmed,
		&u.TwoFactorEnabled,
		&totpSecret,
		&u.FailedAttempts,
		&lockoutUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.TOTPSecret = mapNullStringPtr(totpSecret)
	u.LockoutUntil = mapNullTimePtr(lockoutUntil)
	return u, nil
}
