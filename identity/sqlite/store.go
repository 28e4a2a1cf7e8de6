// Package sqlite implements identity.Repository on SQLite via the pure-Go
// modernc.org/sqlite driver. It backs tests and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/identity/sqlite/migrations"
)

const selectColumns = `id, email, name, password_hash, role, status, email_verified,
       two_factor_enabled, two_factor_secret, created_at, updated_at`

// Store persists identities in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ identity.Repository = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite identity store and applies embedded migrations.
// path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// each connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) FindByEmail(ctx context.Context, email string) (identity.Identity, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM identities WHERE email = ?`,
		identity.NormalizeEmail(email))
	return scan(row)
}

func (s *Store) FindByID(ctx context.Context, id string) (identity.Identity, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM identities WHERE id = ?`, id)
	return scan(row)
}

func (s *Store) Create(ctx context.Context, ident identity.Identity) (identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return identity.Identity{}, err
	}
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	ident.Email = identity.NormalizeEmail(ident.Email)
	if ident.Email == "" {
		return identity.Identity{}, fmt.Errorf("email is required")
	}
	if ident.Role == "" {
		ident.Role = identity.DefaultRole
	}
	if ident.Status == "" {
		ident.Status = identity.StatusActive
	}
	secret, err := identity.CheckTwoFactor(ident.TwoFactorEnabled, ident.TwoFactorSecret)
	if err != nil {
		return identity.Identity{}, err
	}
	ident.TwoFactorSecret = secret
	now := fromMillis(toMillis(s.now()))
	ident.CreatedAt, ident.UpdatedAt = now, now

	_, err = s.sqlDB.ExecContext(ctx, `INSERT INTO identities
        (id, email, name, password_hash, role, status, email_verified,
         two_factor_enabled, two_factor_secret, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ident.ID, ident.Email, ident.Name, ident.PasswordHash, ident.Role, string(ident.Status),
		ident.EmailVerified, ident.TwoFactorEnabled, ident.TwoFactorSecret,
		toMillis(ident.CreatedAt), toMillis(ident.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return identity.Identity{}, identity.ErrDuplicateEmail
		}
		return identity.Identity{}, fmt.Errorf("insert identity: %w", err)
	}
	return ident, nil
}

func (s *Store) UpdateCredential(ctx context.Context, id, passwordHash string) error {
	return s.exec(ctx, `UPDATE identities SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, toMillis(s.now()), id)
}

func (s *Store) UpdateTwoFactor(ctx context.Context, id string, enabled bool, secret string) error {
	secret, err := identity.CheckTwoFactor(enabled, secret)
	if err != nil {
		return err
	}
	return s.exec(ctx, `UPDATE identities SET two_factor_enabled = ?, two_factor_secret = ?, updated_at = ? WHERE id = ?`,
		enabled, secret, toMillis(s.now()), id)
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status identity.Status) error {
	if !status.Valid() {
		return identity.ErrInvalidStatus
	}
	return s.exec(ctx, `UPDATE identities SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(s.now()), id)
}

func (s *Store) MarkEmailVerified(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE identities SET email_verified = 1, updated_at = ? WHERE id = ?`,
		toMillis(s.now()), id)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func scan(row *sql.Row) (identity.Identity, error) {
	var (
		ident            identity.Identity
		status           string
		created, updated int64
	)
	err := row.Scan(&ident.ID, &ident.Email, &ident.Name, &ident.PasswordHash, &ident.Role, &status,
		&ident.EmailVerified, &ident.TwoFactorEnabled, &ident.TwoFactorSecret, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.Identity{}, identity.ErrNotFound
		}
		return identity.Identity{}, err
	}
	ident.Status = identity.Status(status)
	ident.CreatedAt = fromMillis(created)
	ident.UpdatedAt = fromMillis(updated)
	return ident, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// applyMigrations executes each embedded .sql file at most once, in name order.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var n int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, file).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if n > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		tx, err := sqlDB.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}
