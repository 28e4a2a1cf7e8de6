// Package postgres implements identity.Repository on PostgreSQL through
// database/sql and the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/MrEthical07/authcore/identity"
)

const uniqueViolation = "23505"

const selectColumns = `id, email, name, password_hash, role, status, email_verified,
       two_factor_enabled, two_factor_secret, created_at, updated_at`

// Repository persists identities in the identities table.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens a pgx-backed *sql.DB and verifies connectivity.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("database url is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

var _ identity.Repository = (*Repository)(nil)

func (r *Repository) FindByEmail(ctx context.Context, email string) (identity.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM identities WHERE email = $1`,
		identity.NormalizeEmail(email))
	return scan(row)
}

func (r *Repository) FindByID(ctx context.Context, id string) (identity.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return identity.Identity{}, identity.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM identities WHERE id = $1`, id)
	return scan(row)
}

func (r *Repository) Create(ctx context.Context, ident identity.Identity) (identity.Identity, error) {
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	ident.Email = identity.NormalizeEmail(ident.Email)
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
	now := r.now().UTC()
	ident.CreatedAt, ident.UpdatedAt = now, now

	_, err = r.db.ExecContext(ctx, `INSERT INTO identities
        (id, email, name, password_hash, role, status, email_verified,
         two_factor_enabled, two_factor_secret, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ident.ID, ident.Email, ident.Name, ident.PasswordHash, ident.Role, string(ident.Status),
		ident.EmailVerified, ident.TwoFactorEnabled, ident.TwoFactorSecret, ident.CreatedAt, ident.UpdatedAt)
	if err != nil {
		return identity.Identity{}, translate(err)
	}
	return ident, nil
}

func (r *Repository) UpdateCredential(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx, `UPDATE identities SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, r.now().UTC())
}

func (r *Repository) UpdateTwoFactor(ctx context.Context, id string, enabled bool, secret string) error {
	secret, err := identity.CheckTwoFactor(enabled, secret)
	if err != nil {
		return err
	}
	return r.exec(ctx, `UPDATE identities SET two_factor_enabled = $2, two_factor_secret = $3, updated_at = $4 WHERE id = $1`,
		id, enabled, secret, r.now().UTC())
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status identity.Status) error {
	if !status.Valid() {
		return identity.ErrInvalidStatus
	}
	return r.exec(ctx, `UPDATE identities SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), r.now().UTC())
}

func (r *Repository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE identities SET email_verified = TRUE, updated_at = $2 WHERE id = $1`,
		id, r.now().UTC())
}

func (r *Repository) exec(ctx context.Context, query string, id string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return identity.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return translate(err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func scan(row *sql.Row) (identity.Identity, error) {
	var (
		ident  identity.Identity
		status string
	)
	err := row.Scan(&ident.ID, &ident.Email, &ident.Name, &ident.PasswordHash, &ident.Role, &status,
		&ident.EmailVerified, &ident.TwoFactorEnabled, &ident.TwoFactorSecret, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.Identity{}, identity.ErrNotFound
		}
		return identity.Identity{}, err
	}
	ident.Status = identity.Status(status)
	return ident, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return identity.ErrDuplicateEmail
	}
	return err
}
