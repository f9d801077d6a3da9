package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"blog-platform/internal/domain"
)

var (
	// ErrVersionConflict indica que el registro cambió desde que fue leído.
	ErrVersionConflict = errors.New("user version conflict")
	ErrDuplicateEmail  = errors.New("email already registered")
)

const pgUniqueViolation = "23505"

// UserRepository define el contrato de persistencia para usuarios.
// Las lecturas faltantes devuelven pgx.ErrNoRows.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	// Update persiste el registro completo si user.Version coincide con el guardado
	// y devuelve el usuario con la versión incrementada.
	Update(ctx context.Context, user domain.User) (domain.User, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `
	id, name, email, role, password_hash, is_email_verified,
	email_verification_token, password_reset_token, password_reset_expires,
	login_attempts, lock_until, refresh_tokens, last_login, is_active,
	version, created_at, updated_at
`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	if user.Version == 0 {
		user.Version = 1
	}
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		string(user.Role),
		user.PasswordHash,
		user.IsEmailVerified,
		user.EmailVerificationToken,
		user.PasswordResetToken,
		user.PasswordResetExpires,
		user.LoginAttempts,
		user.LockUntil,
		sessionList(user.RefreshTokens),
		user.LastLogin,
		user.IsActive,
		user.Version,
		user.CreatedAt,
		user.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) Update(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
		UPDATE users SET
			name = $2,
			email = $3,
			role = $4,
			password_hash = $5,
			is_email_verified = $6,
			email_verification_token = $7,
			password_reset_token = $8,
			password_reset_expires = $9,
			login_attempts = $10,
			lock_until = $11,
			refresh_tokens = $12,
			last_login = $13,
			is_active = $14,
			version = version + 1,
			updated_at = $16
		WHERE id = $1 AND version = $15
		RETURNING version, updated_at
	`
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		string(user.Role),
		user.PasswordHash,
		user.IsEmailVerified,
		user.EmailVerificationToken,
		user.PasswordResetToken,
		user.PasswordResetExpires,
		user.LoginAttempts,
		user.LockUntil,
		sessionList(user.RefreshTokens),
		user.LastLogin,
		user.IsActive,
		user.Version,
		now,
	).Scan(&user.Version, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrVersionConflict
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&role,
		&u.PasswordHash,
		&u.IsEmailVerified,
		&u.EmailVerificationToken,
		&u.PasswordResetToken,
		&u.PasswordResetExpires,
		&u.LoginAttempts,
		&u.LockUntil,
		&u.RefreshTokens,
		&u.LastLogin,
		&u.IsActive,
		&u.Version,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}

func sessionList(tokens []domain.RefreshToken) []domain.RefreshToken {
	if tokens == nil {
		return []domain.RefreshToken{}
	}
	return tokens
}
