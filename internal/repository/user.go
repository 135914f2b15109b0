package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/chronos/internal/models"
)

var (
	// ErrUserExists is returned when registering a login that is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned when no profile exists for a login.
	ErrUserNotFound = errors.New("user not found")
)

// PostgresUserRepository stores owner profiles in PostgreSQL.
type PostgresUserRepository struct {
	DB *sql.DB
}

// NewPostgresUserRepository creates a repository over db.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// UserExists reports whether login is registered.
func (r *PostgresUserRepository) UserExists(ctx context.Context, login string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE login = $1)`, login).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("UserExists: %w", err)
	}
	return exists, nil
}

// RegisterUser inserts u. It returns ErrUserExists if the login was taken
// between the existence check and the insert.
func (r *PostgresUserRepository) RegisterUser(ctx context.Context, u models.User) error {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (login, display_name, created_at, last_login_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, u.Login, u.DisplayName, u.CreatedAt, u.LastLoginAt)
	if err != nil {
		return fmt.Errorf("RegisterUser: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserExists
	}
	return nil
}

// GetUser returns the profile for login.
func (r *PostgresUserRepository) GetUser(ctx context.Context, login string) (models.User, error) {
	var u models.User
	err := r.DB.QueryRowContext(ctx, `
		SELECT login, display_name, created_at, last_login_at FROM users WHERE login = $1
	`, login).Scan(&u.Login, &u.DisplayName, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("GetUser: %w", err)
	}
	return u, nil
}

// TouchLogin sets the last login time of login to at. Owners holding a
// certificate issued offline get a profile named after their login.
func (r *PostgresUserRepository) TouchLogin(ctx context.Context, login string, at int64) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (login, display_name, created_at, last_login_at)
		VALUES ($1, $1, $2, $2)
		ON CONFLICT (login) DO UPDATE SET last_login_at = EXCLUDED.last_login_at
	`, login, at)
	if err != nil {
		return fmt.Errorf("TouchLogin: %w", err)
	}
	return nil
}
