package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/aquabill/internal/model"
)

// CreateUser создаёт нового пользователя и возвращает его идентификатор.
func (r *PostgresRepository) CreateUser(ctx context.Context, email, name string, passwordHash []byte, role model.Role) (int64, error) {
	var id int64
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (email, name, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id`,
			email, name, passwordHash, string(role),
		).Scan(&id)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

const userColumns = `id, email, name, password_hash, role, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
}

// ListUsers возвращает всех пользователей, упорядоченных по имени.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

// SetUserRole назначает роль пользователю с указанным email.
func (r *PostgresRepository) SetUserRole(ctx context.Context, email string, role model.Role) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2 WHERE email = $1`, email, string(role))
		if err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}
