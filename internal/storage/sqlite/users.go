package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mandor/internal/models"
)

const userColumns = `id, name, email, password_hash, created_at`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// CreateUser registers a new account. Emails are stored lower-cased.
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return models.User{}, invalid("user name must not be empty")
	}
	if !strings.Contains(email, "@") {
		return models.User{}, invalid("email %q is not valid", email)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO users(name, email, password_hash) VALUES(?, ?, ?)`, name, email, passwordHash)
	if err != nil {
		return models.User{}, translateError(fmt.Errorf("insert user: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("user id: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, notFound("user")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches a user by login email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, notFound("user")
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
