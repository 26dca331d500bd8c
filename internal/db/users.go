package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// User is a stored account record.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStore persists user accounts.
type UserStore struct {
	db *sql.DB
}

const userColumns = `id, name, email, password_hash, created_at, updated_at`

// Create inserts a new user. Returns ErrEmailTaken if the email is in use
// (compared case-insensitively).
func (s *UserStore) Create(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.UnixNano(), u.UpdatedAt.UnixNano(),
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Get returns the user with the given id.
func (s *UserStore) Get(ctx context.Context, id string) (User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetByEmail returns the user with the given email, compared case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// Update writes name, email, password hash and updated_at for u.ID.
func (s *UserStore) Update(ctx context.Context, u User) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
		u.Name, u.Email, u.PasswordHash, u.UpdatedAt.UnixNano(), u.ID,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListIDs returns every user id, oldest account first.
func (s *UserStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return ids, nil
}

func (s *UserStore) scanOne(row *sql.Row) (User, error) {
	var u User
	var createdAt, updatedAt int64
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	u.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return u, nil
}
