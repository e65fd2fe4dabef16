package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// User is a registered account. PasswordHash never leaves the server; the
// zero json tag keeps it out of API responses.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FullName       string    `json:"fullName"`
	PasswordHash   string    `json:"-"`
	ProfilePicture string    `json:"profilePicture"`
	CreatedAt      time.Time `json:"createdAt"`
}

// uniqueViolation is the postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// CreateUser inserts a new account. Returns ErrDuplicateEmail when the email
// is already registered.
func (s *Store) CreateUser(ctx context.Context, email, fullName, passwordHash string) (*User, error) {
	u := &User{
		ID:           uuid.New().String(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	const query = `
		INSERT INTO users (id, email, full_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query, u.ID, u.Email, u.FullName, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("store: insert user: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the account for email, or ErrNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email = $1", email)
}

// GetUserByID returns the account for id, or ErrNotFound.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) getUser(ctx context.Context, where string, arg string) (*User, error) {
	query := `
		SELECT id, email, full_name, password_hash, COALESCE(profile_picture, ''), created_at
		FROM users WHERE ` + where

	var u User
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.ProfilePicture, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return &u, nil
}

// ListContacts returns every account except excludeID, for the conversation
// sidebar. Ordered by full name for a stable listing.
func (s *Store) ListContacts(ctx context.Context, excludeID string) ([]User, error) {
	const query = `
		SELECT id, email, full_name, COALESCE(profile_picture, ''), created_at
		FROM users WHERE id <> $1
		ORDER BY full_name, id`

	rows, err := s.db.QueryContext(ctx, query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("store: list contacts: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.ProfilePicture, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate contacts: %w", err)
	}
	return users, nil
}

// UpdateProfilePicture sets the profile picture URL for a user and returns
// the updated account.
func (s *Store) UpdateProfilePicture(ctx context.Context, userID, pictureURL string) (*User, error) {
	const query = `UPDATE users SET profile_picture = $2 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, userID, pictureURL)
	if err != nil {
		return nil, fmt.Errorf("store: update profile picture: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.GetUserByID(ctx, userID)
}
