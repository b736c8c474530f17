package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// UserRepository handles user lookups needed by the booking engine
type UserRepository struct {
	db sqlx.ExtContext
}

// NewUserRepository creates a new user repository
func NewUserRepository(db sqlx.ExtContext) *UserRepository {
	return &UserRepository{db: db}
}

// GetUserEmail returns the notification address of a user, or "" when none is on file
func (r *UserRepository) GetUserEmail(ctx context.Context, id uuid.UUID) (string, error) {
	var email sql.NullString
	err := sqlx.GetContext(ctx, r.db, &email, `SELECT email FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get user email: %w", err)
	}
	return email.String, nil
}
