package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fleet-ops-api/internal/models"
)

// UserRepository handles persistence for operator accounts.
type UserRepository struct {
	q sqlx.ExtContext
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(q sqlx.ExtContext) *UserRepository {
	return &UserRepository{q: q}
}

// Create inserts a user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO users (id, username, password_hash, full_name, role, created_at)
        VALUES (:id, :username, :password_hash, :full_name, :role, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.q, query, user); err != nil {
		return mapWriteError("create user", err)
	}
	return nil
}

// GetByUsername fetches a user by login name.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	const query = `SELECT id, username, password_hash, full_name, role, created_at FROM users WHERE username = $1`
	if err := sqlx.GetContext(ctx, r.q, &user, query, username); err != nil {
		return nil, err
	}
	return &user, nil
}
