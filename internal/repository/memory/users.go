package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
)

type userStore struct{ s *Store }

func (u userStore) Create(_ context.Context, user *models.User) error {
	defer u.s.write()()
	if _, exists := u.s.data.users[user.Username]; exists {
		return repository.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	u.s.data.users[user.Username] = *user
	return nil
}

func (u userStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	defer u.s.read()()
	user, ok := u.s.data.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}
