package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/fleet-ops-api/internal/models"
	"github.com/noah-isme/fleet-ops-api/internal/repository"
)

// SchemaFunc prepares persistent storage. Nil for the memory store.
type SchemaFunc func(ctx context.Context) error

// BootstrapConfig names the administrator ensured at startup.
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
	AdminName     string
}

// Bootstrap is the one-time startup step: schema first, then the admin
// account. Running it again changes nothing.
type Bootstrap struct {
	store  repository.Store
	schema SchemaFunc
	config BootstrapConfig
	logger *zap.Logger
	cost   int
}

// NewBootstrap constructs the startup routine.
func NewBootstrap(store repository.Store, schema SchemaFunc, config BootstrapConfig, logger *zap.Logger) *Bootstrap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrap{store: store, schema: schema, config: config, logger: logger, cost: bcrypt.DefaultCost}
}

// Run ensures the schema and the admin user. It reports whether the admin was created.
func (b *Bootstrap) Run(ctx context.Context) (bool, error) {
	if b.schema != nil {
		if err := b.schema(ctx); err != nil {
			return false, fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	if b.config.AdminUsername == "" {
		return false, nil
	}

	created := false
	err := b.store.WithinTx(ctx, func(tx repository.Store) error {
		_, err := tx.Users().GetByUsername(ctx, b.config.AdminUsername)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lookup admin: %w", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(b.config.AdminPassword), b.cost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		name := b.config.AdminName
		if name == "" {
			name = b.config.AdminUsername
		}
		if err := tx.Users().Create(ctx, &models.User{
			Username:     b.config.AdminUsername,
			PasswordHash: string(hash),
			FullName:     name,
			Role:         models.RoleAdmin,
		}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil
			}
			return fmt.Errorf("create admin: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		b.logger.Info("bootstrap admin created", zap.String("username", b.config.AdminUsername))
	}
	return created, nil
}
