package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/leadcrm/internal/config"
)

// Keys under which the session is persisted. They are always cleared together.
const (
	KeyUserToken = "userToken"
	KeyUserData  = "userData"
)

// KeyValueStore is the durable local storage for the credential token and
// the cached user record.
type KeyValueStore interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes every key in one operation. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// OpenStore builds the store selected by STORAGE_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (KeyValueStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		return NewMemoryStore(), nil
	case config.StorageDriverRedis:
		r, err := NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Debug("session storage on redis", zap.String("addr", cfg.Redis.Addr))
		return NewRedisStore(r.Client, cfg.Storage.KeyPrefix), nil
	case config.StorageDriverPostgres:
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		logger.Debug("session storage on postgres")
		return NewPostgresStore(pg.Pool, cfg.Storage.KeyPrefix, pg.Close), nil
	case config.StorageDriverFile, "":
		logger.Debug("session storage on disk", zap.String("path", cfg.Storage.Path))
		return NewFileStore(cfg.Storage.Path), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
