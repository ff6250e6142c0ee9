package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecotrack/internal/config"
	"ecotrack/internal/db"
	"ecotrack/internal/logger"
	"ecotrack/internal/redis"
)

// backends holds the backing stores. Close releases both.
type backends struct {
	db    *db.DB
	redis *redis.Client
}

func setupInfra(ctx context.Context, cfg config.Config) (*backends, error) {
	database, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, database.DB); err != nil {
		_ = database.Close()
		return nil, err
	}
	logger.Info("database ready", nil)

	rdb, err := redis.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})

	return &backends{db: database, redis: rdb}, nil
}

// check reports the first backing store that does not answer.
func (i *backends) check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := i.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return i.redis.Check(ctx)
}

func (i *backends) Close() error {
	return errors.Join(i.redis.Close(), i.db.Close())
}
