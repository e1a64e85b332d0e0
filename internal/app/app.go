// Package app wires configuration to the storage and cache backends shared by the commands.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/chatinsight/chat-insight/internal/cache"
	"github.com/chatinsight/chat-insight/internal/cache/memory"
	"github.com/chatinsight/chat-insight/internal/cache/redis"
	"github.com/chatinsight/chat-insight/internal/config"
	"github.com/chatinsight/chat-insight/internal/dataset"
	"github.com/chatinsight/chat-insight/internal/storage/postgres"
	"github.com/chatinsight/chat-insight/internal/types"
)

const redisKeyPrefix = "chat-insight:"

// Loader loads the flattened relations.
type Loader interface {
	Load(ctx context.Context) (*types.Relations, error)
}

// OpenRelations returns the relation source selected by cfg: the latest
// PostgreSQL import run when DATABASE_DSN is set, otherwise the CSV files in dir.
func OpenRelations(ctx context.Context, cfg *config.Config, dir string, logger *logrus.Logger) (Loader, func(), error) {
	if cfg.Database.DSN == "" {
		logger.WithField("dir", dir).Info("reading relations from csv")
		return dataset.NewDir(dir), func() {}, nil
	}

	db, err := postgres.New(ctx, cfg.Database.DSN, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("reading relations from postgres")
	return postgres.NewRelationRepository(db.Pool()), db.Close, nil
}

// OpenCache returns a Redis cache when REDIS_URI is set, otherwise an in-process ristretto cache.
func OpenCache(cfg *config.Config, logger *logrus.Logger) (cache.Cache, func(), error) {
	if cfg.Redis.URI == "" {
		c, err := memory.New(cfg.Cache.MaxBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("create memory cache: %w", err)
		}
		logger.WithField("max_bytes", cfg.Cache.MaxBytes).Info("using in-process cache")
		return c, c.Close, nil
	}

	c, err := redis.New(cfg.Redis.URI, redisKeyPrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("using redis cache")
	return c, func() { _ = c.Close() }, nil
}
