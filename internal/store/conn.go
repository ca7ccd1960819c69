// Package store holds the Postgres and Redis connection helpers and the
// per-entity store adapters (C1, C2, C3) built on top of them. Adapted
// from growth-server's third_party/database and third_party/cache.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/trustgate/internal/config"
)

// NewPostgres opens and pings a pooled Postgres connection for the
// credential, registry, and translation-config stores (C1, C2, C3).
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		logx.Errorf("failed to connect to postgres: %v", err)
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		logx.Errorf("failed to ping postgres: %v", err)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logx.Info("connected to postgres")
	return db, nil
}

// NewRedis opens and pings a Redis client backing the translation
// cache and lockout counters. Rate-limiter buckets are in-memory only.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logx.Errorf("failed to connect to redis: %v", err)
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logx.Info("connected to redis")
	return rdb, nil
}
