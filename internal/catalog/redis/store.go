// Package redis shares the rendered schema summary between API replicas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultKey = "askql:schema_summary"

type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	Key         string
}

type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

type Store struct {
	client client
	key    string
}

// Open connects and pings; callers own the returned client.
func Open(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        strings.TrimSpace(cfg.Addr),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	pong, err := rdb.Ping(pingCtx).Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if pong != "PONG" {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: expected PONG, got %s", pong)
	}
	return rdb, nil
}

func NewStore(c client, key string) (*Store, error) {
	if c == nil {
		return nil, fmt.Errorf("client is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: c, key: key}, nil
}

func (s *Store) Get(ctx context.Context) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", s.key, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, summary string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key, summary, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}
