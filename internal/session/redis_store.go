package session

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	xerrors "ChainPilot/internal/errors"
)

// RedisConfig describes the connection parameters for the Redis store.
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// RedisStore keeps thread bindings in Redis so a restarted process keeps
// routing returning users onto their existing conversations.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "redis address must not be empty")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "chainpilot:threads:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "connect redis")
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Lookup implements Store.
func (s *RedisStore) Lookup(ctx context.Context, chatThreadID string) (string, error) {
	providerThreadID, err := s.client.Get(ctx, s.prefix+chatThreadID).Result()
	if errors.Is(err, redis.Nil) {
		return "", xerrors.New(xerrors.CodeNotFound, "no thread bound")
	}
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "read thread binding")
	}
	return providerThreadID, nil
}

// Bind implements Store. SETNX keeps the first writer's binding.
func (s *RedisStore) Bind(ctx context.Context, chatThreadID, providerThreadID string) error {
	if strings.TrimSpace(chatThreadID) == "" || strings.TrimSpace(providerThreadID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "thread ids must not be empty")
	}
	set, err := s.client.SetNX(ctx, s.prefix+chatThreadID, providerThreadID, 0).Result()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "write thread binding")
	}
	if !set {
		return xerrors.New(xerrors.CodeConflict, "thread already bound")
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
