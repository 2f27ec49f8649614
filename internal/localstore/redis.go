package localstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aquamarinepk/aqm"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "comanda:"

// RedisStore lets several instances share courier history and preferences.
type RedisStore struct {
	client *redis.Client
	addr   string
	db     int
	prefix string
	logger aqm.Logger
}

func NewRedisStore(config *aqm.Config, logger aqm.Logger) *RedisStore {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	s := &RedisStore{
		addr:   "localhost:6379",
		prefix: defaultRedisPrefix,
		logger: logger,
	}
	if config == nil {
		return s
	}
	if v, _ := config.GetString("localstore.redis.addr"); v != "" {
		s.addr = v
	}
	if v, _ := config.GetString("localstore.redis.db"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.db = n
		}
	}
	if v, ok := config.GetString("localstore.redis.prefix"); ok {
		s.prefix = v
	}
	return s
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, logger: aqm.NewNoopLogger()}
}

func (r *RedisStore) Start(ctx context.Context) error {
	if r.client == nil {
		r.client = redis.NewClient(&redis.Options{Addr: r.addr, DB: r.db})
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cannot ping Redis: %w", err)
	}
	r.logger.Info("local store opened", "driver", DriverRedis, "addr", r.addr)
	return nil
}

func (r *RedisStore) Stop(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) Get(ctx context.Context, key string, out interface{}) error {
	if r.client == nil {
		return fmt.Errorf("redis store not started")
	}
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	return decodeValue(v, out)
}

func (r *RedisStore) Put(ctx context.Context, key string, value interface{}) error {
	if r.client == nil {
		return fmt.Errorf("redis store not started")
	}
	v, err := encodeValue(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), v, 0).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis store not started")
	}
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis store not started")
	}
	var keys []string
	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	return keys, nil
}
