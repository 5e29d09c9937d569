package kvstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 256

// RedisConfig describes how to reach a Redis server.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`

	// Namespace is prepended to every key so several installs can share
	// one server.
	Namespace string `yaml:"namespace"`
}

// Redis is a Store kept in a Redis database.
type Redis struct {
	rdb *redis.Client
	ns  string
}

var _ Store = (*Redis)(nil)

// NewRedis creates a client for cfg. No connection is made until the first
// command or Ping.
func NewRedis(cfg RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	return &Redis{rdb: rdb, ns: cfg.Namespace}
}

// Ping checks that the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close releases the client's connections.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, r.ns+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil

	case err != nil:
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	return b, true, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.ns+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}

	return nil
}

// Remove implements Store.
func (r *Redis) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.ns + k
	}

	if err := r.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// List implements Store.
func (r *Redis) List(ctx context.Context, prefix string) ([]Entry, error) {
	pattern := escapeGlob(r.ns+prefix) + "*"

	var keys []string
	iter := r.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	if len(keys) == 0 {
		return nil, nil
	}

	// SCAN may return a key more than once.
	slices.Sort(keys)
	keys = slices.Compact(keys)

	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make([]Entry, 0, len(keys))
	for i, v := range vals {
		// Deleted between SCAN and MGET.
		s, ok := v.(string)
		if !ok {
			continue
		}

		out = append(out, Entry{
			Key:   strings.TrimPrefix(keys[i], r.ns),
			Value: []byte(s),
		})
	}

	return out, nil
}

// escapeGlob quotes the characters Redis treats specially in MATCH patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}

	return b.String()
}
