// Package cache provides a Redis-backed JSON cache used to keep hot flow
// steps out of the database on traversal.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"
)

const defaultPrefix = "portal:"

// Redis caches values of type T as JSON under prefixed keys.
type Redis[T any] struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*options)

type options struct {
	prefix string
	ttl    time.Duration
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithTTL sets the expiration of cached entries. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*backend.Client, error) {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

// New creates a cache on top of an existing client.
func New[T any](client *backend.Client, opts ...Option) *Redis[T] {
	o := options{prefix: defaultPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	return &Redis[T]{client: client, prefix: o.prefix, ttl: o.ttl}
}

func (c *Redis[T]) key(k string) string {
	return c.prefix + k
}

func (c *Redis[T]) versionKey(k string) string {
	return c.prefix + k + ":version"
}

// Get returns the cached value for k. The boolean is false on a miss.
func (c *Redis[T]) Get(ctx context.Context, k string) (*T, bool, error) {
	val, err := c.client.Get(ctx, c.key(k)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cache key %s: %w", k, err)
	}

	var v T
	if err := json.Unmarshal(val, &v); err != nil {
		return nil, false, fmt.Errorf("decoding cache key %s: %w", k, err)
	}
	return &v, true, nil
}

// Version returns the current version of k. A key that was never
// invalidated is at version 0.
func (c *Redis[T]) Version(ctx context.Context, k string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(k)).Int64()
	if errors.Is(err, backend.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading version of cache key %s: %w", k, err)
	}
	return v, nil
}

// setIfVersion writes KEYS[1] only while KEYS[2] still holds ARGV[1].
var setIfVersion = backend.NewScript(`
local current = redis.call("GET", KEYS[2]) or "0"
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// SetIfVersion stores v under k if k is still at version. It reports false
// when a Delete advanced the version in the meantime.
func (c *Redis[T]) SetIfVersion(ctx context.Context, k string, v *T, version int64) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encoding cache key %s: %w", k, err)
	}
	n, err := setIfVersion.Run(ctx, c.client,
		[]string{c.key(k), c.versionKey(k)},
		strconv.FormatInt(version, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("writing cache key %s: %w", k, err)
	}
	return n == 1, nil
}

// Delete removes the given keys and advances their versions so fills that
// started before the delete are rejected. Missing keys are ignored.
func (c *Redis[T]) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		for _, k := range keys {
			pipe.Del(ctx, c.key(k))
			pipe.Incr(ctx, c.versionKey(k))
			if c.ttl > 0 {
				pipe.PExpire(ctx, c.versionKey(k), c.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting cache keys: %w", err)
	}
	return nil
}
