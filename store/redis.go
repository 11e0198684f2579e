package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// TTL is applied on every Set (SET key value EX ttl).
	// Zero disables expiry.
	TTL time.Duration

	// Prefix namespaces the keys written by this store, e.g. "beat:" or
	// "worker:alive:". Keys returns names with the prefix stripped.
	Prefix string

	// OpTimeout bounds each round trip.
	// Default: 2 seconds
	OpTimeout time.Duration

	// ScanCount is the COUNT hint passed to SCAN.
	// Default: 100
	ScanCount int64
}

// RedisStore is a durable, TTL-bounded Store backed by Redis.
// Values are ISO-8601 (RFC 3339, nanosecond precision) UTC strings.
type RedisStore struct {
	client redis.UniversalClient
	config RedisConfig
}

// NewRedisStore creates a store on top of an existing client. The caller owns
// the client and closes it.
func NewRedisStore(client redis.UniversalClient, config RedisConfig) *RedisStore {
	if config.OpTimeout <= 0 {
		config.OpTimeout = 2 * time.Second
	}
	if config.ScanCount <= 0 {
		config.ScanCount = 100
	}
	if config.TTL < 0 {
		config.TTL = 0
	}

	return &RedisStore{client: client, config: config}
}

// TTL returns the expiry applied on Set.
func (s *RedisStore) TTL() time.Duration {
	return s.config.TTL
}

// Set writes at under key and restarts its TTL.
func (s *RedisStore) Set(ctx context.Context, key string, at time.Time) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.config.Prefix+key, encodeTime(at), s.config.TTL).Err(); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Get reads key. A missing or expired key returns (zero, false, nil).
func (s *RedisStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	raw, err := s.client.Get(ctx, s.config.Prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, unavailable("get", key, err)
	}

	at, err := decodeTime(raw)
	if err != nil {
		// A value we cannot parse was not written by this package; surface it
		// instead of pretending the key is absent.
		return time.Time{}, false, unavailable("get", key, err)
	}
	return at, true, nil
}

// Delete removes key. Idempotent.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.config.Prefix+key).Err(); err != nil {
		return unavailable("delete", key, err)
	}
	return nil
}

// Keys scans for keys under the configured prefix.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	var (
		keys   []string
		cursor uint64
	)
	seen := make(map[string]struct{})
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.config.Prefix+"*", s.config.ScanCount).Result()
		if err != nil {
			return nil, unavailable("keys", "", err)
		}
		for _, k := range batch {
			name := strings.TrimPrefix(k, s.config.Prefix)
			// SCAN may return a key more than once.
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			keys = append(keys, name)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// Ping checks that the backend is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
