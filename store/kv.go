package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/jonwraymond/fleetwatch/resilience"
)

// KVStore is a durable Store backed by a NATS JetStream key-value bucket.
//
// JetStream applies expiry per bucket, so the TTL is a property of the bucket
// (see EnsureBucket) rather than of each write. Every Put restarts the age of
// the key, which gives the same "refresh on set" behavior as SET EX.
//
// Entity keys are base64url encoded because the KV key alphabet does not
// allow characters common in worker names such as '@'.
type KVStore struct {
	kv        jetstream.KeyValue
	opTimeout time.Duration
}

// NewKVStore wraps an existing bucket. opTimeout bounds each operation and
// defaults to 2 seconds.
func NewKVStore(kv jetstream.KeyValue, opTimeout time.Duration) *KVStore {
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}
	return &KVStore{kv: kv, opTimeout: opTimeout}
}

// EnsureBucket creates the bucket with the given TTL or opens it when another
// process created it first. An existing bucket whose TTL differs is updated
// to ttl, since evaluators assume the configured expiry. Transient failures
// are retried with backoff.
func EnsureBucket(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	var kv jetstream.KeyValue

	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Jitter:       true,
	})

	err := retry.Execute(ctx, func(ctx context.Context) error {
		created, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:  bucket,
			TTL:     ttl,
			Storage: jetstream.FileStorage,
		})
		if err == nil {
			kv = created
			return nil
		}
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return err
		}

		existing, err := js.KeyValue(ctx, bucket)
		if err != nil {
			return fmt.Errorf("bucket exists but failed to open: %w", err)
		}
		kv, err = reconcileTTL(ctx, js, existing, ttl)
		return err
	})
	if err != nil {
		return nil, unavailable("ensure bucket", bucket, err)
	}
	return kv, nil
}

// reconcileTTL updates kv's TTL to ttl and keeps the rest of its settings.
func reconcileTTL(ctx context.Context, js jetstream.JetStream, kv jetstream.KeyValue, ttl time.Duration) (jetstream.KeyValue, error) {
	status, err := kv.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("read bucket status: %w", err)
	}
	if status.TTL() == ttl {
		return kv, nil
	}

	cfg := jetstream.KeyValueConfig{
		Bucket:  kv.Bucket(),
		TTL:     ttl,
		History: uint8(status.History()),
		Storage: jetstream.FileStorage,
	}
	if bs, ok := status.(*jetstream.KeyValueBucketStatus); ok {
		sc := bs.StreamInfo().Config
		cfg.Description = sc.Description
		cfg.Storage = sc.Storage
		cfg.Replicas = sc.Replicas
		cfg.MaxBytes = sc.MaxBytes
		cfg.Compression = sc.Compression != jetstream.NoCompression
	}

	updated, err := js.UpdateKeyValue(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bucket TTL is %s, want %s: update: %w", status.TTL(), ttl, err)
	}
	return updated, nil
}

// Set writes at under key, restarting its age in the bucket.
func (s *KVStore) Set(ctx context.Context, key string, at time.Time) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if _, err := s.kv.Put(ctx, encodeKey(key), []byte(encodeTime(at))); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Get reads key. Missing, deleted and expired keys return (zero, false, nil).
func (s *KVStore) Get(ctx context.Context, key string) (time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	entry, err := s.kv.Get(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, unavailable("get", key, err)
	}

	at, err := decodeTime(string(entry.Value()))
	if err != nil {
		return time.Time{}, false, unavailable("get", key, err)
	}
	return at, true, nil
}

// Delete removes key. Idempotent.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err := s.kv.Delete(ctx, encodeKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return unavailable("delete", key, err)
	}
	return nil
}

// Keys lists the keys currently held by the bucket.
func (s *KVStore) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	raw, err := s.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, unavailable("keys", "", err)
	}

	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		name, err := decodeKey(k)
		if err != nil {
			// Written by something else sharing the bucket.
			continue
		}
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys, nil
}

func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeKey(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var _ Store = (*KVStore)(nil)
