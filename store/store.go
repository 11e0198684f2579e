package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for an entity key.
const MaxKeyLength = 512

// Sentinel errors for store operations.
var (
	// ErrStoreUnavailable indicates the backend could not be reached.
	ErrStoreUnavailable = errors.New("store: backend unavailable")

	// ErrInvalidKey indicates an empty or malformed key.
	ErrInvalidKey = errors.New("store: key is invalid")

	// ErrKeyTooLong indicates a key longer than MaxKeyLength.
	ErrKeyTooLong = errors.New("store: key exceeds max length")
)

// Store maps entity keys to the instant they were last observed.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use. Writers of
// distinct keys do not coordinate; the last write to a key wins.
// - Context: methods must honor cancellation/deadlines.
// - Errors: Get returns (zero, false, nil) for a missing key. Backend failures
// wrap ErrStoreUnavailable.
type Store interface {
	// Set records at as the last observation for key, replacing any previous
	// value. Durable stores restart the key's TTL.
	Set(ctx context.Context, key string, at time.Time) error

	// Get returns the last observation for key and whether one exists.
	Get(ctx context.Context, key string) (time.Time, bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns the keys currently present. For expiring stores the result
	// is a snapshot and may include keys that expire before the caller reads them.
	Keys(ctx context.Context) ([]string, error)
}

// ValidateKey checks if a key is usable by every Store implementation.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// unavailable wraps a backend error so that errors.Is(err, ErrStoreUnavailable)
// holds while keeping the cause inspectable.
func unavailable(op, key string, err error) error {
	if key == "" {
		return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s %q: %w", ErrStoreUnavailable, op, key, err)
}

// encodeTime renders an observation the way durable stores persist it.
func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
