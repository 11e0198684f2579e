// Package store records "last seen" instants per entity key.
//
// A Store keeps at most one observation per key. Two families of backend are
// provided and they differ in what an absent key means:
//
//   - Durable stores (RedisStore, KVStore) expire keys after a TTL fixed at
//     construction. A missing key means either "never set" or "not refreshed
//     within the TTL"; the two cannot be told apart.
//   - Local stores (FileStore, MemoryStore with a zero TTL) never expire keys.
//     A missing key means "never set" or "explicitly deleted". Callers detect
//     staleness from the age of the returned instant.
//
// # Errors
//
// Get never fails for a missing key: it returns the zero time and false.
// Any failure to reach the backend is reported as ErrStoreUnavailable so that
// an outage is never mistaken for a missing observation:
//
//	ts, ok, err := s.Get(ctx, "worker-1")
//	switch {
//	case errors.Is(err, store.ErrStoreUnavailable):
//	    // hard failure, report unhealthy
//	case !ok:
//	    // no observation
//	default:
//	    age := now.Sub(ts)
//	}
package store
