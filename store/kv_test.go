package store

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/fleetwatch/natstest"
)

func TestKVStore_Contract(t *testing.T) {
	_, nc := natstest.Start(t)
	kv := natstest.KeyValue(t, nc, "fleet-contract", time.Minute)

	storeContract(t, NewKVStore(kv, 0))
}

func TestKVStore_EncodesKeys(t *testing.T) {
	_, nc := natstest.Start(t)
	kv := natstest.KeyValue(t, nc, "fleet-encode", time.Minute)
	s := NewKVStore(kv, time.Second)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "worker@host one", time.Now()))

	_, err := kv.Get(ctx, encodeKey("worker@host one"))
	require.NoError(t, err)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"worker@host one"}, keys)
}

func TestKVStore_EmptyBucketHasNoKeys(t *testing.T) {
	_, nc := natstest.Start(t)
	kv := natstest.KeyValue(t, nc, "fleet-empty", time.Minute)

	keys, err := NewKVStore(kv, 0).Keys(context.Background())
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestKVStore_BucketTTLExpires(t *testing.T) {
	_, nc := natstest.Start(t)
	kv := natstest.KeyValue(t, nc, "fleet-ttl", time.Second)
	s := NewKVStore(kv, 0)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "w", time.Now()))

	require.Eventually(t, func() bool {
		_, ok, err := s.Get(ctx, "w")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func TestEnsureBucket_OpensExisting(t *testing.T) {
	_, nc := natstest.Start(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := EnsureBucket(ctx, js, "fleet-ensure", time.Minute)
	require.NoError(t, err)
	second, err := EnsureBucket(ctx, js, "fleet-ensure", time.Minute)
	require.NoError(t, err)

	require.Equal(t, first.Bucket(), second.Bucket())
}

func TestEnsureBucket_UpdatesMismatchedTTL(t *testing.T) {
	_, nc := natstest.Start(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = EnsureBucket(ctx, js, "fleet-retune", 5*time.Minute)
	require.NoError(t, err)
	kv, err := EnsureBucket(ctx, js, "fleet-retune", 30*time.Second)
	require.NoError(t, err)

	status, err := kv.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, status.TTL())

	reopened, err := js.KeyValue(ctx, "fleet-retune")
	require.NoError(t, err)
	status, err = reopened.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, status.TTL())
}

func TestKVStore_ClosedConnectionIsUnavailable(t *testing.T) {
	_, nc := natstest.Start(t)
	kv := natstest.KeyValue(t, nc, "fleet-closed", time.Minute)
	s := NewKVStore(kv, 200*time.Millisecond)
	nc.Close()

	_, _, err := s.Get(context.Background(), "w")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
