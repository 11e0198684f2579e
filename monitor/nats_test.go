package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/fleetwatch/natstest"
	"github.com/jonwraymond/fleetwatch/store"
)

func TestNATSEventSource_CameraRecordsEvents(t *testing.T) {
	_, nc := natstest.Start(t)
	kv := natstest.KeyValue(t, nc, "fleet-events", time.Minute)
	st := store.NewKVStore(kv, time.Second)

	src := NewNATSEventSource(nc, "", nil)
	require.Equal(t, DefaultEventsSubject, src.Subject())

	c := NewCamera(CameraConfig{Source: src, Store: st, Freq: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// Publish until the subscription is live; early messages may be missed.
	require.Eventually(t, func() bool {
		_ = src.Publish(Event{Type: EventTaskStarted, Hostname: "worker@a", Name: "reports.nightly", Timestamp: time.Now()})
		_, ok, err := st.Get(context.Background(), "reports.nightly")
		return err == nil && ok
	}, 5*time.Second, 20*time.Millisecond)

	_, ok, err := st.Get(context.Background(), "worker@a")
	require.NoError(t, err)
	require.True(t, ok)

	cancel()
	require.NoError(t, <-done)
}

func TestNATSEventSource_SkipsGarbage(t *testing.T) {
	_, nc := natstest.Start(t)
	src := NewNATSEventSource(nc, "fleet.test.events", nil)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- src.Receive(ctx, func(ev Event) {
			select {
			case got <- ev:
			default:
			}
		})
	}()

	require.Eventually(t, func() bool {
		_ = nc.Publish("fleet.test.events", []byte("{not json"))
		_ = src.Publish(Event{Type: EventWorkerHeartbeat, Hostname: "worker@b"})
		return len(got) == 1
	}, 5*time.Second, 20*time.Millisecond)

	ev := <-got
	require.Equal(t, EventWorkerHeartbeat, ev.Type)
	require.Equal(t, "worker@b", ev.Hostname)

	cancel()
	require.NoError(t, <-done)
}

func TestNATSEventSource_PublishRequiresType(t *testing.T) {
	_, nc := natstest.Start(t)
	require.Error(t, NewNATSEventSource(nc, "", nil).Publish(Event{Hostname: "x"}))
}
