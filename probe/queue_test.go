package probe

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/fleetwatch/health"
	"github.com/jonwraymond/fleetwatch/natstest"
	"github.com/jonwraymond/fleetwatch/resilience"
)

// consumeQueue answers tasks on queue with handle; nil handle never answers.
func consumeQueue(t *testing.T, nc *nats.Conn, queue string, handle func(TaskRequest) TaskResult) {
	t.Helper()
	sub, err := nc.QueueSubscribe(QueueSubject(DefaultQueuePrefix, queue), QueueGroup, func(msg *nats.Msg) {
		if handle == nil {
			return
		}
		var req TaskRequest
		if json.Unmarshal(msg.Data, &req) != nil {
			return
		}
		data, _ := json.Marshal(handle(req))
		_ = msg.Respond(data)
	})
	require.NoError(t, err)
	require.NoError(t, nc.Flush())
	t.Cleanup(func() { _ = sub.Unsubscribe() })
}

func TestQueueChecker_RoundTrip(t *testing.T) {
	_, nc := natstest.Start(t)
	startResponder(t, nc, ResponderConfig{Worker: "worker@a", Queues: []string{"first_queue", "second_queue"}})

	c := NewQueueChecker(nc, QueueConfig{Queues: []string{"first_queue", "second_queue"}, ResultTimeout: time.Second, Critical: true})
	require.Equal(t, "queues", c.Name())

	result := c.Check(context.Background())
	require.Equal(t, health.StatusHealthy, result.Status)
	require.Len(t, result.Verdicts, 2)
}

func TestQueueChecker_Failures(t *testing.T) {
	_, nc := natstest.Start(t)
	startResponder(t, nc, ResponderConfig{Worker: "worker@a", Queues: []string{"ok"}})
	consumeQueue(t, nc, "wrong", func(req TaskRequest) TaskResult {
		nine := 9
		return TaskResult{ID: req.ID, Result: &nine}
	})
	consumeQueue(t, nc, "broken", func(req TaskRequest) TaskResult {
		return TaskResult{ID: req.ID, Error: "boom"}
	})
	consumeQueue(t, nc, "slow", nil)

	c := NewQueueChecker(nc, QueueConfig{
		Queues:        []string{"ok", "missing", "wrong", "broken", "slow"},
		ResultTimeout: 200 * time.Millisecond,
		Critical:      true,
	})

	result := c.Check(context.Background())
	require.Equal(t, health.StatusUnhealthy, result.Status)
	require.Len(t, result.Verdicts, 5)

	reasons := map[string]string{}
	for _, v := range result.Verdicts {
		reasons[v.EntityID] = v.Reason
	}
	require.Empty(t, reasons["ok"])
	require.Equal(t, "queue missing is not among the active queues", reasons["missing"])
	require.Equal(t, "queue wrong returned wrong result", reasons["wrong"])
	require.Equal(t, "queue broken returned wrong result", reasons["broken"])
	require.Equal(t, "queue slow: the task took too long to return a result", reasons["slow"])
}

func TestQueueChecker_RoundTripErrors(t *testing.T) {
	_, nc := natstest.Start(t)
	consumeQueue(t, nc, "slow", nil)
	c := NewQueueChecker(nc, QueueConfig{ResultTimeout: 100 * time.Millisecond})

	require.ErrorIs(t, c.RoundTrip(context.Background(), "missing"), ErrNoConsumers)
	require.ErrorIs(t, c.RoundTrip(context.Background(), "slow"), ErrResultTimeout)
}

func TestQueueChecker_CircuitOpens(t *testing.T) {
	_, nc := natstest.Start(t)
	c := NewQueueChecker(nc, QueueConfig{
		Queues:        []string{"missing"},
		ResultTimeout: 100 * time.Millisecond,
		Breaker:       resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})

	first := c.Check(context.Background())
	require.Equal(t, "queue missing is not among the active queues", first.Verdicts[0].Reason)

	second := c.Check(context.Background())
	require.Equal(t, "queue missing probe suspended after repeated failures", second.Verdicts[0].Reason)
}

func TestQueueChecker_NoQueues(t *testing.T) {
	_, nc := natstest.Start(t)
	result := NewQueueChecker(nc, QueueConfig{}).Check(context.Background())
	require.Equal(t, health.StatusHealthy, result.Status)
}

func TestQueueSubject(t *testing.T) {
	require.Equal(t, "fleet.queue.default", QueueSubject("fleet.queue", "default"))
	require.Equal(t, "fleet.queue.default", QueueSubject("fleet.queue.", "default"))
}
