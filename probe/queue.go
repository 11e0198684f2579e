package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/fleetwatch/health"
	"github.com/jonwraymond/fleetwatch/observe"
	"github.com/jonwraymond/fleetwatch/resilience"
)

// QueueConfig configures a QueueChecker.
type QueueConfig struct {
	// Name is the check name. Default: "queues"
	Name string
	// Prefix is the queue subject prefix. Default: DefaultQueuePrefix
	Prefix string
	Queues []string

	// ResultTimeout bounds each round trip. Default: 3s
	ResultTimeout time.Duration

	// Breaker configures the per-queue circuit breaker.
	Breaker resilience.CircuitBreakerConfig

	Critical bool
	Logger   observe.Logger
}

// QueueChecker sends add(4, 4) through every queue and expects 8.
type QueueChecker struct {
	nc  *nats.Conn
	cfg QueueConfig

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewQueueChecker creates a queue checker on nc.
func NewQueueChecker(nc *nats.Conn, cfg QueueConfig) *QueueChecker {
	if cfg.Name == "" {
		cfg.Name = "queues"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultQueuePrefix
	}
	if cfg.ResultTimeout <= 0 {
		cfg.ResultTimeout = 3 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &QueueChecker{
		nc:       nc,
		cfg:      cfg,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

// Name implements health.Checker.
func (c *QueueChecker) Name() string {
	return c.cfg.Name
}

// Check implements health.Checker. Queues are probed concurrently.
func (c *QueueChecker) Check(ctx context.Context) health.Result {
	verdicts := make([]health.Verdict, len(c.cfg.Queues))

	var g errgroup.Group
	for i, queue := range c.cfg.Queues {
		g.Go(func() error {
			err := c.breaker(queue).Execute(ctx, func(ctx context.Context) error {
				return c.RoundTrip(ctx, queue)
			})
			if err == nil {
				verdicts[i] = health.Pass(queue)
				return nil
			}
			verdicts[i] = health.Fail(queue, queueReason(queue, err))
			c.cfg.Logger.Warn(ctx, "queue probe failed", observe.F("queue", queue), observe.F("error", err))
			return nil
		})
	}
	_ = g.Wait()

	return health.FromVerdicts(verdicts, c.cfg.Critical)
}

// RoundTrip sends one probe task to queue and validates the answer.
func (c *QueueChecker) RoundTrip(ctx context.Context, queue string) error {
	req := TaskRequest{ID: uuid.NewString(), Task: TaskAdd, Args: []int{4, 4}}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("probe: encode task: %w", err)
	}

	rctx, cancel := context.WithTimeout(ctx, c.cfg.ResultTimeout)
	defer cancel()

	msg, err := c.nc.RequestWithContext(rctx, QueueSubject(c.cfg.Prefix, queue), data)
	switch {
	case errors.Is(err, nats.ErrNoResponders):
		return fmt.Errorf("%w: %s", ErrNoConsumers, queue)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %s", ErrResultTimeout, c.cfg.ResultTimeout)
	case err != nil:
		return fmt.Errorf("probe: request %s: %w", queue, err)
	}

	var res TaskResult
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
	}
	if res.ID != req.ID {
		return fmt.Errorf("%w: reply for %q", ErrUnexpectedReply, res.ID)
	}
	if res.Error != "" {
		return fmt.Errorf("%w: task failed: %s", ErrUnexpectedReply, res.Error)
	}
	if res.Result == nil || *res.Result != 8 {
		return fmt.Errorf("%w: wrong result", ErrUnexpectedReply)
	}
	return nil
}

func (c *QueueChecker) breaker(queue string) *resilience.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.breakers[queue]
	if !ok {
		b = resilience.NewCircuitBreaker(c.cfg.Breaker)
		c.breakers[queue] = b
	}
	return b
}

func queueReason(queue string, err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return fmt.Sprintf("queue %s probe suspended after repeated failures", queue)
	case errors.Is(err, ErrNoConsumers):
		return fmt.Sprintf("queue %s is not among the active queues", queue)
	case errors.Is(err, ErrResultTimeout):
		return fmt.Sprintf("queue %s: the task took too long to return a result", queue)
	case errors.Is(err, ErrUnexpectedReply):
		return fmt.Sprintf("queue %s returned wrong result", queue)
	default:
		return fmt.Sprintf("queue %s unavailable: %v", queue, err)
	}
}
