package probe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/jonwraymond/fleetwatch/health"
	"github.com/jonwraymond/fleetwatch/observe"
)

// PingConfig configures a PingChecker.
type PingConfig struct {
	// Name is the check name. Default: "ping"
	Name string
	// Subject is the broadcast subject. Default: DefaultPingSubject
	Subject string
	// Window is how long replies are collected. Default: 1s
	Window time.Duration

	Critical bool
	Logger   observe.Logger
}

// PingChecker broadcasts a ping and expects {"ok": "pong"} from every worker.
type PingChecker struct {
	nc  *nats.Conn
	cfg PingConfig
}

// NewPingChecker creates a ping checker on nc.
func NewPingChecker(nc *nats.Conn, cfg PingConfig) *PingChecker {
	if cfg.Name == "" {
		cfg.Name = "ping"
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultPingSubject
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &PingChecker{nc: nc, cfg: cfg}
}

// Name implements health.Checker.
func (c *PingChecker) Name() string {
	return c.cfg.Name
}

// Ping broadcasts one ping and returns the replies received within the
// window, one per worker, sorted by worker. Replies to other pings are
// dropped.
func (c *PingChecker) Ping(ctx context.Context) ([]PingReply, error) {
	req := PingRequest{ID: uuid.NewString()}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("probe: encode ping: %w", err)
	}

	inbox := c.nc.NewInbox()
	sub, err := c.nc.SubscribeSync(inbox)
	if err != nil {
		return nil, fmt.Errorf("probe: subscribe %s: %w", inbox, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := c.nc.PublishRequest(c.cfg.Subject, inbox, data); err != nil {
		return nil, fmt.Errorf("probe: publish ping: %w", err)
	}

	wctx, cancel := context.WithTimeout(ctx, c.cfg.Window)
	defer cancel()

	seen := make(map[string]PingReply)
	for {
		msg, err := sub.NextMsgWithContext(wctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// The server answers "no responders" when nobody subscribes.
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrNoResponders) {
				break
			}
			return nil, fmt.Errorf("probe: read ping reply: %w", err)
		}

		var reply PingReply
		if err := json.Unmarshal(msg.Data, &reply); err != nil {
			c.cfg.Logger.Warn(ctx, "undecodable ping reply", observe.F("error", err))
			continue
		}
		if reply.ID != req.ID || reply.Worker == "" {
			continue
		}
		if _, dup := seen[reply.Worker]; !dup {
			seen[reply.Worker] = reply
		}
	}

	out := make([]PingReply, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Worker < out[j].Worker })
	return out, nil
}

// Check implements health.Checker. No reply at all is unhealthy with
// ErrNoReplies.
func (c *PingChecker) Check(ctx context.Context) health.Result {
	replies, err := c.Ping(ctx)
	if err != nil {
		c.cfg.Logger.Error(ctx, "ping failed", observe.F("error", err))
		return health.Unhealthy("ping failed", err)
	}
	if len(replies) == 0 {
		c.cfg.Logger.Error(ctx, "no worker answered ping", observe.F("subject", c.cfg.Subject))
		return health.Unhealthy("no worker answered ping", ErrNoReplies)
	}

	verdicts := make([]health.Verdict, len(replies))
	for i, r := range replies {
		if r.OK() {
			verdicts[i] = health.Pass(r.Worker)
			continue
		}
		verdicts[i] = health.Fail(r.Worker, fmt.Sprintf("worker %s response was incorrect", r.Worker))
		c.cfg.Logger.Warn(ctx, "incorrect ping response", observe.F("worker", r.Worker), observe.F("reply", r.Reply))
	}
	return health.FromVerdicts(verdicts, c.cfg.Critical)
}
