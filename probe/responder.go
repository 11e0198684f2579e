package probe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/jonwraymond/fleetwatch/observe"
)

// QueueGroup is the NATS queue group shared by all responders.
const QueueGroup = "fleet-workers"

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	// Worker identifies this process in ping replies.
	Worker string
	// PingSubject defaults to DefaultPingSubject.
	PingSubject string
	// Prefix defaults to DefaultQueuePrefix.
	Prefix string
	// Queues this worker consumes.
	Queues []string

	Logger observe.Logger
}

// Responder answers pings and probe tasks on behalf of a worker.
type Responder struct {
	nc  *nats.Conn
	cfg ResponderConfig

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewResponder creates a responder on nc.
func NewResponder(nc *nats.Conn, cfg ResponderConfig) *Responder {
	if cfg.PingSubject == "" {
		cfg.PingSubject = DefaultPingSubject
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultQueuePrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	cfg.Logger = cfg.Logger.With(observe.F("worker", cfg.Worker))
	return &Responder{nc: nc, cfg: cfg}
}

// Start subscribes to the ping subject and every queue. Subscriptions are
// flushed to the server before Start returns.
func (r *Responder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.subs) > 0 {
		return errors.New("probe: responder already started")
	}

	sub, err := r.nc.Subscribe(r.cfg.PingSubject, r.handlePing)
	if err != nil {
		return fmt.Errorf("probe: subscribe %s: %w", r.cfg.PingSubject, err)
	}
	subs := []*nats.Subscription{sub}

	for _, queue := range r.cfg.Queues {
		subject := QueueSubject(r.cfg.Prefix, queue)
		sub, err := r.nc.QueueSubscribe(subject, QueueGroup, r.handleTask)
		if err != nil {
			_ = unsubscribeAll(subs)
			return fmt.Errorf("probe: subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	if err := r.nc.Flush(); err != nil {
		_ = unsubscribeAll(subs)
		return fmt.Errorf("probe: flush subscriptions: %w", err)
	}
	r.subs = subs
	return nil
}

// Stop removes all subscriptions.
func (r *Responder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := unsubscribeAll(r.subs)
	r.subs = nil
	return err
}

func (r *Responder) handlePing(msg *nats.Msg) {
	var req PingRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		r.cfg.Logger.Warn(context.Background(), "undecodable ping", observe.F("error", err))
		return
	}
	r.respond(msg, PingReply{
		ID:     req.ID,
		Worker: r.cfg.Worker,
		Reply:  map[string]any{"ok": "pong"},
	})
}

func (r *Responder) handleTask(msg *nats.Msg) {
	var req TaskRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		r.cfg.Logger.Warn(context.Background(), "undecodable probe task", observe.F("error", err))
		return
	}

	res := TaskResult{ID: req.ID}
	switch req.Task {
	case TaskAdd:
		sum := 0
		for _, a := range req.Args {
			sum += a
		}
		res.Result = &sum
	default:
		res.Error = fmt.Sprintf("unknown task %q", req.Task)
	}
	r.respond(msg, res)
}

func (r *Responder) respond(msg *nats.Msg, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		err = msg.Respond(data)
	}
	if err != nil {
		r.cfg.Logger.Warn(context.Background(), "probe reply failed", observe.F("subject", msg.Subject), observe.F("error", err))
	}
}

func unsubscribeAll(subs []*nats.Subscription) error {
	var errs []error
	for _, s := range subs {
		if err := s.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
