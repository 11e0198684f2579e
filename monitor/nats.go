package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/jonwraymond/fleetwatch/observe"
)

// DefaultEventsSubject is the subject workers publish events on.
const DefaultEventsSubject = "fleet.events"

// NATSEventSource reads JSON events from a NATS subject.
type NATSEventSource struct {
	nc      *nats.Conn
	subject string
	logger  observe.Logger
}

// NewNATSEventSource creates a source on subject (DefaultEventsSubject if
// empty). logger may be nil.
func NewNATSEventSource(nc *nats.Conn, subject string, logger observe.Logger) *NATSEventSource {
	if subject == "" {
		subject = DefaultEventsSubject
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &NATSEventSource{nc: nc, subject: subject, logger: logger}
}

// Subject returns the subscribed subject.
func (s *NATSEventSource) Subject() string {
	return s.subject
}

// Receive implements EventSource. Undecodable messages are logged and
// skipped.
func (s *NATSEventSource) Receive(ctx context.Context, handle func(Event)) error {
	sub, err := s.nc.SubscribeSync(s.subject)
	if err != nil {
		return fmt.Errorf("monitor: subscribe %s: %w", s.subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	for {
		msg, err := sub.NextMsgWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("monitor: receive on %s: %w", s.subject, err)
		}

		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			s.logger.Warn(ctx, "undecodable event", observe.F("subject", msg.Subject), observe.F("error", err))
			continue
		}
		handle(ev)
	}
}

// Publish sends ev on the source's subject.
func (s *NATSEventSource) Publish(ev Event) error {
	if ev.Type == "" {
		return errors.New("monitor: event type is required")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("monitor: encode event: %w", err)
	}
	return s.nc.Publish(s.subject, data)
}
