package main

import (
	"context"
	"time"

	"github.com/jonwraymond/fleetwatch/heartbeat"
	"github.com/jonwraymond/fleetwatch/monitor"
	"github.com/jonwraymond/fleetwatch/observe"
	"github.com/jonwraymond/fleetwatch/probe"
)

// worker runs a minimal fleet member: it holds the ready and alive markers,
// answers probes and publishes heartbeat events until ctx is done. Without
// NATS only the markers are kept.
func (a *app) worker(ctx context.Context, id string) error {
	ready, alive, err := a.markerStores()
	if err != nil {
		return err
	}
	logger := a.logger.With(observe.F("worker", id))

	lc := heartbeat.NewWorkerLifecycle(heartbeat.LifecycleConfig{
		Ready:    ready,
		Alive:    alive,
		Interval: a.cfg.HeartbeatInterval.Std(),
		Logger:   logger,
		Metrics:  a.mw.Metrics(),
	})
	if err := lc.OnReady(ctx, id); err != nil {
		return err
	}
	defer func() {
		if err := lc.OnShutdown(context.WithoutCancel(ctx), id); err != nil {
			logger.Error(ctx, "worker shutdown incomplete", observe.F("error", err))
		}
	}()

	nc, err := a.natsConn()
	if err != nil {
		logger.Warn(ctx, "running without NATS; probes and events are disabled", observe.F("error", err))
		<-ctx.Done()
		return nil
	}

	responder := probe.NewResponder(nc, probe.ResponderConfig{
		Worker:      id,
		PingSubject: a.cfg.NATS.PingSubject,
		Prefix:      a.cfg.NATS.QueuePrefix,
		Queues:      a.cfg.NATS.Queues,
		Logger:      logger,
	})
	if err := responder.Start(); err != nil {
		return err
	}
	defer func() { _ = responder.Stop() }()

	events := monitor.NewNATSEventSource(nc, a.cfg.NATS.EventsSubject, logger)
	publish := func(typ string) {
		ev := monitor.Event{Type: typ, Hostname: id, Timestamp: time.Now().UTC()}
		if err := events.Publish(ev); err != nil {
			logger.Warn(ctx, "publishing event failed", observe.F("type", typ), observe.F("error", err))
		}
	}

	publish(monitor.EventWorkerOnline)
	ticker := time.NewTicker(a.cfg.HeartbeatInterval.Std())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			publish(monitor.EventWorkerHeartbeat)
		}
	}
}
