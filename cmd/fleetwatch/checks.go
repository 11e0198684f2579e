package main

import (
	"context"

	"github.com/jonwraymond/fleetwatch/config"
	"github.com/jonwraymond/fleetwatch/health"
	"github.com/jonwraymond/fleetwatch/liveness"
	"github.com/jonwraymond/fleetwatch/observe"
	"github.com/jonwraymond/fleetwatch/probe"
	"github.com/jonwraymond/fleetwatch/staleness"
)

// buildRegistry registers every check the configuration enables. Beat and
// worker checks degrade the fleet; the scheduler, store and probes are
// critical.
func (a *app) buildRegistry(ctx context.Context) (*health.Registry, error) {
	cfg := a.cfg
	reg := health.NewRegistry(health.RegistryConfig{
		Timeout:  cfg.CheckTimeout.Std(),
		Parallel: true,
	})
	add := func(c health.Checker, kind string, critical bool) {
		reg.Register(c.Name(), health.Instrument(c, a.mw, kind, critical))
	}

	durable, err := a.durableStore(ctx)
	if err != nil {
		return nil, err
	}
	if a.pinger != nil {
		add(health.NewPingChecker("store", a.pinger), "store", true)
	}

	source, db, err := a.taskSource(ctx)
	if err != nil {
		return nil, err
	}
	if db != nil {
		add(health.NewPingChecker("postgres", db), "store", true)
	}

	eval := staleness.NewEvaluator(staleness.Params{
		TTL:          cfg.StorageTTL.Std(),
		Tolerance:    cfg.Tolerance.Std(),
		SyncInterval: cfg.EffectiveSyncInterval(),
	})
	beat := func(name string, mode staleness.Mode) {
		add(staleness.NewChecker(staleness.CheckerConfig{
			Name:      name,
			Mode:      mode,
			Source:    source,
			Store:     durable,
			Evaluator: eval,
			Logger:    a.logger,
		}), "staleness", false)
	}
	if cfg.Strategy == config.StrategyLazy || cfg.Strategy == config.StrategyBoth {
		beat("beat-lazy", staleness.ModeLazy)
	}
	if cfg.Strategy == config.StrategyRealtime || cfg.Strategy == config.StrategyBoth {
		beat("beat-realtime", staleness.ModeRealtime)
	}

	ready, alive, err := a.markerStores()
	if err != nil {
		return nil, err
	}
	add(liveness.NewChecker(liveness.CheckerConfig{
		Ready:   ready,
		Alive:   alive,
		Timeout: cfg.WorkerTimeout.Std(),
		Logger:  a.logger,
	}), "liveness", false)

	if cfg.PIDFile != "" {
		add(liveness.NewPIDFileChecker("scheduler", cfg.PIDFile), "pidfile", true)
	}

	if a.probesEnabled() {
		nc, err := a.natsConn()
		if err != nil {
			return nil, err
		}
		add(probe.NewPingChecker(nc, probe.PingConfig{
			Subject:  cfg.NATS.PingSubject,
			Critical: true,
			Logger:   a.logger,
		}), "probe", true)
		if len(cfg.NATS.Queues) > 0 {
			add(probe.NewQueueChecker(nc, probe.QueueConfig{
				Prefix:   cfg.NATS.QueuePrefix,
				Queues:   cfg.NATS.Queues,
				Critical: true,
				Logger:   a.logger,
			}), "probe", true)
		}
	}

	a.logger.Info(ctx, "health checks registered", observe.F("checks", reg.CheckerNames()))
	return reg, nil
}
