package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jonwraymond/fleetwatch/config"
	"github.com/jonwraymond/fleetwatch/health"
	"github.com/jonwraymond/fleetwatch/observe"
	"github.com/jonwraymond/fleetwatch/resilience"
	"github.com/jonwraymond/fleetwatch/staleness"
	"github.com/jonwraymond/fleetwatch/store"
	"github.com/jonwraymond/fleetwatch/taskdb"
)

// app owns the process-wide dependencies. Connections are opened on first
// use and released by Close in reverse order.
type app struct {
	cfg     *config.Config
	obs     observe.Observer
	mw      *observe.Middleware
	logger  observe.Logger
	promReg *prometheus.Registry

	nc      *nats.Conn
	durable store.Store
	pinger  health.Pinger
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	oc := cfg.Observe
	obs, err := observe.NewObserver(ctx, observe.Config{
		ServiceName: oc.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   oc.TracingExporter != "none",
			Exporter:  oc.TracingExporter,
			SamplePct: oc.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  oc.MetricsExporter != "none",
			Exporter: oc.MetricsExporter,
		},
		Logging:    observe.LoggingConfig{Enabled: true, Level: oc.LogLevel},
		Registerer: promReg,
	})
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("observe: %w", err)
	}

	return &app{
		cfg:     cfg,
		obs:     obs,
		mw:      mw,
		logger:  obs.Logger(),
		promReg: promReg,
	}, nil
}

// Close releases connections and flushes telemetry.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil

	ctx, cancel := context.WithTimeout(context.Background(), resilience.DefaultTimeout)
	defer cancel()
	if err := a.obs.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fleetwatch: telemetry shutdown: %v\n", err)
	}
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// natsConn connects to cfg.NATS.URL once and reuses the connection.
func (a *app) natsConn() (*nats.Conn, error) {
	if a.nc != nil {
		return a.nc, nil
	}
	logger := a.logger.With(observe.F("url", a.cfg.NATS.URL))
	nc, err := nats.Connect(a.cfg.NATS.URL,
		nats.Name(a.cfg.Observe.ServiceName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(context.Background(), "nats disconnected", observe.F("error", err))
			}
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			logger.Info(context.Background(), "nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", a.cfg.NATS.URL, err)
	}
	a.nc = nc
	a.onClose(nc.Close)
	return nc, nil
}

// durableStore opens the observation store selected by cfg.Backend.
func (a *app) durableStore(ctx context.Context) (store.Store, error) {
	if a.durable != nil {
		return a.durable, nil
	}
	ttl := a.cfg.StorageTTL.Std()

	switch a.cfg.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.onClose(func() { _ = client.Close() })
		s := store.NewRedisStore(client, store.RedisConfig{TTL: ttl, Prefix: a.cfg.Redis.Prefix})
		a.durable, a.pinger = s, s

	case config.BackendNATS:
		nc, err := a.natsConn()
		if err != nil {
			return nil, err
		}
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		kv, err := store.EnsureBucket(ctx, js, a.cfg.NATS.Bucket, ttl)
		if err != nil {
			return nil, err
		}
		a.durable, a.pinger = store.NewKVStore(kv, 0), natsPinger{nc: nc}

	default:
		a.logger.Warn(ctx, "using the in-process observation store; observations are not shared between processes")
		a.durable = store.NewMemoryStore(store.WithTTL(ttl))
	}

	a.logger.Info(ctx, "observation store ready", observe.F("backend", a.cfg.Backend), observe.F("ttl", ttl.String()))
	return a.durable, nil
}

// markerStores opens the local ready and alive markers.
func (a *app) markerStores() (ready, alive *store.FileStore, err error) {
	ready, err = store.NewFileStore(a.cfg.Files.Dir, store.CategoryReady)
	if err != nil {
		return nil, nil, err
	}
	alive, err = store.NewFileStore(a.cfg.Files.Dir, store.CategoryAlive)
	if err != nil {
		return nil, nil, err
	}
	return ready, alive, nil
}

// taskSource lists periodic tasks from PostgreSQL when a DSN is configured.
// The returned pinger is nil without a database.
func (a *app) taskSource(ctx context.Context) (staleness.TaskSource, health.Pinger, error) {
	if a.cfg.Postgres.DSN == "" {
		a.logger.Warn(ctx, "postgres.dsn is not set; no periodic tasks will be checked")
		return staleness.StaticSource(nil), nil, nil
	}
	pool, err := taskdb.Connect(ctx, a.cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, err
	}
	a.onClose(pool.Close)
	return taskdb.NewSource(pool, taskdb.Config{Logger: a.logger}), pool, nil
}

// probesEnabled reports whether the NATS ping and queue probes run.
func (a *app) probesEnabled() bool {
	return a.cfg.Backend == config.BackendNATS || len(a.cfg.NATS.Queues) > 0
}

// natsPinger checks a NATS connection with a round trip to the server.
type natsPinger struct {
	nc *nats.Conn
}

func (p natsPinger) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, resilience.DefaultTimeout)
		defer cancel()
	}
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return errors.Join(store.ErrStoreUnavailable, err)
	}
	return nil
}
