package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/fleetwatch/health"
	"github.com/jonwraymond/fleetwatch/monitor"
	"github.com/jonwraymond/fleetwatch/observe"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serve(ctx context.Context) error {
	reg, err := a.buildRegistry(ctx)
	if err != nil {
		return err
	}
	return a.serveHTTP(ctx, a.handler(reg))
}

func (a *app) monitor(ctx context.Context) error {
	cam, err := a.camera(ctx)
	if err != nil {
		return err
	}
	return cam.Run(ctx)
}

// serveAndMonitor runs the camera next to the health endpoints, which lets
// the in-process memory backend see the camera's observations.
func (a *app) serveAndMonitor(ctx context.Context) error {
	reg, err := a.buildRegistry(ctx)
	if err != nil {
		return err
	}
	cam, err := a.camera(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cam.Run(ctx) })
	g.Go(func() error { return a.serveHTTP(ctx, a.handler(reg)) })
	return g.Wait()
}

// handler routes the health endpoints and /metrics. The detailed health
// endpoints require a bearer token when a JWT secret is configured.
func (a *app) handler(reg *health.Registry) http.Handler {
	mux := http.NewServeMux()

	var guard func(http.Handler) http.Handler
	if secret := a.cfg.HTTP.JWTSecret; secret != "" {
		guard = health.RequireBearer([]byte(secret))
	}
	health.RegisterHandlers(mux, reg, guard)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{}))
	return mux
}

func (a *app) serveHTTP(ctx context.Context, h http.Handler) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.logger.Info(ctx, "serving health endpoints", observe.F("addr", a.cfg.HTTP.Addr))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info(ctx, "shutting down health endpoints")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// camera flushes NATS fleet events into the durable store every tolerance
// period.
func (a *app) camera(ctx context.Context) (*monitor.Camera, error) {
	durable, err := a.durableStore(ctx)
	if err != nil {
		return nil, err
	}
	nc, err := a.natsConn()
	if err != nil {
		return nil, err
	}
	return monitor.NewCamera(monitor.CameraConfig{
		Source: monitor.NewNATSEventSource(nc, a.cfg.NATS.EventsSubject, a.logger),
		Store:  durable,
		Freq:   a.cfg.Tolerance.Std(),
		Logger: a.logger,
	}), nil
}
