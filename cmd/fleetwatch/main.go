// Command fleetwatch watches a task-processing fleet.
//
// Usage:
//
//	fleetwatch [-config path] serve    # HTTP health endpoints and /metrics
//	fleetwatch [-config path] monitor  # event camera writing observations
//	fleetwatch [-config path] all      # serve and monitor in one process
//	fleetwatch [-config path] worker   # demo worker: markers, heartbeats, probe replies
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonwraymond/fleetwatch/config"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fleetwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("fleetwatch", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("FLEETWATCH_CONFIG"), "Path to the YAML configuration file")
	workerID := fs.String("worker-id", "", "Worker id for the worker command (default: hostname)")
	showVersion := fs.Bool("version", false, "Print the version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: fleetwatch [flags] serve|monitor|all|worker\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Println(version)
		return nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one command is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd := fs.Arg(0); cmd {
	case "serve":
		return a.serve(ctx)
	case "monitor":
		return a.monitor(ctx)
	case "all":
		return a.serveAndMonitor(ctx)
	case "worker":
		id := *workerID
		if id == "" {
			if id, err = os.Hostname(); err != nil {
				return fmt.Errorf("worker id: %w", err)
			}
		}
		return a.worker(ctx, id)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// loadConfig reads path, or uses the defaults when no file is given.
func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return config.Load(ctx, path)
}
