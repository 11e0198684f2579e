package liveness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jonwraymond/fleetwatch/health"
)

// PIDFileChecker reports whether the scheduler has written its pidfile.
type PIDFileChecker struct {
	name string
	path string
}

// NewPIDFileChecker creates a checker for the pidfile at path.
func NewPIDFileChecker(name, path string) *PIDFileChecker {
	return &PIDFileChecker{name: name, path: path}
}

// Name implements health.Checker.
func (c *PIDFileChecker) Name() string {
	return c.name
}

// Check implements health.Checker. Only a regular file counts.
func (c *PIDFileChecker) Check(context.Context) health.Result {
	info, err := os.Stat(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return c.missing()
	case err != nil:
		return health.Unhealthy("pidfile unreadable", fmt.Errorf("stat %s: %w", c.path, err))
	case !info.Mode().IsRegular():
		return c.missing()
	}
	return health.Healthy("scheduler pidfile present").WithDetails(map[string]any{"path": c.path})
}

func (c *PIDFileChecker) missing() health.Result {
	const reason = "scheduler has not started or pidfile is not set"
	return health.FromVerdicts([]health.Verdict{health.Fail(c.name, reason)}, true).
		WithDetails(map[string]any{"path": c.path})
}
