package liveness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/fleetwatch/health"
)

func TestPIDFileChecker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beat.pid")
	c := NewPIDFileChecker("beat", path)
	require.Equal(t, "beat", c.Name())

	result := c.Check(context.Background())
	require.Equal(t, health.StatusUnhealthy, result.Status)
	require.Len(t, result.Failed(), 1)
	require.Equal(t, "scheduler has not started or pidfile is not set", result.Failed()[0].Reason)

	require.NoError(t, os.WriteFile(path, []byte("4242\n"), 0o644))
	result = c.Check(context.Background())
	require.Equal(t, health.StatusHealthy, result.Status)
	require.Equal(t, path, result.Details["path"])
}

func TestPIDFileChecker_DirectoryIsNotAPidfile(t *testing.T) {
	dir := t.TempDir()
	c := NewPIDFileChecker("beat", dir)

	result := c.Check(context.Background())
	require.Equal(t, health.StatusUnhealthy, result.Status)
}
