// Package liveness classifies worker processes from two markers kept in
// stores.
//
// A worker writes a ready marker once it has started and keeps an alive
// marker fresh for as long as it runs (see package heartbeat). Only workers
// with a ready marker are evaluated:
//
//   - no alive marker: the worker started and is gone
//   - alive marker older than the timeout: the worker stopped making progress
//   - otherwise: healthy
//
// PIDFileChecker covers the scheduler, which writes a pidfile instead of
// markers.
package liveness
