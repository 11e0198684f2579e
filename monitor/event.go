package monitor

import (
	"context"
	"time"
)

// Event types understood by the camera.
const (
	EventTaskStarted     = "task-started"
	EventWorkerHeartbeat = "worker-heartbeat"
	EventWorkerOnline    = "worker-online"
)

// Event is one fleet event.
type Event struct {
	Type      string    `json:"type"`
	Hostname  string    `json:"hostname"`
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSource delivers events to handle until ctx is done or the source
// fails. A nil error is only returned once ctx is done.
type EventSource interface {
	Receive(ctx context.Context, handle func(Event)) error
}
