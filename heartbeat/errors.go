package heartbeat

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a running recorder.
	ErrAlreadyStarted = errors.New("heartbeat: recorder already started")

	// ErrNotStarted is returned by Stop on a recorder that is not running.
	ErrNotStarted = errors.New("heartbeat: recorder not started")

	// ErrNoEntityID is returned by Start when no entity id is configured.
	ErrNoEntityID = errors.New("heartbeat: entity id not set")
)
