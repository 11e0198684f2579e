package probe

import "errors"

var (
	// ErrNoReplies is returned when no worker answered a ping.
	ErrNoReplies = errors.New("probe: no replies")

	// ErrUnexpectedReply is returned when a reply does not match the request.
	ErrUnexpectedReply = errors.New("probe: unexpected reply")

	// ErrNoConsumers is returned when nothing listens on a queue.
	ErrNoConsumers = errors.New("probe: queue has no consumers")

	// ErrResultTimeout is returned when a queued task is not answered in time.
	ErrResultTimeout = errors.New("probe: task result timed out")
)
