package probe

import "strings"

const (
	// DefaultPingSubject is the broadcast subject for pings.
	DefaultPingSubject = "fleet.ping"
	// DefaultQueuePrefix prefixes per-queue task subjects.
	DefaultQueuePrefix = "fleet.queue"

	// TaskAdd sums its arguments.
	TaskAdd = "add"
)

// PingRequest is broadcast on the ping subject.
type PingRequest struct {
	ID string `json:"id"`
}

// PingReply is a worker's answer to a ping.
type PingReply struct {
	ID     string         `json:"id"`
	Worker string         `json:"worker"`
	Reply  map[string]any `json:"reply"`
}

// OK reports whether the reply is exactly {"ok": "pong"}.
func (r PingReply) OK() bool {
	return len(r.Reply) == 1 && r.Reply["ok"] == "pong"
}

// TaskRequest asks a queue consumer to run a probe task.
type TaskRequest struct {
	ID   string `json:"id"`
	Task string `json:"task"`
	Args []int  `json:"args"`
}

// TaskResult is the answer to a TaskRequest.
type TaskResult struct {
	ID     string `json:"id"`
	Result *int   `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// QueueSubject returns the subject for queue under prefix.
func QueueSubject(prefix, queue string) string {
	return strings.TrimSuffix(prefix, ".") + "." + queue
}
