package liveness

import (
	"fmt"
	"time"

	"github.com/jonwraymond/fleetwatch/health"
)

// Worker is what the stores know about one worker process.
type Worker struct {
	ID    string
	Ready bool
	// Alive is the last alive marker; zero when absent.
	Alive time.Time
}

// Classify returns the verdict for w. The second result is false when w has
// no ready marker and is therefore not evaluated.
//
// An age equal to timeout is still healthy.
func Classify(w Worker, timeout time.Duration, now time.Time) (health.Verdict, bool) {
	if !w.Ready {
		return health.Verdict{}, false
	}
	if w.Alive.IsZero() {
		return health.Fail(w.ID, fmt.Sprintf("worker %s once started, is no longer active", w.ID)), true
	}
	if now.Sub(w.Alive) > timeout {
		return health.Fail(w.ID, fmt.Sprintf("worker %s has been inactive more than %s", w.ID, timeout)), true
	}
	return health.Pass(w.ID), true
}

// ClassifyAll classifies every ready worker, preserving order.
func ClassifyAll(workers []Worker, timeout time.Duration, now time.Time) []health.Verdict {
	out := make([]health.Verdict, 0, len(workers))
	for _, w := range workers {
		if v, ok := Classify(w, timeout, now); ok {
			out = append(out, v)
		}
	}
	return out
}
