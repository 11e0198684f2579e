package health

import (
	"fmt"
	"strings"
)

// Verdict is the per-entity outcome of an evaluation.
type Verdict struct {
	EntityID string `json:"entity_id"`
	Healthy  bool   `json:"healthy"`
	Reason   string `json:"reason,omitempty"`
}

// Pass returns a healthy verdict.
func Pass(entityID string) Verdict {
	return Verdict{EntityID: entityID, Healthy: true}
}

// Fail returns an unhealthy verdict with a reason.
func Fail(entityID, reason string) Verdict {
	return Verdict{EntityID: entityID, Reason: reason}
}

// FromVerdicts folds entity verdicts into a Result.
//
// With no failures the result is healthy. Otherwise a critical check is
// unhealthy and a non-critical one is degraded; both carry ErrCheckFailed and
// a message joining the failure reasons.
func FromVerdicts(verdicts []Verdict, critical bool) Result {
	var reasons []string
	for _, v := range verdicts {
		if !v.Healthy {
			reasons = append(reasons, v.Reason)
		}
	}

	if len(reasons) == 0 {
		return Healthy(fmt.Sprintf("%d entities healthy", len(verdicts))).WithVerdicts(verdicts)
	}

	msg := strings.Join(reasons, "; ")
	if critical {
		return Unhealthy(msg, ErrCheckFailed).WithVerdicts(verdicts)
	}
	r := Degraded(msg).WithVerdicts(verdicts)
	r.Error = ErrCheckFailed
	return r
}
