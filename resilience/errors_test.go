package resilience

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	all := []error{ErrCircuitOpen, ErrMaxRetriesExceeded, ErrTimeout}
	for i, a := range all {
		if a.Error() == "" {
			t.Errorf("error %d has empty message", i)
		}
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v should not match %v", a, b)
			}
		}
	}
}
