package health

import (
	"errors"
	"strings"
	"testing"
)

func TestFromVerdicts(t *testing.T) {
	failing := []Verdict{
		Pass("reports.cleanup"),
		Fail("reports.nightly", "scheduled task reports.nightly has not run for too long"),
		Fail("sync.hourly", "scheduled task sync.hourly has not run for too long"),
	}

	tests := []struct {
		name       string
		verdicts   []Verdict
		critical   bool
		wantStatus Status
		wantErr    error
	}{
		{"empty", nil, true, StatusHealthy, nil},
		{"all healthy", []Verdict{Pass("a"), Pass("b")}, true, StatusHealthy, nil},
		{"critical failure", failing, true, StatusUnhealthy, ErrCheckFailed},
		{"non-critical failure", failing, false, StatusDegraded, ErrCheckFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromVerdicts(tt.verdicts, tt.critical)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", got.Status, tt.wantStatus)
			}
			if !errors.Is(got.Error, tt.wantErr) {
				t.Errorf("Error = %v, want %v", got.Error, tt.wantErr)
			}
			if len(got.Verdicts) != len(tt.verdicts) {
				t.Errorf("len(Verdicts) = %d, want %d", len(got.Verdicts), len(tt.verdicts))
			}
		})
	}
}

func TestFromVerdicts_MessageJoinsReasons(t *testing.T) {
	got := FromVerdicts([]Verdict{
		Fail("w1", "worker w1 once started, is no longer active"),
		Fail("w2", "worker w2 has been inactive more than 30s"),
	}, true)

	if !strings.Contains(got.Message, "w1 once started") || !strings.Contains(got.Message, "w2 has been inactive") {
		t.Errorf("Message = %q, want both reasons", got.Message)
	}
}

func TestPassFail(t *testing.T) {
	if v := Pass("x"); !v.Healthy || v.Reason != "" {
		t.Errorf("Pass() = %+v", v)
	}
	if v := Fail("x", "gone"); v.Healthy || v.Reason != "gone" {
		t.Errorf("Fail() = %+v", v)
	}
}
