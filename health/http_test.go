package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestMux(checks map[string]Result, guard func(http.Handler) http.Handler) *http.ServeMux {
	reg := NewRegistry(RegistryConfig{Timeout: time.Second, Parallel: true})
	for name, result := range checks {
		reg.Register(name, NewCheckerFunc(name, func(context.Context) Result { return result }))
	}
	mux := http.NewServeMux()
	RegisterHandlers(mux, reg, guard)
	return mux
}

func serve(mux http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Body = %v, want 'OK'", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %v, want 'text/plain'", rec.Header().Get("Content-Type"))
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		wantCode int
		wantBody string
	}{
		{"healthy", Healthy("ok"), http.StatusOK, "OK"},
		{"degraded", FromVerdicts([]Verdict{Fail("t", "late")}, false), http.StatusOK, "DEGRADED"},
		{"unhealthy", FromVerdicts([]Verdict{Fail("w", "gone")}, true), http.StatusServiceUnavailable, "UNHEALTHY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestMux(map[string]Result{"c": tt.result}, nil), "/readyz")
			if rec.Code != tt.wantCode {
				t.Errorf("Status = %d, want %d", rec.Code, tt.wantCode)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("Body = %v, want %v", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestDetailedHandler_Verdicts(t *testing.T) {
	lazyResult := FromVerdicts([]Verdict{
		Pass("cleanup"),
		Fail("nightly", "scheduled task nightly has not run for too long"),
	}, false)
	mux := newTestMux(map[string]Result{
		"liveness":  FromVerdicts([]Verdict{Pass("w1@host")}, true),
		"beat-lazy": lazyResult,
	}, nil)

	rec := serve(mux, "/health")
	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %v, want 'application/json'", rec.Header().Get("Content-Type"))
	}

	var response HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Status != "degraded" {
		t.Errorf("Response.Status = %v, want 'degraded'", response.Status)
	}
	if response.Timestamp == "" {
		t.Error("Response.Timestamp should not be empty")
	}

	lazy, ok := response.Checks["beat-lazy"]
	if !ok {
		t.Fatal("Response.Checks should contain 'beat-lazy'")
	}
	if len(lazy.Verdicts) != 2 {
		t.Fatalf("len(Verdicts) = %d, want 2", len(lazy.Verdicts))
	}
	if lazy.Verdicts[1].Healthy || lazy.Verdicts[1].EntityID != "nightly" {
		t.Errorf("Verdicts[1] = %+v", lazy.Verdicts[1])
	}
	if lazy.Error != ErrCheckFailed.Error() {
		t.Errorf("Error = %q, want %q", lazy.Error, ErrCheckFailed.Error())
	}
}

func TestDetailedHandler_Unhealthy(t *testing.T) {
	mux := newTestMux(map[string]Result{
		"liveness": Unhealthy("store unavailable", context.DeadlineExceeded),
	}, nil)

	rec := serve(mux, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestSingleCheckHandler(t *testing.T) {
	mux := newTestMux(map[string]Result{
		"ok":   Healthy("fine"),
		"down": Unhealthy("gone", ErrCheckFailed),
	}, nil)

	rec := serve(mux, "/health/ok")
	if rec.Code != http.StatusOK {
		t.Errorf("/health/ok Status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp CheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Message != "fine" {
		t.Errorf("Message = %v, want 'fine'", resp.Message)
	}

	if rec := serve(mux, "/health/down"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/health/down Status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec := serve(mux, "/health/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("/health/missing Status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDetailedHandler_Timeout(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Timeout: 50 * time.Millisecond, Parallel: true})
	reg.Register("slow", NewCheckerFunc("slow", func(ctx context.Context) Result {
		time.Sleep(200 * time.Millisecond)
		return Healthy("ok")
	}))

	rec := httptest.NewRecorder()
	DetailedHandler(reg)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want %d for timed out check", rec.Code, http.StatusServiceUnavailable)
	}
	var response HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Checks["slow"].Error != ErrCheckTimeout.Error() {
		t.Errorf("Error = %q, want %q", response.Checks["slow"].Error, ErrCheckTimeout.Error())
	}
}

func TestRegisterHandlers_Guard(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}
	mux := newTestMux(map[string]Result{"c": Healthy("ok")}, deny)

	if rec := serve(mux, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("/healthz Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := serve(mux, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("/readyz Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := serve(mux, "/health"); rec.Code != http.StatusForbidden {
		t.Errorf("/health Status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if rec := serve(mux, "/health/c"); rec.Code != http.StatusForbidden {
		t.Errorf("/health/c Status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
