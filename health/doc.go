// Package health turns entity verdicts into check results and serves them.
//
// A Checker reports a Result holding a Status (Healthy, Degraded or
// Unhealthy) and, for fleet checks, one Verdict per evaluated entity.
// FromVerdicts applies criticality: failures in a critical check make it
// Unhealthy, failures in a non-critical check only Degraded. A check that
// cannot reach a verdict, for example because its store is unreachable, is
// always Unhealthy.
//
// # Registry
//
// Checks are registered explicitly on a Registry owned by the caller:
//
//	reg := health.NewRegistry(health.RegistryConfig{Timeout: 10 * time.Second, Parallel: true})
//	reg.Register("liveness", livenessChecker)
//	reg.Register("beat-lazy", lazyChecker)
//
//	results := reg.CheckAll(ctx)
//	overall := health.OverallStatus(results)
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, reg, health.RequireBearer(secret))
//
// registers /healthz, /readyz, /health and /health/{name}. Degraded answers
// 200 so non-critical checks never fail an orchestrator probe.
package health
