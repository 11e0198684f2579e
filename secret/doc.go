// Package secret resolves credentials referenced from configuration.
//
// Configuration strings may use ${VAR} to read the environment; a missing
// variable is an error rather than an empty string. A value may also name a
// secret held elsewhere with the prefix "secretref:":
//
//   - secretref:file:/run/secrets/redis-password
//   - secretref:env:FLEETWATCH_JWT_SECRET
//   - postgres://app:secretref:file:pg-password@db/beat (inline)
//
// File secrets have their trailing newline removed.
package secret
