// Package config loads fleetwatch configuration from YAML.
//
// Every scalar may reference the environment as ${VAR}; an unset variable
// fails the load. Credential fields (redis.password, postgres.dsn,
// http.jwt_secret) may additionally hold secretref: references resolved by
// package secret. Durations accept Go syntax ("30s", "1m30s") or a bare
// number of seconds.
package config
