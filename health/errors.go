package health

import "errors"

var (
	// ErrCheckFailed indicates a health check reported unhealthy entities.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a health check did not finish in time.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates no checker is registered under a name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrUnauthorized indicates a request carried no valid bearer token.
	ErrUnauthorized = errors.New("health: unauthorized")
)
