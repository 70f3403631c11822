package routing

import "errors"

var (
	// ErrInvalidRequest is returned before any I/O when origin or destination
	// is missing or malformed.
	ErrInvalidRequest = errors.New("invalid route request")
	// ErrNoRouteAvailable means neither the network nor the cache produced a route.
	ErrNoRouteAvailable = errors.New("no route available")
	// ErrUpstreamRoute means the directions provider answered without a usable route.
	ErrUpstreamRoute = errors.New("upstream route error")
	// ErrNetwork wraps transport level failures (timeout, DNS, connection).
	ErrNetwork = errors.New("network error")
	// ErrCacheUnavailable wraps failures of the local route store.
	ErrCacheUnavailable = errors.New("route cache unavailable")
)
