package router

import "errors"

// RoutingError means no suitable backend could serve the request. It maps
// to a service-unavailable response, distinct from a backend call failing
// after routing succeeded.
type RoutingError struct {
	Reason string
}

func (e *RoutingError) Error() string {
	return "routing failed: " + e.Reason
}

// IsRoutingError reports whether err wraps a RoutingError.
func IsRoutingError(err error) bool {
	var re *RoutingError
	return errors.As(err, &re)
}
