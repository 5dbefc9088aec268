package adapter

import (
	"errors"
	"fmt"
)

// AdapterError wraps provider errors with status metadata. The mediation
// core never retries; the error surfaces to the caller as-is (fail-fast),
// with the status preserved so the HTTP layer can map it.
type AdapterError struct {
	Adapter string
	Status  int
	Err     error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "adapter error"
	}
	if e.Err != nil {
		if e.Adapter != "" {
			return fmt.Sprintf("%s: %v", e.Adapter, e.Err)
		}
		return e.Err.Error()
	}
	return fmt.Sprintf("adapter %s error (status=%d)", e.Adapter, e.Status)
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsAdapterError reports whether err originated from a backend call.
func IsAdapterError(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae)
}
