package autocomplete

import (
	"fmt"
)

// RemoteError is returned when the lookup endpoint answers with a non-2xx status.
type RemoteError struct {
	StatusCode int
	URL        string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("lookup endpoint returned HTTP %d", e.StatusCode)
}

// DecodeError is returned when a lookup response or a stored selection
// value is not the JSON we expect.
type DecodeError struct {
	Source string // "response" or "selection"
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
