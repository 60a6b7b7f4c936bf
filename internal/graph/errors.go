package graph

import "fmt"

// TransportError indicates the request never produced a usable HTTP
// response: connection failures, timeouts, non-200 statuses.
// Transient by default; callers retry.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError indicates the service answered but the body could
// not be decoded into fee records, or the GraphQL layer reported errors.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
