package agentapi

import "fmt"

// TransportError indicates the HTTP request itself failed: connection
// refused, timeout, DNS failure. The remote run state is unknown.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError indicates the server answered but the response does not
// match the API contract: unexpected HTTP status, malformed JSON, a
// missing run identifier, or an unrecognized status value.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}
