package endpoint

import "fmt"

// InitializationError wraps a fatal failure while bringing up the
// endpoint: binding the libp2p host, parsing a relay address, or
// starting discovery.
type InitializationError struct {
	Op  string
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("endpoint: %s: %v", e.Op, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }
