package gossip

import "fmt"

// TicketError wraps a failure to parse or format a gossip ticket.
type TicketError struct {
	Op  string
	Err error
}

func (e *TicketError) Error() string { return fmt.Sprintf("gossip: %s: %v", e.Op, e.Err) }
func (e *TicketError) Unwrap() error { return e.Err }

// JoinError wraps a failure to join a topic: joining it with pubsub,
// subscribing, or attaching the peer-event handler. Failures to dial
// the bootstrap nodes carried in a ticket are skipped, not returned.
type JoinError struct {
	Op  string
	Err error
}

func (e *JoinError) Error() string { return fmt.Sprintf("gossip: %s: %v", e.Op, e.Err) }
func (e *JoinError) Unwrap() error { return e.Err }
