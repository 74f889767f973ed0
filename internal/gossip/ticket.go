package gossip

import (
	"encoding/base32"
	"encoding/json"
	"strings"

	"github.com/shurlinet/syncmesh/internal/netaddr"
)

// Ticket names a topic plus the addresses of nodes already on it, so a
// new node can both join the right overlay and have somewhere to dial
// into it. Encoded the same way as a blob ticket: JSON, then lowercase
// Base32 with no padding.
type Ticket struct {
	Topic Topic                 `json:"topic"`
	Nodes []netaddr.NodeAddress `json:"nodes"`
}

var ticketEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// String encodes the ticket.
func (t Ticket) String() string {
	raw, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}
	return strings.ToLower(ticketEncoding.EncodeToString(raw))
}

// ParseTicket decodes a ticket string produced by Ticket.String.
func ParseTicket(s string) (Ticket, error) {
	raw, err := ticketEncoding.DecodeString(strings.ToUpper(s))
	if err != nil {
		return Ticket{}, &TicketError{Op: "decode base32", Err: err}
	}
	var t Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return Ticket{}, &TicketError{Op: "decode json", Err: err}
	}
	return t, nil
}
