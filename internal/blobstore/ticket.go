package blobstore

import (
	"encoding/base32"
	"encoding/json"
	"strings"

	"github.com/shurlinet/syncmesh/internal/netaddr"
)

// BlobFormat names the shape of the data a hash refers to. The engine
// only ever deals in whole-file blobs.
type BlobFormat string

// FormatRaw is the sole blob format this engine produces or accepts.
const FormatRaw BlobFormat = "raw"

// Ticket is everything needed to fetch a blob from its owner: the
// content hash, the format, and the owner's dialable address.
type Ticket struct {
	Hash   ContentHash         `json:"hash"`
	Format BlobFormat          `json:"format"`
	Node   netaddr.NodeAddress `json:"node"`
}

var ticketEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// String encodes the ticket as JSON, then lowercase Base32 (no
// padding), the same two-step scheme used for gossip tickets.
func (t Ticket) String() string {
	raw, err := json.Marshal(t)
	if err != nil {
		// Ticket fields are all plain data; Marshal cannot fail.
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
