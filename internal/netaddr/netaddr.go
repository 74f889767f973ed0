// Package netaddr defines the wire-format address record embedded in
// both blob and gossip tickets: a node ID plus the addresses needed to
// dial it, independent of the libp2p types used to actually make the
// connection. Keeping this separate from package endpoint lets tickets
// be encoded/decoded without importing the libp2p host machinery.
package netaddr

import (
	"fmt"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/syncmesh/internal/identity"
)

// NodeAddress is the serializable form of a peer's dialable addresses:
// a relay circuit address (if any) and a set of direct multiaddrs.
type NodeAddress struct {
	NodeID      identity.NodeID `json:"node_id"`
	RelayAddr   string          `json:"relay_addr,omitempty"`
	DirectAddrs []string        `json:"direct_addrs,omitempty"`
}

// PeerID derives the libp2p peer ID corresponding to this address's
// node ID.
func (a NodeAddress) PeerID() (peer.ID, error) {
	pub, err := libp2pcrypto.UnmarshalEd25519PublicKey(a.NodeID[:])
	if err != nil {
		return "", fmt.Errorf("netaddr: unmarshal public key: %w", err)
	}
	return peer.IDFromPublicKey(pub)
}

// AddrInfo converts to a libp2p peer.AddrInfo, combining the relay
// address (if set) and all direct addresses into one multiaddr list.
func (a NodeAddress) AddrInfo() (peer.AddrInfo, error) {
	id, err := a.PeerID()
	if err != nil {
		return peer.AddrInfo{}, fmt.Errorf("netaddr: derive peer id: %w", err)
	}

	var addrs []ma.Multiaddr
	if a.RelayAddr != "" {
		relay, err := ma.NewMultiaddr(a.RelayAddr + "/p2p-circuit")
		if err != nil {
			return peer.AddrInfo{}, fmt.Errorf("netaddr: parse relay addr: %w", err)
		}
		addrs = append(addrs, relay)
	}
	for _, s := range a.DirectAddrs {
		m, err := ma.NewMultiaddr(s)
		if err != nil {
			return peer.AddrInfo{}, fmt.Errorf("netaddr: parse direct addr %q: %w", s, err)
		}
		addrs = append(addrs, m)
	}

	return peer.AddrInfo{ID: id, Addrs: addrs}, nil
}

// FromHostAddrs builds a NodeAddress from a node's own ID and its
// current listen multiaddrs, for embedding in a ticket this node hands
// out to others.
func FromHostAddrs(nodeID identity.NodeID, addrs []ma.Multiaddr, relayAddr string) NodeAddress {
	direct := make([]string, 0, len(addrs))
	for _, a := range addrs {
		direct = append(direct, a.String())
	}
	return NodeAddress{NodeID: nodeID, RelayAddr: relayAddr, DirectAddrs: direct}
}
