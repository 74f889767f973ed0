// Package endpoint builds and runs the node's network endpoint: a
// libp2p host bound to QUIC only, with NAT traversal, a static-relay
// fallback, and LAN + DHT discovery layered on top. It is the Go home
// for the "Identity & Endpoint" component: the thing every other
// package (blob transfer, gossip) registers stream handlers and
// protocols against.
package endpoint

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/multiformats/go-multihash"

	dht "github.com/libp2p/go-libp2p-kad-dht"

	"github.com/shurlinet/syncmesh/internal/identity"
)

// Config controls how the endpoint is bootstrapped. There is no
// transport choice, connection gater, or authorized-keys list here:
// ticket possession is the only access control this engine implements.
type Config struct {
	// ListenAddrs are QUIC multiaddrs to listen on. Empty means listen
	// on all interfaces, OS-assigned port.
	ListenAddrs []string

	// RelayAddrs are static circuit-relay-v2 multiaddrs used as an
	// AutoRelay fallback when direct/hole-punched connectivity fails.
	RelayAddrs []string

	// EnableMDNS turns on LAN peer discovery via mDNS.
	EnableMDNS bool

	// EnableDHT turns on the Kademlia DHT client used as a best-effort
	// peer-routing fallback when a ticket's recorded addresses are
	// stale.
	EnableDHT bool
}

// DefaultListenAddrs is used when Config.ListenAddrs is empty.
var DefaultListenAddrs = []string{
	"/ip4/0.0.0.0/udp/0/quic-v1",
	"/ip6/::/udp/0/quic-v1",
}

// Endpoint wraps a libp2p host bound to QUIC, plus the discovery
// services layered on it.
type Endpoint struct {
	host host.Host
	dht  *dht.IpfsDHT
	mdns *mdnsDiscovery

	cancel context.CancelFunc
}

// New brings up the endpoint: using the caller-supplied persistent
// identity, builds a QUIC-only libp2p host with NAT port mapping, hole
// punching, and a static-relay AutoRelay fallback, then starts whatever
// discovery mechanisms Config enables.
func New(ctx context.Context, id *identity.Identity, cfg *Config) (*Endpoint, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	listenAddrs := cfg.ListenAddrs
	if len(listenAddrs) == 0 {
		listenAddrs = DefaultListenAddrs
	}

	opts := []libp2p.Option{
		libp2p.Identity(id.PrivKey()),
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.ListenAddrStrings(listenAddrs...),
		libp2p.NATPortMap(),
		libp2p.EnableHolePunching(),
	}

	if len(cfg.RelayAddrs) > 0 {
		relayInfos, err := ParseRelayAddrs(cfg.RelayAddrs)
		if err != nil {
			return nil, &InitializationError{Op: "parse relay addresses", Err: err}
		}
		if len(relayInfos) > 0 {
			opts = append(opts, libp2p.EnableAutoRelayWithStaticRelays(relayInfos))
		}
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, &InitializationError{Op: "create libp2p host", Err: err}
	}

	epCtx, cancel := context.WithCancel(ctx)
	ep := &Endpoint{host: h, cancel: cancel}

	if cfg.EnableDHT {
		kad, err := dht.New(epCtx, h, dht.Mode(dht.ModeAuto))
		if err != nil {
			cancel()
			h.Close()
			return nil, &InitializationError{Op: "create dht", Err: err}
		}
		if err := kad.Bootstrap(epCtx); err != nil {
			cancel()
			kad.Close()
			h.Close()
			return nil, &InitializationError{Op: "bootstrap dht", Err: err}
		}
		ep.dht = kad
	}

	if cfg.EnableMDNS {
		md := newMDNSDiscovery(h)
		if err := md.Start(epCtx); err != nil {
			cancel()
			if ep.dht != nil {
				ep.dht.Close()
			}
			h.Close()
			return nil, &InitializationError{Op: "start mdns", Err: err}
		}
		ep.mdns = md
	}

	return ep, nil
}

// Host returns the underlying libp2p host, for registering stream
// handlers (blob transfer, gossip pubsub) and dialling peers.
func (e *Endpoint) Host() host.Host {
	return e.host
}

// PeerID returns this endpoint's libp2p peer ID.
func (e *Endpoint) PeerID() peer.ID {
	return e.host.ID()
}

// Addrs returns the endpoint's current listen multiaddrs, suitable for
// embedding in a ticket's NodeAddress.
func (e *Endpoint) Addrs() []ma.Multiaddr {
	return e.host.Addrs()
}

// ResolveViaDHT is a best-effort fallback peer lookup used when dialling
// a ticket's recorded addresses fails: it asks the DHT for the peer's
// current addresses. Returns an error if DHT discovery was not enabled.
func (e *Endpoint) ResolveViaDHT(ctx context.Context, p peer.ID) (peer.AddrInfo, error) {
	if e.dht == nil {
		return peer.AddrInfo{}, fmt.Errorf("endpoint: dht discovery not enabled")
	}
	return e.dht.FindPeer(ctx, p)
}

// rendezvousKey derives the DHT provider key for a 32-byte topic
// identifier. Every node on a topic provides the same key, so the key
// doubles as a well-known rendezvous point for the whole group.
func rendezvousKey(topic []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(topic, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("endpoint: hash rendezvous key: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// PublishRendezvous announces this node as a provider of topic's
// rendezvous key, making its current addresses resolvable by any peer
// that knows the topic even after the addresses recorded in a ticket
// have gone stale. Returns an error if DHT discovery was not enabled.
func (e *Endpoint) PublishRendezvous(ctx context.Context, topic []byte) error {
	if e.dht == nil {
		return fmt.Errorf("endpoint: dht discovery not enabled")
	}
	key, err := rendezvousKey(topic)
	if err != nil {
		return err
	}
	return e.dht.Provide(ctx, key, true)
}

// ResolveRendezvous returns up to limit peers currently providing
// topic's rendezvous key, excluding this node. Returns an error if DHT
// discovery was not enabled.
func (e *Endpoint) ResolveRendezvous(ctx context.Context, topic []byte, limit int) ([]peer.AddrInfo, error) {
	if e.dht == nil {
		return nil, fmt.Errorf("endpoint: dht discovery not enabled")
	}
	key, err := rendezvousKey(topic)
	if err != nil {
		return nil, err
	}

	var infos []peer.AddrInfo
	for info := range e.dht.FindProvidersAsync(ctx, key, limit) {
		if info.ID == e.host.ID() {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Close shuts down discovery, the DHT client, and the libp2p host.
func (e *Endpoint) Close() error {
	e.cancel()
	if e.mdns != nil {
		e.mdns.Close()
	}
	if e.dht != nil {
		e.dht.Close()
	}
	return e.host.Close()
}

// ParseRelayAddrs parses relay multiaddrs into peer.AddrInfo, deduping
// by peer ID and merging addresses for the same relay peer.
func ParseRelayAddrs(relayAddrs []string) ([]peer.AddrInfo, error) {
	var infos []peer.AddrInfo
	seen := make(map[peer.ID]int)

	for _, s := range relayAddrs {
		maddr, err := ma.NewMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid relay addr %s: %w", s, err)
		}
		ai, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			return nil, fmt.Errorf("cannot parse relay addr %s: %w", s, err)
		}
		if idx, ok := seen[ai.ID]; ok {
			infos[idx].Addrs = append(infos[idx].Addrs, ai.Addrs...)
			continue
		}
		seen[ai.ID] = len(infos)
		infos = append(infos, *ai)
	}
	return infos, nil
}
