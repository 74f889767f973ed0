package endpoint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/shurlinet/syncmesh/internal/identity"
)

func newTestEndpoint(t *testing.T) *Endpoint {
	t.Helper()
	dir := t.TempDir()
	id, err := identity.LoadOrCreate(filepath.Join(dir, "secret_key"))
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ep, err := New(ctx, id, &Config{
		ListenAddrs: []string{"/ip4/127.0.0.1/udp/0/quic-v1"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { ep.Close() })
	return ep
}

func TestNew_BindsQUICHost(t *testing.T) {
	ep := newTestEndpoint(t)
	if ep.PeerID() == "" {
		t.Fatal("PeerID() is empty")
	}
	if len(ep.Addrs()) == 0 {
		t.Fatal("Addrs() returned no listen addresses")
	}
}

func TestEndpoints_DirectConnect(t *testing.T) {
	a := newTestEndpoint(t)
	b := newTestEndpoint(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bInfo := peer.AddrInfo{ID: b.PeerID(), Addrs: b.Addrs()}
	if err := a.Host().Connect(ctx, bInfo); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if len(a.Host().Network().ConnsToPeer(b.PeerID())) == 0 {
		t.Fatal("expected an open connection to peer b")
	}
}

func TestRendezvous_RequiresDHT(t *testing.T) {
	ep := newTestEndpoint(t) // built without EnableDHT

	topic := make([]byte, 32)
	if err := ep.PublishRendezvous(context.Background(), topic); err == nil {
		t.Fatal("PublishRendezvous() without DHT: want error, got nil")
	}
	if _, err := ep.ResolveRendezvous(context.Background(), topic, 5); err == nil {
		t.Fatal("ResolveRendezvous() without DHT: want error, got nil")
	}
}

func TestRendezvousKey_DeterministicPerTopic(t *testing.T) {
	topicA := make([]byte, 32)
	topicB := make([]byte, 32)
	topicB[0] = 1

	keyA1, err := rendezvousKey(topicA)
	if err != nil {
		t.Fatalf("rendezvousKey() error = %v", err)
	}
	keyA2, err := rendezvousKey(topicA)
	if err != nil {
		t.Fatalf("rendezvousKey() error = %v", err)
	}
	keyB, err := rendezvousKey(topicB)
	if err != nil {
		t.Fatalf("rendezvousKey() error = %v", err)
	}

	if !keyA1.Equals(keyA2) {
		t.Fatal("same topic produced different rendezvous keys")
	}
	if keyA1.Equals(keyB) {
		t.Fatal("different topics produced the same rendezvous key")
	}
}

func TestParseRelayAddrs_MergesSamePeer(t *testing.T) {
	id := "12D3KooWGRR8PNFLJi3mdTbBCcsx8jz6rR8ZpZHvJpE4jQMZXhQm"
	addrs := []string{
		"/ip4/1.2.3.4/udp/7777/quic-v1/p2p/" + id,
		"/ip4/5.6.7.8/udp/7777/quic-v1/p2p/" + id,
	}

	infos, err := ParseRelayAddrs(addrs)
	if err != nil {
		t.Fatalf("ParseRelayAddrs() error = %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("len(infos) = %d, want 1", len(infos))
	}
	if len(infos[0].Addrs) != 2 {
		t.Fatalf("len(infos[0].Addrs) = %d, want 2", len(infos[0].Addrs))
	}
}

func TestParseRelayAddrs_InvalidAddr(t *testing.T) {
	if _, err := ParseRelayAddrs([]string{"not-a-multiaddr"}); err == nil {
		t.Fatal("ParseRelayAddrs() with invalid addr: want error, got nil")
	}
}
