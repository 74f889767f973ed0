package gossip

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/shurlinet/syncmesh/internal/endpoint"
	"github.com/shurlinet/syncmesh/internal/identity"
	"github.com/shurlinet/syncmesh/internal/netaddr"
)

func newNode(t *testing.T) *endpoint.Endpoint {
	t.Helper()
	dir := t.TempDir()
	id, err := identity.LoadOrCreate(filepath.Join(dir, "secret_key"))
	if err != nil {
		t.Fatalf("LoadOrCreate() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ep, err := endpoint.New(ctx, id, &endpoint.Config{
		ListenAddrs: []string{"/ip4/127.0.0.1/udp/0/quic-v1"},
	})
	if err != nil {
		t.Fatalf("endpoint.New() error = %v", err)
	}
	t.Cleanup(func() { ep.Close() })
	return ep
}

func nodeID(t *testing.T, ep *endpoint.Endpoint) identity.NodeID {
	t.Helper()
	pub := ep.Host().Peerstore().PubKey(ep.PeerID())
	raw, err := pub.Raw()
	if err != nil {
		t.Fatalf("PubKey.Raw() error = %v", err)
	}
	id, err := identity.NodeIDFromBytes(raw)
	if err != nil {
		t.Fatalf("NodeIDFromBytes() error = %v", err)
	}
	return id
}

func TestOverlay_PublishSubscribeAcrossTwoNodes(t *testing.T) {
	a := newNode(t)
	b := newNode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := a.Host().Connect(ctx, peer.AddrInfo{ID: b.PeerID(), Addrs: b.Addrs()}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	overlayA, err := New(ctx, a.Host())
	if err != nil {
		t.Fatalf("New() overlay a error = %v", err)
	}
	overlayB, err := New(ctx, b.Host())
	if err != nil {
		t.Fatalf("New() overlay b error = %v", err)
	}

	topic, err := NewTopic()
	if err != nil {
		t.Fatalf("NewTopic() error = %v", err)
	}
	ticket := Ticket{
		Topic: topic,
		Nodes: []netaddr.NodeAddress{netaddr.FromHostAddrs(nodeID(t, a), a.Addrs(), "")},
	}

	sessA, err := overlayA.Subscribe(ctx, ticket)
	if err != nil {
		t.Fatalf("Subscribe() a error = %v", err)
	}
	defer sessA.Close()

	sessB, err := overlayB.Subscribe(ctx, ticket)
	if err != nil {
		t.Fatalf("Subscribe() b error = %v", err)
	}
	defer sessB.Close()

	// Give GossipSub's mesh a moment to form before publishing.
	time.Sleep(500 * time.Millisecond)

	want := []byte("hello from a")
	if err := sessA.Broadcast(ctx, want); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	// Neighbor events share the channel with messages; skip past them.
	for {
		select {
		case evt := <-sessB.Events():
			if evt.Kind == NeighborUp || evt.Kind == NeighborDown {
				continue
			}
			if evt.Kind != Received {
				t.Fatalf("event kind = %v, want Received", evt.Kind)
			}
			if string(evt.Content) != string(want) {
				t.Fatalf("event content = %q, want %q", evt.Content, want)
			}
			return
		case <-ctx.Done():
			t.Fatal("timed out waiting for gossip message")
		}
	}
}
