package blobstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shurlinet/syncmesh/internal/endpoint"
	"github.com/shurlinet/syncmesh/internal/identity"
	"github.com/shurlinet/syncmesh/internal/netaddr"
)

func newTestNode(t *testing.T) (*endpoint.Endpoint, *Transport, *Store) {
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

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	return ep, NewTransport(ep.Host(), store), store
}

func TestTransport_DownloadFromPeer(t *testing.T) {
	srcEP, srcTransport, srcStore := newTestNode(t)
	dstEP, dstTransport, _ := newTestNode(t)

	contents := []byte("sync this file across the mesh")
	hash, err := srcStore.Import(contents)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	dstEP.Host().Peerstore().AddAddrs(srcEP.PeerID(), srcEP.Addrs(), time.Minute)

	ticket := Ticket{
		Hash:   hash,
		Format: FormatRaw,
		Node:   netaddr.FromHostAddrs(srcIdentityNodeID(t, srcEP), srcEP.Addrs(), ""),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dest := filepath.Join(t.TempDir(), "fetched.bin")
	if err := dstTransport.Download(ctx, ticket, dest); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("os.ReadFile() error = %v", err)
	}
	if !bytes.Equal(got, contents) {
		t.Fatalf("downloaded contents = %q, want %q", got, contents)
	}

	_ = srcTransport // handler registration is exercised implicitly by Download
}

// srcIdentityNodeID derives the identity.NodeID from a running
// endpoint's libp2p peer ID material for ticket construction in tests;
// production code carries the NodeID alongside the endpoint instead of
// re-deriving it.
func srcIdentityNodeID(t *testing.T, ep *endpoint.Endpoint) identity.NodeID {
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
