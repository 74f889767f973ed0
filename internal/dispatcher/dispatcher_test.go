package dispatcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shurlinet/syncmesh/internal/blobstore"
	"github.com/shurlinet/syncmesh/internal/clipboard"
	"github.com/shurlinet/syncmesh/internal/events"
	"github.com/shurlinet/syncmesh/internal/fswatch"
	"github.com/shurlinet/syncmesh/internal/gossip"
	"github.com/shurlinet/syncmesh/internal/identity"
	"github.com/shurlinet/syncmesh/internal/netaddr"
	"github.com/shurlinet/syncmesh/internal/store"
	"github.com/shurlinet/syncmesh/internal/syncstate"
)

func newTestDispatcher(t *testing.T, syncFolder string) (*Dispatcher, *events.Bus) {
	t.Helper()

	dataDir := t.TempDir()
	blobs, err := blobstore.Open(dataDir)
	if err != nil {
		t.Fatalf("blobstore.Open() error = %v", err)
	}

	cfg, err := store.Open(filepath.Join(dataDir, "store.json"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}

	bus := events.NewBus()
	state := syncstate.New(syncFolder)

	var self identity.NodeID
	self[0] = 7

	d := New(self, state, blobs, nil, clipboard.New(), cfg, bus, func() netaddr.NodeAddress {
		return netaddr.NodeAddress{NodeID: self}
	}, nil)
	return d, bus
}

func TestHandleFSEvent_RemoveIsLoggedNotPropagated(t *testing.T) {
	syncFolder := t.TempDir()
	d, bus := newTestDispatcher(t, syncFolder)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	d.HandleFSEvent(context.Background(), fswatch.Event{Kind: fswatch.Remove, Path: filepath.Join(syncFolder, "gone.txt")})

	select {
	case evt := <-sub:
		t.Fatalf("unexpected event published for Remove: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleFSEvent_CreateWithoutActiveTopicSkipsBroadcast(t *testing.T) {
	syncFolder := t.TempDir()
	d, bus := newTestDispatcher(t, syncFolder)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	file := filepath.Join(syncFolder, "new.txt")
	if err := os.WriteFile(file, []byte("hi"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	d.HandleFSEvent(context.Background(), fswatch.Event{Kind: fswatch.Create, Path: file})

	select {
	case evt := <-sub:
		t.Fatalf("unexpected event published without an active topic: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}

	// The blob is still imported: only the announcement is skipped when
	// no topic has been joined yet.
	hash, err := blobstore.HashReader(bytes.NewReader([]byte("hi")))
	if err != nil {
		t.Fatalf("HashReader() error = %v", err)
	}
	if !d.blobs.Has(hash) {
		t.Fatal("file was not imported into the blob store")
	}
}

func TestHandleFSEvent_CreateOfDirectoryIgnored(t *testing.T) {
	syncFolder := t.TempDir()
	d, bus := newTestDispatcher(t, syncFolder)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	dir := filepath.Join(syncFolder, "subdir")
	if err := os.Mkdir(dir, 0700); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	d.HandleFSEvent(context.Background(), fswatch.Event{Kind: fswatch.Create, Path: dir})

	select {
	case evt := <-sub:
		t.Fatalf("unexpected event published for a directory create: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleGossipMessage_ClipboardPayloadAppliedWhenEnabled(t *testing.T) {
	syncFolder := t.TempDir()
	d, bus := newTestDispatcher(t, syncFolder)
	if err := d.cfg.Set(store.KeyClipboardSharingEnabled, true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	var sender identity.NodeID
	sender[0] = 99
	payload := ClipboardPayload{From: sender, Content: "from the network"}

	d.HandleGossipMessage(context.Background(), gossip.Event{Kind: gossip.Received, Content: payload.toBytes()})

	select {
	case evt := <-sub:
		if evt.Kind != events.KindClipboardUpdated {
			t.Fatalf("event kind = %v, want KindClipboardUpdated", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for clipboard update event")
	}
}

func TestHandleGossipMessage_ClipboardPayloadIgnoredWhenDisabled(t *testing.T) {
	syncFolder := t.TempDir()
	d, bus := newTestDispatcher(t, syncFolder)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	var sender identity.NodeID
	sender[0] = 99
	payload := ClipboardPayload{From: sender, Content: "should be ignored"}

	d.HandleGossipMessage(context.Background(), gossip.Event{Kind: gossip.Received, Content: payload.toBytes()})

	select {
	case evt := <-sub:
		t.Fatalf("unexpected event published while sharing disabled: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleGossipMessage_FilePayloadFromSelfIgnored(t *testing.T) {
	syncFolder := t.TempDir()
	d, bus := newTestDispatcher(t, syncFolder)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	payload := FilePayload{From: d.self, Ticket: "irrelevant", FileName: "b.txt", RelativePath: "a/b.txt"}

	d.HandleGossipMessage(context.Background(), gossip.Event{Kind: gossip.Received, Content: payload.toBytes()})

	select {
	case evt := <-sub:
		t.Fatalf("unexpected event published for self-originated file announcement: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHandleGossipMessage_NeighborEventsForwardedToBus(t *testing.T) {
	syncFolder := t.TempDir()
	d, bus := newTestDispatcher(t, syncFolder)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	d.HandleGossipMessage(context.Background(), gossip.Event{Kind: gossip.NeighborUp})

	select {
	case evt := <-sub:
		if evt.Kind != events.KindNeighborUp {
			t.Fatalf("event kind = %v, want KindNeighborUp", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for neighbor-up event")
	}

	d.HandleGossipMessage(context.Background(), gossip.Event{Kind: gossip.NeighborDown})

	select {
	case evt := <-sub:
		if evt.Kind != events.KindNeighborDown {
			t.Fatalf("event kind = %v, want KindNeighborDown", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for neighbor-down event")
	}
}

func TestHandleGossipMessage_UnrecognizedPayloadDropped(t *testing.T) {
	syncFolder := t.TempDir()
	d, bus := newTestDispatcher(t, syncFolder)

	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	d.HandleGossipMessage(context.Background(), gossip.Event{Kind: gossip.Received, Content: []byte("not json at all")})

	select {
	case evt := <-sub:
		t.Fatalf("unexpected event published for garbage payload: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}
