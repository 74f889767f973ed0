// Package events is the in-process event bus: every externally
// interesting thing the agent does (a file synced in, a peer joined,
// the clipboard changed) is published here, and both the daemon's
// NDJSON stream and any in-process subscriber (tests, a foreground
// session) read from it.
package events

import "sync"

// Kind names the category of an Event, used by HTTP/NDJSON consumers
// to decide how to decode Data.
type Kind string

const (
	// KindReady fires once the agent has finished bringing up identity,
	// networking, the blob store, and the watcher.
	KindReady Kind = "ready"
	// KindGossipReady fires after a topic has been joined and the
	// receive loop is running.
	KindGossipReady Kind = "gossip_ready"
	// KindFSEvent fires for every raw filesystem event the watcher
	// observes, before the dispatcher decides what to do with it.
	KindFSEvent Kind = "fs_event"
	// KindFileSynced fires after a blob named by a gossip message has
	// been downloaded and written into the sync folder.
	KindFileSynced Kind = "file_synced"
	// KindFileCreated fires when the local watcher sees a new file and
	// a ticket for it has been gossiped, and when a remote file
	// announcement is received, before its blob is downloaded.
	KindFileCreated Kind = "file_created"
	// KindClipboardUpdated fires when clipboard content received from a
	// peer has been applied locally.
	KindClipboardUpdated Kind = "clipboard_updated"
	// KindNeighborUp fires when a peer joins the active topic's mesh.
	KindNeighborUp Kind = "neighbor_up"
	// KindNeighborDown fires when a peer leaves the active topic's mesh.
	KindNeighborDown Kind = "neighbor_down"
)

// Event is one item published on the bus.
type Event struct {
	Kind Kind
	Data any
}

// FSEventData is the payload of a KindFSEvent event.
type FSEventData struct {
	EventType string `json:"event_type"`
	Path      string `json:"path"`
}

// Bus fans out published events to any number of subscribers. A slow
// or absent subscriber never blocks Publish: each subscriber has its
// own bounded channel, and a full channel drops the event rather than
// stalling the publisher.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a channel of future events. Call Unsubscribe when
// done to release it.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 32)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers evt to every current subscriber, dropping it for
// any subscriber whose channel is full.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
