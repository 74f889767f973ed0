// Package dispatcher wires local filesystem changes and incoming
// gossip messages into the rest of the engine: a new local file
// becomes a blob ticket broadcast on the active topic; an incoming
// ticket becomes a download into the sync folder; incoming clipboard
// content becomes a local clipboard write.
package dispatcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

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

// Dispatcher holds every collaborator HandleFSEvent and
// HandleGossipMessage need: the blob store/transport to create and
// fetch tickets, the active gossip session to broadcast on, the
// clipboard monitor to apply network content to, and the config store
// to check whether clipboard sharing is enabled.
type Dispatcher struct {
	self      identity.NodeID
	state     *syncstate.State
	blobs     *blobstore.Store
	transport *blobstore.Transport
	clip      *clipboard.Monitor
	cfg       *store.Store
	bus       *events.Bus
	nodeAddr  func() netaddr.NodeAddress
	log       *slog.Logger
}

// New builds a Dispatcher. nodeAddr is called fresh on every ticket
// creation so the embedded address always reflects the endpoint's
// current listen addresses.
func New(
	self identity.NodeID,
	state *syncstate.State,
	blobs *blobstore.Store,
	transport *blobstore.Transport,
	clip *clipboard.Monitor,
	cfg *store.Store,
	bus *events.Bus,
	nodeAddr func() netaddr.NodeAddress,
	log *slog.Logger,
) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		self: self, state: state, blobs: blobs, transport: transport,
		clip: clip, cfg: cfg, bus: bus, nodeAddr: nodeAddr, log: log,
	}
}

// HandleFSEvent reacts to one filesystem change. Only Create triggers
// a new blob ticket and broadcast; Modify is intentionally not
// re-announced (an edited file is picked up only the next time it is
// created fresh, e.g. after being removed and recreated), and Remove
// is logged only (removal propagation is out of scope).
func (d *Dispatcher) HandleFSEvent(ctx context.Context, evt fswatch.Event) {
	switch evt.Kind {
	case fswatch.Create:
		d.announceFile(ctx, evt.Path)
	case fswatch.Remove:
		d.log.Info("fs remove observed, not propagated", "path", evt.Path)
	case fswatch.Error:
		d.log.Error("fs watcher error", "error", evt.Err)
	}
}

func (d *Dispatcher) announceFile(ctx context.Context, path string) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		// New directories are picked up by the watcher; only files
		// become blobs.
		return
	}

	hash, err := d.blobs.ImportFile(path)
	if err != nil {
		d.log.Error("failed to import file into blob store", "path", path, "error", err)
		return
	}
	ticket := blobstore.Ticket{Hash: hash, Format: blobstore.FormatRaw, Node: d.nodeAddr()}

	topic, session, ok := d.state.Active()
	if !ok {
		d.log.Warn("gossip topic not set, ticket created but not announced", "path", path)
		return
	}

	relPath, err := filepath.Rel(d.state.SyncFolder(), path)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		d.log.Error("file path outside sync folder, not announced", "path", path, "error", err)
		return
	}
	payload := FilePayload{
		From:         d.self,
		Topic:        topic,
		Ticket:       ticket.String(),
		FileName:     filepath.Base(path),
		RelativePath: relPath,
	}

	if err := session.Broadcast(ctx, payload.toBytes()); err != nil {
		d.log.Error("failed to gossip file ticket", "path", path, "error", err)
		return
	}
	d.bus.Publish(events.Event{Kind: events.KindFileCreated, Data: payload})
}

// HandleGossipMessage reacts to one incoming gossip session event.
// NeighborUp/NeighborDown are forwarded to the event bus as-is; a
// Received message is tried as a clipboard payload first, then a file
// payload, and dropped (logged) if it parses as neither.
func (d *Dispatcher) HandleGossipMessage(ctx context.Context, evt gossip.Event) {
	switch evt.Kind {
	case gossip.NeighborUp:
		d.bus.Publish(events.Event{Kind: events.KindNeighborUp, Data: evt.From.String()})
		return
	case gossip.NeighborDown:
		d.bus.Publish(events.Event{Kind: events.KindNeighborDown, Data: evt.From.String()})
		return
	}

	if cp, err := parseClipboardPayload(evt.Content); err == nil && cp.Content != "" {
		d.handleClipboardPayload(cp)
		return
	}
	if fp, err := parseFilePayload(evt.Content); err == nil && fp.Ticket != "" {
		d.handleFilePayload(ctx, fp)
		return
	}
	d.log.Debug("dropping unrecognized gossip message", "from", evt.From)
}

func (d *Dispatcher) handleClipboardPayload(cp ClipboardPayload) {
	if cp.From == d.self {
		d.log.Debug("ignoring self-sent clipboard payload")
		return
	}
	if !d.cfg.GetBool(store.KeyClipboardSharingEnabled, false) {
		d.log.Debug("clipboard sharing disabled, ignoring network payload")
		return
	}
	if err := d.clip.SetLocalContent(cp.Content); err != nil {
		d.log.Error("failed to update local clipboard from network", "error", err)
		return
	}
	d.bus.Publish(events.Event{Kind: events.KindClipboardUpdated, Data: cp})
}

func (d *Dispatcher) handleFilePayload(ctx context.Context, fp FilePayload) {
	if fp.From == d.self {
		d.log.Debug("ignoring self-sent file announcement")
		return
	}

	d.bus.Publish(events.Event{Kind: events.KindFileCreated, Data: fp})

	ticket, err := blobstore.ParseTicket(fp.Ticket)
	if err != nil {
		d.log.Error("failed to parse ticket in gossip message", "error", err)
		return
	}

	dest := filepath.Join(d.state.SyncFolder(), filepath.FromSlash(fp.RelativePath))
	if !strings.HasPrefix(dest, filepath.Clean(d.state.SyncFolder())+string(filepath.Separator)) {
		d.log.Error("refusing to write outside sync folder", "relative_path", fp.RelativePath)
		return
	}

	// Downloading runs in its own goroutine so a slow or stalled peer
	// transfer never blocks the gossip receive loop from processing the
	// next incoming message.
	go func() {
		if err := d.transport.Download(ctx, ticket, dest); err != nil {
			dlErr := &DownloadError{RelativePath: fp.RelativePath, Err: err}
			d.log.Error("failed to download gossiped file", "path", dest, "error", dlErr)
			return
		}
		d.bus.Publish(events.Event{Kind: events.KindFileSynced, Data: fp})
	}()
}
