// Package agent is the top-level orchestrator: it brings up identity,
// the network endpoint, the blob store, the gossip overlay, the
// filesystem watcher, and the clipboard monitor, wires them together
// through a dispatcher, and exposes the small command surface the
// daemon and CLI call into.
package agent

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"

	"github.com/shurlinet/syncmesh/internal/blobstore"
	"github.com/shurlinet/syncmesh/internal/clipboard"
	"github.com/shurlinet/syncmesh/internal/dispatcher"
	"github.com/shurlinet/syncmesh/internal/endpoint"
	"github.com/shurlinet/syncmesh/internal/events"
	"github.com/shurlinet/syncmesh/internal/fswatch"
	"github.com/shurlinet/syncmesh/internal/gossip"
	"github.com/shurlinet/syncmesh/internal/identity"
	"github.com/shurlinet/syncmesh/internal/netaddr"
	"github.com/shurlinet/syncmesh/internal/store"
	"github.com/shurlinet/syncmesh/internal/syncstate"
)

// Config controls how Setup brings up an Agent.
type Config struct {
	DataDir     string
	SyncFolder  string
	ListenAddrs []string
	RelayAddrs  []string
	EnableMDNS  bool
	EnableDHT   bool
}

// NodeInfo is the public-facing summary of this node's identity and
// current reachability.
type NodeInfo struct {
	NodeID string   `json:"node_id"`
	Addrs  []string `json:"addrs"`
}

// Agent owns every long-lived component of a running node.
type Agent struct {
	cfg Config
	log *slog.Logger

	identity  *identity.Identity
	endpoint  *endpoint.Endpoint
	blobs     *blobstore.Store
	transport *blobstore.Transport
	overlay   *gossip.Overlay
	clip      *clipboard.Monitor
	cfgStore  *store.Store
	bus       *events.Bus
	state     *syncstate.State
	dispatch  *dispatcher.Dispatcher
	watcher   *fswatch.Watcher

	relayAddr string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Setup brings up every component in dependency order: identity,
// endpoint, blob store, gossip router, config store, clipboard
// monitor, dispatcher, then the filesystem watcher last (it is the
// first thing to produce events, so everything it might dispatch into
// must already exist).
func Setup(ctx context.Context, cfg Config, log *slog.Logger) (*Agent, error) {
	if log == nil {
		log = slog.Default()
	}

	id, err := identity.LoadOrCreate(cfg.DataDir + "/secret_key")
	if err != nil {
		return nil, &InitializationError{Op: "load identity", Err: err}
	}

	agentCtx, cancel := context.WithCancel(ctx)

	ep, err := endpoint.New(agentCtx, id, &endpoint.Config{
		ListenAddrs: cfg.ListenAddrs,
		RelayAddrs:  cfg.RelayAddrs,
		EnableMDNS:  cfg.EnableMDNS,
		EnableDHT:   cfg.EnableDHT,
	})
	if err != nil {
		cancel()
		return nil, &InitializationError{Op: "bring up endpoint", Err: err}
	}

	blobs, err := blobstore.Open(cfg.DataDir)
	if err != nil {
		cancel()
		ep.Close()
		return nil, &InitializationError{Op: "open blob store", Err: err}
	}
	transport := blobstore.NewTransport(ep.Host(), blobs)

	overlay, err := gossip.New(agentCtx, ep.Host())
	if err != nil {
		cancel()
		ep.Close()
		return nil, &InitializationError{Op: "bring up gossip overlay", Err: err}
	}

	cfgStore, err := store.Open(cfg.DataDir + "/store.json")
	if err != nil {
		cancel()
		ep.Close()
		return nil, &InitializationError{Op: "open config store", Err: err}
	}

	a := &Agent{
		cfg:       cfg,
		log:       log,
		identity:  id,
		endpoint:  ep,
		blobs:     blobs,
		transport: transport,
		overlay:   overlay,
		clip:      clipboard.New(),
		cfgStore:  cfgStore,
		bus:       events.NewBus(),
		state:     syncstate.New(cfg.SyncFolder),
		ctx:       agentCtx,
		cancel:    cancel,
	}
	if len(cfg.RelayAddrs) > 0 {
		a.relayAddr = cfg.RelayAddrs[0]
	}

	a.dispatch = dispatcher.New(id.NodeID, a.state, blobs, transport, a.clip, cfgStore, a.bus, a.nodeAddr, log)

	watcher, err := fswatch.Start(cfg.SyncFolder)
	if err != nil {
		cancel()
		ep.Close()
		return nil, &InitializationError{Op: "start filesystem watcher", Err: err}
	}
	a.watcher = watcher

	a.wg.Add(1)
	go a.runFSWatchLoop()

	a.wg.Add(1)
	go a.runClipboardLoop()

	a.bus.Publish(events.Event{Kind: events.KindReady, Data: a.identity.NodeID.String()})
	return a, nil
}

func (a *Agent) nodeAddr() netaddr.NodeAddress {
	return netaddr.FromHostAddrs(a.identity.NodeID, a.endpoint.Addrs(), a.relayAddr)
}

func (a *Agent) runFSWatchLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case evt, ok := <-a.watcher.Events():
			if !ok {
				return
			}
			a.bus.Publish(events.Event{Kind: events.KindFSEvent, Data: events.FSEventData{
				EventType: fsEventType(evt.Kind),
				Path:      evt.Path,
			}})
			a.dispatch.HandleFSEvent(a.ctx, evt)
		}
	}
}

func fsEventType(k fswatch.Kind) string {
	switch k {
	case fswatch.Create:
		return "create"
	case fswatch.Remove:
		return "remove"
	case fswatch.Modify:
		return "modify"
	case fswatch.Error:
		return "error"
	}
	return "other"
}

func (a *Agent) runClipboardLoop() {
	defer a.wg.Done()
	a.clip.Run(a.ctx, func() bool {
		return a.cfgStore.GetBool(store.KeyClipboardSharingEnabled, false)
	}, a.broadcastClipboard)
}

func (a *Agent) broadcastClipboard(content string) error {
	_, session, ok := a.state.Active()
	if !ok {
		return fmt.Errorf("agent: no active gossip topic")
	}
	payload := dispatcher.ClipboardPayload{From: a.identity.NodeID, Content: content}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return session.Broadcast(a.ctx, raw)
}

// GetNodeInfo returns this node's identity and current listen addresses.
func (a *Agent) GetNodeInfo() NodeInfo {
	addrs := a.endpoint.Addrs()
	strs := make([]string, len(addrs))
	for i, ad := range addrs {
		strs[i] = ad.String()
	}
	return NodeInfo{NodeID: a.identity.NodeID.String(), Addrs: strs}
}

// CreateTicket imports path into the blob store and returns a ticket
// string other nodes can use to fetch it.
func (a *Agent) CreateTicket(path string) (string, error) {
	hash, err := a.blobs.ImportFile(path)
	if err != nil {
		return "", err
	}
	ticket := blobstore.Ticket{Hash: hash, Format: blobstore.FormatRaw, Node: a.nodeAddr()}
	return ticket.String(), nil
}

// GetBlob fetches the blob named by ticketStr, from its owning peer if
// necessary, and writes it to dest. If dialling the ticket's recorded
// addresses fails and DHT discovery is running, the owner's current
// addresses are looked up once and the download retried.
func (a *Agent) GetBlob(ctx context.Context, ticketStr, dest string) error {
	ticket, err := blobstore.ParseTicket(ticketStr)
	if err != nil {
		return err
	}

	err = a.transport.Download(ctx, ticket, dest)
	var transportErr *blobstore.TransportError
	if err == nil || !errors.As(err, &transportErr) {
		return err
	}

	pid, pidErr := ticket.Node.PeerID()
	if pidErr != nil {
		return err
	}
	info, dhtErr := a.endpoint.ResolveViaDHT(ctx, pid)
	if dhtErr != nil || len(info.Addrs) == 0 {
		info, dhtErr = a.resolveOwnerViaRendezvous(ctx, pid)
	}
	if dhtErr != nil {
		return err
	}
	a.log.Info("ticket addresses unreachable, retrying via dht", "peer", pid, "addrs", len(info.Addrs))
	a.endpoint.Host().Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.TempAddrTTL)
	return a.transport.Download(ctx, ticket, dest)
}

// resolveOwnerViaRendezvous looks for the blob's owner among the
// providers of the active topic's rendezvous key, the record every
// joined node publishes. Only usable once a topic has been joined.
func (a *Agent) resolveOwnerViaRendezvous(ctx context.Context, owner peer.ID) (peer.AddrInfo, error) {
	topic, _, ok := a.state.Active()
	if !ok {
		return peer.AddrInfo{}, fmt.Errorf("agent: no active topic to resolve against")
	}
	providers, err := a.endpoint.ResolveRendezvous(ctx, topic[:], 20)
	if err != nil {
		return peer.AddrInfo{}, err
	}
	for _, p := range providers {
		if p.ID == owner {
			return p, nil
		}
	}
	return peer.AddrInfo{}, fmt.Errorf("agent: blob owner not found at topic rendezvous")
}

// CreateGossipTicket reuses the last topic this node created or joined,
// if one was persisted, so that repeated calls across restarts keep
// returning a ticket for the same topic; otherwise it mints a brand new
// random topic. Either way it joins the topic immediately (so the
// creator is ready to receive before anyone else arrives) and returns a
// ticket string naming this node as the sole bootstrap peer.
func (a *Agent) CreateGossipTicket() (string, error) {
	topic, err := a.currentOrNewTopic()
	if err != nil {
		return "", err
	}

	ticket := gossip.Ticket{Topic: topic, Nodes: []netaddr.NodeAddress{a.nodeAddr()}}
	if err := a.joinTicket(ticket); err != nil {
		return "", err
	}
	return ticket.String(), nil
}

func (a *Agent) currentOrNewTopic() (gossip.Topic, error) {
	if hexTopic := a.cfgStore.GetString(store.KeyTopicID); hexTopic != "" {
		raw, err := hex.DecodeString(hexTopic)
		if err == nil {
			if topic, err := gossip.TopicFromBytes(raw); err == nil {
				return topic, nil
			}
		}
	}
	return gossip.NewTopic()
}

// JoinGossip parses a gossip ticket and joins its topic, dialling the
// bootstrap nodes it carries.
func (a *Agent) JoinGossip(ticketStr string) error {
	ticket, err := gossip.ParseTicket(ticketStr)
	if err != nil {
		return err
	}
	return a.joinTicket(ticket)
}

func (a *Agent) joinTicket(ticket gossip.Ticket) error {
	session, err := a.overlay.Subscribe(a.ctx, ticket)
	if err != nil {
		return err
	}
	a.state.SetActive(ticket.Topic, session)

	if err := a.cfgStore.Set(store.KeyTopicID, ticket.Topic.String()); err != nil {
		a.log.Error("failed to persist topic id", "error", err)
	}

	if a.cfg.EnableDHT {
		// Announce this node under the topic's rendezvous key so peers
		// holding a ticket with stale addresses can still find us.
		// Best-effort: the DHT may still be bootstrapping.
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			ctx, cancel := context.WithTimeout(a.ctx, time.Minute)
			defer cancel()
			if err := a.endpoint.PublishRendezvous(ctx, ticket.Topic[:]); err != nil {
				a.log.Warn("failed to publish topic rendezvous record", "error", err)
			}
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-a.ctx.Done():
				return
			case evt, ok := <-session.Events():
				if !ok {
					return
				}
				a.dispatch.HandleGossipMessage(a.ctx, evt)
			}
		}
	}()
	a.bus.Publish(events.Event{Kind: events.KindGossipReady, Data: ticket.Topic.String()})
	return nil
}

// EnableClipboardSharing turns on clipboard broadcast/apply.
func (a *Agent) EnableClipboardSharing() error {
	return a.cfgStore.Set(store.KeyClipboardSharingEnabled, true)
}

// DisableClipboardSharing turns off clipboard broadcast/apply.
func (a *Agent) DisableClipboardSharing() error {
	return a.cfgStore.Set(store.KeyClipboardSharingEnabled, false)
}

// IsClipboardSharingEnabled reports the current clipboard sharing state.
func (a *Agent) IsClipboardSharingEnabled() bool {
	return a.cfgStore.GetBool(store.KeyClipboardSharingEnabled, false)
}

// Events returns the agent's event bus, for streaming to the daemon's
// NDJSON endpoint or a foreground CLI session.
func (a *Agent) Events() *events.Bus {
	return a.bus
}

// Shutdown cancels the agent's context, closes the endpoint and
// watcher, and waits up to 2 seconds for background goroutines to
// exit before returning regardless.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.cancel()
	a.watcher.Close()
	closeErr := a.endpoint.Close()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		a.log.Warn("shutdown: background goroutines did not exit within 2s")
	case <-ctx.Done():
	}
	return closeErr
}
