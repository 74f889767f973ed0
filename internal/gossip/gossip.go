// Package gossip is the topic-based gossip overlay: nodes that share a
// Ticket's Topic exchange messages with every other node subscribed to
// it, using go-libp2p-pubsub's GossipSub router over the shared libp2p
// host.
package gossip

import (
	"context"
	"fmt"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
)

// EventKind distinguishes the three things a Receiver multiplexes.
type EventKind int

const (
	// Received carries a message published by some peer on the topic.
	Received EventKind = iota
	// NeighborUp reports a peer joining the topic's local mesh.
	NeighborUp
	// NeighborDown reports a peer leaving the topic's local mesh.
	NeighborDown
)

// Event is one item out of a Session's Receiver channel.
type Event struct {
	Kind    EventKind
	From    peer.ID
	Content []byte
}

// Session is an active subscription to a topic: a Sender to broadcast
// messages and a Receiver channel of incoming messages and neighbor
// changes.
type Session struct {
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	evts  chan Event

	cancel context.CancelFunc
}

// Broadcast publishes data to every peer subscribed to the topic.
func (s *Session) Broadcast(ctx context.Context, data []byte) error {
	return s.topic.Publish(ctx, data)
}

// Events returns the channel of incoming messages and neighbor changes.
// It closes once the session's context is canceled and both
// background loops have exited.
func (s *Session) Events() <-chan Event {
	return s.evts
}

// Close leaves the topic and stops the receive loops.
func (s *Session) Close() error {
	s.cancel()
	s.sub.Cancel()
	return s.topic.Close()
}

// Overlay wraps a GossipSub router bound to one libp2p host.
type Overlay struct {
	host host.Host
	ps   *pubsub.PubSub
}

// New creates a GossipSub router over h.
func New(ctx context.Context, h host.Host) (*Overlay, error) {
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("gossip: create gossipsub: %w", err)
	}
	return &Overlay{host: h, ps: ps}, nil
}

// Subscribe joins the topic named in ticket, first adding every
// bootstrap node in the ticket (other than ourself) to the peerstore
// so the router has somewhere to dial, then spawns the two background
// loops that feed Session.Events: one draining subscription messages,
// one draining topic peer events.
func (o *Overlay) Subscribe(ctx context.Context, ticket Ticket) (*Session, error) {
	for _, n := range ticket.Nodes {
		info, err := n.AddrInfo()
		if err != nil {
			continue // skip nodes whose address we can't parse; not fatal
		}
		if info.ID == o.host.ID() {
			continue
		}
		o.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.TempAddrTTL)
		// GossipSub only gossips with peers already connected at the
		// libp2p layer; dial each bootstrap node so the mesh has
		// something to build on. Best-effort: a node still reachable
		// only via later mDNS/DHT discovery is not fatal here.
		if err := o.host.Connect(ctx, info); err != nil {
			continue
		}
	}

	topic, err := o.ps.Join(ticket.Topic.pubsubTopicName())
	if err != nil {
		return nil, &JoinError{Op: "join topic", Err: err}
	}

	sub, err := topic.Subscribe()
	if err != nil {
		topic.Close()
		return nil, &JoinError{Op: "subscribe", Err: err}
	}

	evtHandler, err := topic.EventHandler()
	if err != nil {
		sub.Cancel()
		topic.Close()
		return nil, &JoinError{Op: "event handler", Err: err}
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		topic:  topic,
		sub:    sub,
		evts:   make(chan Event, 32),
		cancel: cancel,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		receiveMessages(sessionCtx, sub, s.evts)
	}()
	go func() {
		defer wg.Done()
		receivePeerEvents(sessionCtx, evtHandler, s.evts)
	}()
	go func() {
		wg.Wait()
		close(s.evts)
	}()

	return s, nil
}

func receiveMessages(ctx context.Context, sub *pubsub.Subscription, out chan<- Event) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return // context canceled or subscription closed
		}
		select {
		case out <- Event{Kind: Received, From: msg.GetFrom(), Content: msg.Data}:
		case <-ctx.Done():
			return
		}
	}
}

func receivePeerEvents(ctx context.Context, h *pubsub.TopicEventHandler, out chan<- Event) {
	for {
		evt, err := h.NextPeerEvent(ctx)
		if err != nil {
			return
		}
		kind := NeighborDown
		if evt.Type == pubsub.PeerJoin {
			kind = NeighborUp
		}
		select {
		case out <- Event{Kind: kind, From: evt.Peer}:
		case <-ctx.Done():
			return
		}
	}
}
