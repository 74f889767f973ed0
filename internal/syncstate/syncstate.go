// Package syncstate holds the one piece of mutable state shared
// between the dispatcher, the clipboard monitor, and the agent's
// command surface: which gossip topic (if any) this node has joined,
// and the session used to broadcast on it.
package syncstate

import (
	"sync"

	"github.com/shurlinet/syncmesh/internal/gossip"
)

// State guards the active topic and gossip session behind one mutex.
// Lock discipline: never hold the lock across a network, disk, or
// channel operation — copy the session out, release the lock, then
// act on the copy.
type State struct {
	mu      sync.Mutex
	topic   *gossip.Topic
	session *gossip.Session

	syncFolder string
}

// New creates an empty State for a node syncing the given folder.
func New(syncFolder string) *State {
	return &State{syncFolder: syncFolder}
}

// SyncFolder returns the root directory this node mirrors.
func (s *State) SyncFolder() string {
	return s.syncFolder
}

// SetActive records the topic and session this node has joined.
func (s *State) SetActive(topic gossip.Topic, session *gossip.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = &topic
	s.session = session
}

// Active returns the current topic and session, and whether one has
// been joined yet.
func (s *State) Active() (gossip.Topic, *gossip.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return gossip.Topic{}, nil, false
	}
	return *s.topic, s.session, true
}

// Clear drops the active topic and session, e.g. on shutdown.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = nil
	s.session = nil
}
