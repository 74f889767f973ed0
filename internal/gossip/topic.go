package gossip

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TopicSize is the length of a topic identifier.
const TopicSize = 32

// Topic is an opaque 32-byte identifier naming a gossip overlay. Peers
// that know the same Topic (carried in a Ticket) can exchange messages
// on it regardless of how they discovered one another.
type Topic [TopicSize]byte

// String renders the topic as lowercase hex.
func (t Topic) String() string {
	return hex.EncodeToString(t[:])
}

// pubsubTopicName is the string go-libp2p-pubsub joins on. Namespaced
// so this engine's topics never collide with another protocol sharing
// the same GossipSub router.
func (t Topic) pubsubTopicName() string {
	return "meshsync/topic/" + t.String()
}

// NewTopic generates a random topic identifier, used when a node
// starts a brand new sync group.
func NewTopic() (Topic, error) {
	var t Topic
	if _, err := rand.Read(t[:]); err != nil {
		return t, fmt.Errorf("gossip: generate topic: %w", err)
	}
	return t, nil
}

// TopicFromBytes validates and wraps a 32-byte topic identifier.
func TopicFromBytes(b []byte) (Topic, error) {
	var t Topic
	if len(b) != TopicSize {
		return t, fmt.Errorf("gossip: topic must be %d bytes, got %d", TopicSize, len(b))
	}
	copy(t[:], b)
	return t, nil
}
