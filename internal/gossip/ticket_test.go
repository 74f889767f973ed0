package gossip

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/shurlinet/syncmesh/internal/identity"
	"github.com/shurlinet/syncmesh/internal/netaddr"
)

func TestTicket_StringParseRoundTrip(t *testing.T) {
	topic, err := NewTopic()
	if err != nil {
		t.Fatalf("NewTopic() error = %v", err)
	}
	var nodeID identity.NodeID
	for i := range nodeID {
		nodeID[i] = byte(i)
	}

	want := Ticket{
		Topic: topic,
		Nodes: []netaddr.NodeAddress{{NodeID: nodeID, DirectAddrs: []string{"/ip4/10.0.0.5/udp/4001/quic-v1"}}},
	}

	got, err := ParseTicket(want.String())
	if err != nil {
		t.Fatalf("ParseTicket() error = %v", err)
	}
	if got.Topic != want.Topic {
		t.Fatalf("Topic = %s, want %s", got.Topic, want.Topic)
	}
	if len(got.Nodes) != 1 || got.Nodes[0].NodeID != nodeID {
		t.Fatalf("Nodes = %+v, want %+v", got.Nodes, want.Nodes)
	}
}

func TestTicket_RoundTripProperty(t *testing.T) {
	addrPool := []string{
		"/ip4/127.0.0.1/udp/4001/quic-v1",
		"/ip4/192.168.1.20/udp/51820/quic-v1",
		"/ip6/::1/udp/4001/quic-v1",
	}

	rapid.Check(t, func(rt *rapid.T) {
		var topic Topic
		copy(topic[:], rapid.SliceOfN(rapid.Byte(), TopicSize, TopicSize).Draw(rt, "topic"))
		var nodeID identity.NodeID
		copy(nodeID[:], rapid.SliceOfN(rapid.Byte(), len(nodeID), len(nodeID)).Draw(rt, "node_id"))
		addrs := rapid.SliceOfN(rapid.SampledFrom(addrPool), 0, len(addrPool)).Draw(rt, "addrs")

		want := Ticket{Topic: topic, Nodes: []netaddr.NodeAddress{{NodeID: nodeID, DirectAddrs: addrs}}}
		got, err := ParseTicket(want.String())
		if err != nil {
			rt.Fatalf("ParseTicket() error = %v", err)
		}
		if got.Topic != want.Topic {
			rt.Fatalf("Topic = %s, want %s", got.Topic, want.Topic)
		}
		if len(got.Nodes) != 1 || got.Nodes[0].NodeID != nodeID {
			rt.Fatalf("Nodes = %+v, want %+v", got.Nodes, want.Nodes)
		}
		if len(got.Nodes[0].DirectAddrs) != len(addrs) {
			rt.Fatalf("DirectAddrs = %v, want %v", got.Nodes[0].DirectAddrs, addrs)
		}
		for i, a := range addrs {
			if got.Nodes[0].DirectAddrs[i] != a {
				rt.Fatalf("DirectAddrs[%d] = %q, want %q", i, got.Nodes[0].DirectAddrs[i], a)
			}
		}
	})
}

func TestParseTicket_Garbage(t *testing.T) {
	if _, err := ParseTicket("!!!not base32"); err == nil {
		t.Fatal("ParseTicket() with garbage input: want error, got nil")
	}
}

func TestNewTopic_Unique(t *testing.T) {
	a, err := NewTopic()
	if err != nil {
		t.Fatalf("NewTopic() error = %v", err)
	}
	b, err := NewTopic()
	if err != nil {
		t.Fatalf("NewTopic() error = %v", err)
	}
	if a == b {
		t.Fatal("NewTopic() produced the same topic twice")
	}
}
