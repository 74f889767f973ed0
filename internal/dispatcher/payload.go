package dispatcher

import (
	"encoding/json"

	"github.com/shurlinet/syncmesh/internal/gossip"
	"github.com/shurlinet/syncmesh/internal/identity"
)

// FilePayload announces that a file changed locally and carries a blob
// ticket for fetching its contents. It is plain JSON on the wire,
// distinct from the base32-encoded ticket string it carries.
type FilePayload struct {
	From         identity.NodeID `json:"from"`
	Topic        gossip.Topic    `json:"topic"`
	Ticket       string          `json:"ticket"`
	FileName     string          `json:"file_name"`
	RelativePath string          `json:"relative_path"`
}

func (p FilePayload) toBytes() []byte {
	raw, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return raw
}

func parseFilePayload(data []byte) (FilePayload, error) {
	var p FilePayload
	err := json.Unmarshal(data, &p)
	return p, err
}

// ClipboardPayload carries clipboard text from one node to the rest of
// the topic.
type ClipboardPayload struct {
	From    identity.NodeID `json:"from"`
	Content string          `json:"content"`
}

func (p ClipboardPayload) toBytes() []byte {
	raw, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return raw
}

func parseClipboardPayload(data []byte) (ClipboardPayload, error) {
	var p ClipboardPayload
	err := json.Unmarshal(data, &p)
	return p, err
}
