// Package clipboard polls the system clipboard for local text changes
// and applies content received from the network, without re-broadcasting
// content this node just wrote itself.
package clipboard

import (
	"context"
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// PollInterval is how often the local clipboard is checked for changes.
const PollInterval = 2 * time.Second

// Monitor tracks the last clipboard content this node has seen or
// written, so it can tell a genuinely new local change from an echo of
// content it just applied from the network.
type Monitor struct {
	mu          sync.Mutex
	lastContent string

	// readAll and writeAll default to the system clipboard; tests
	// substitute in-memory stand-ins.
	readAll  func() (string, error)
	writeAll func(string) error
}

// New creates a clipboard monitor backed by the system clipboard, with
// no remembered content.
func New() *Monitor {
	return &Monitor{
		readAll:  clipboard.ReadAll,
		writeAll: clipboard.WriteAll,
	}
}

// SetLocalContent writes content to the system clipboard and records it
// as the last-seen content, so the next poll does not treat this
// network-applied write as a new local change to broadcast.
func (m *Monitor) SetLocalContent(content string) error {
	if err := m.writeAll(content); err != nil {
		return err
	}
	m.mu.Lock()
	m.lastContent = content
	m.mu.Unlock()
	return nil
}

// Run polls the clipboard every PollInterval until ctx is canceled.
// enabled is consulted on every tick; when it returns false, the poll
// is skipped entirely (matching sharing being turned off). onChange is
// called, outside of any lock, whenever the clipboard holds new,
// non-empty text that differs from the last-seen content; the content
// is only recorded as seen after onChange returns without error, so a
// failed broadcast is retried on the next tick.
func (m *Monitor) Run(ctx context.Context, enabled func() bool, onChange func(content string) error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if enabled != nil && !enabled() {
				continue
			}
			m.tick(onChange)
		}
	}
}

func (m *Monitor) tick(onChange func(content string) error) {
	text, err := m.readAll()
	if err != nil {
		// Treated as benign: on every supported platform an empty
		// clipboard or a non-text selection surfaces as an error from
		// the underlying clipboard library rather than an empty
		// string, so an error paired with no text is the normal case,
		// not a failure worth logging on every tick.
		return
	}
	if text == "" {
		return
	}

	m.mu.Lock()
	unchanged := text == m.lastContent
	m.mu.Unlock()
	if unchanged {
		return
	}

	if onChange == nil {
		return
	}
	if err := onChange(text); err != nil {
		return
	}

	m.mu.Lock()
	m.lastContent = text
	m.mu.Unlock()
}
