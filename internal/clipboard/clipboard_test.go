package clipboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func fakeClipboard(initial string) (*Monitor, *sync.Mutex, *string) {
	var mu sync.Mutex
	content := initial
	m := &Monitor{
		readAll: func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			return content, nil
		},
		writeAll: func(s string) error {
			mu.Lock()
			defer mu.Unlock()
			content = s
			return nil
		},
	}
	return m, &mu, &content
}

func TestMonitor_TickCallsOnChangeForNewContent(t *testing.T) {
	m, _, _ := fakeClipboard("hello")

	var got string
	calls := 0
	m.tick(func(content string) error {
		calls++
		got = content
		return nil
	})

	if calls != 1 {
		t.Fatalf("onChange called %d times, want 1", calls)
	}
	if got != "hello" {
		t.Fatalf("onChange content = %q, want hello", got)
	}
}

func TestMonitor_TickSkipsUnchangedContent(t *testing.T) {
	m, _, _ := fakeClipboard("same")
	m.tick(func(string) error { return nil })

	calls := 0
	m.tick(func(string) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Fatalf("onChange called %d times on unchanged content, want 0", calls)
	}
}

func TestMonitor_TickSkipsEmptyContent(t *testing.T) {
	m, _, _ := fakeClipboard("")
	calls := 0
	m.tick(func(string) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Fatalf("onChange called %d times on empty clipboard, want 0", calls)
	}
}

func TestMonitor_FailedOnChangeIsRetried(t *testing.T) {
	m, _, _ := fakeClipboard("retry-me")

	calls := 0
	m.tick(func(string) error {
		calls++
		return errors.New("broadcast failed")
	})
	m.tick(func(string) error {
		calls++
		return nil
	})

	if calls != 2 {
		t.Fatalf("onChange called %d times, want 2 (failed attempt retried)", calls)
	}
}

func TestMonitor_SetLocalContentSuppressesEcho(t *testing.T) {
	m, _, content := fakeClipboard("")

	if err := m.SetLocalContent("from network"); err != nil {
		t.Fatalf("SetLocalContent() error = %v", err)
	}
	if *content != "from network" {
		t.Fatalf("clipboard content = %q, want %q", *content, "from network")
	}

	calls := 0
	m.tick(func(string) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Fatalf("onChange called %d times after SetLocalContent echo, want 0", calls)
	}
}

func TestMonitor_RunRespectsEnabledGate(t *testing.T) {
	m, _, _ := fakeClipboard("gated")

	ctx, cancel := context.WithTimeout(context.Background(), PollInterval+500*time.Millisecond)
	defer cancel()

	calls := 0
	m.Run(ctx, func() bool { return false }, func(string) error {
		calls++
		return nil
	})

	if calls != 0 {
		t.Fatalf("onChange called %d times while disabled, want 0", calls)
	}
}
