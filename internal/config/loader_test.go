package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Network.ListenAddresses) != 0 {
		t.Fatalf("default ListenAddresses = %v, want empty", cfg.Network.ListenAddresses)
	}
	if !cfg.Discovery.IsMDNSEnabled() {
		t.Fatal("IsMDNSEnabled() = false by default, want true")
	}
	if !cfg.Discovery.IsDHTEnabled() {
		t.Fatal("IsDHTEnabled() = false by default, want true")
	}
}

func TestLoad_FullDocument(t *testing.T) {
	path := writeConfig(t, `
network:
  listen_addresses:
    - /ip4/0.0.0.0/udp/4242/quic-v1
relay:
  addresses:
    - /ip4/203.0.113.7/udp/4001/quic-v1/p2p/12D3KooWGRR8PNFLJi3mdTbBCcsx8jz6rR8ZpZHvJpE4jQMZXhQm
discovery:
  mdns_enabled: false
  dht_enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Network.ListenAddresses; len(got) != 1 || got[0] != "/ip4/0.0.0.0/udp/4242/quic-v1" {
		t.Fatalf("ListenAddresses = %v", got)
	}
	if len(cfg.Relay.Addresses) != 1 {
		t.Fatalf("Relay.Addresses = %v", cfg.Relay.Addresses)
	}
	if cfg.Discovery.IsMDNSEnabled() {
		t.Fatal("IsMDNSEnabled() = true, want false (explicitly disabled)")
	}
	if !cfg.Discovery.IsDHTEnabled() {
		t.Fatal("IsDHTEnabled() = false, want true")
	}
}

func TestLoad_InvalidMultiaddrRejected(t *testing.T) {
	path := writeConfig(t, `
network:
  listen_addresses:
    - not-a-multiaddr
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded on an invalid listen address, want error")
	}
}

func TestLoad_MalformedYAMLRejected(t *testing.T) {
	path := writeConfig(t, "network: [this is not\n  a mapping")

	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded on malformed YAML, want error")
	}
}

func TestLoad_PermissiveModeRejected(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}

	path := writeConfig(t, "network: {}\n")
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatalf("Chmod() error = %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() succeeded on a group-readable file, want error")
	}
	if !strings.Contains(err.Error(), "overly permissive") {
		t.Fatalf("error = %v, want permission complaint", err)
	}
}

func TestRender_RoundTrips(t *testing.T) {
	mdns := false
	cfg := &Config{
		Network:   NetworkConfig{ListenAddresses: []string{"/ip4/127.0.0.1/udp/0/quic-v1"}},
		Discovery: DiscoveryConfig{MDNSEnabled: &mdns},
	}

	out, err := Render(cfg)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	path := writeConfig(t, out)

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of rendered config error = %v", err)
	}
	if got.Network.ListenAddresses[0] != cfg.Network.ListenAddresses[0] {
		t.Fatalf("round-trip ListenAddresses = %v", got.Network.ListenAddresses)
	}
	if got.Discovery.IsMDNSEnabled() {
		t.Fatal("round-trip lost mdns_enabled: false")
	}
}
