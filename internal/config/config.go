// Package config loads the daemon's optional YAML settings file. The
// JSON document in package store holds the state the engine itself
// writes (sync folder, topic id, clipboard toggle); this file is the
// operator-edited half: how the endpoint listens, which relays to fall
// back on, and which discovery mechanisms run.
package config

// FileName is the settings file looked up under the data directory.
const FileName = "config.yaml"

// Config is the full daemon settings document.
type Config struct {
	Network   NetworkConfig   `yaml:"network,omitempty"`
	Relay     RelayConfig     `yaml:"relay,omitempty"`
	Discovery DiscoveryConfig `yaml:"discovery,omitempty"`
}

// NetworkConfig holds endpoint listen settings.
type NetworkConfig struct {
	// ListenAddresses are QUIC multiaddrs to bind. Empty means all
	// interfaces on an OS-assigned port.
	ListenAddresses []string `yaml:"listen_addresses,omitempty"`
}

// RelayConfig holds the static relay fallback settings.
type RelayConfig struct {
	// Addresses are circuit-relay-v2 multiaddrs (with /p2p/ peer id)
	// used when direct and hole-punched connectivity both fail.
	Addresses []string `yaml:"addresses,omitempty"`
}

// DiscoveryConfig toggles the peer discovery mechanisms.
type DiscoveryConfig struct {
	MDNSEnabled *bool `yaml:"mdns_enabled,omitempty"` // LAN discovery (default: true)
	DHTEnabled  *bool `yaml:"dht_enabled,omitempty"`  // DHT peer-routing fallback (default: true)
}

// IsMDNSEnabled returns whether mDNS local discovery is enabled.
// Defaults to true when not explicitly set in config.
func (d *DiscoveryConfig) IsMDNSEnabled() bool {
	if d.MDNSEnabled == nil {
		return true
	}
	return *d.MDNSEnabled
}

// IsDHTEnabled returns whether the DHT fallback is enabled.
// Defaults to true when not explicitly set in config.
func (d *DiscoveryConfig) IsDHTEnabled() bool {
	if d.DHTEnabled == nil {
		return true
	}
	return *d.DHTEnabled
}

// Default returns the configuration used when no settings file exists.
func Default() *Config {
	return &Config{}
}
