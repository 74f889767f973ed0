package config

import (
	"fmt"
	"os"
	"runtime"

	ma "github.com/multiformats/go-multiaddr"
	"gopkg.in/yaml.v3"
)

// checkFilePermissions refuses a settings file readable by group or
// others: it can name internal network topology and relay peers.
func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil // read errors are handled by the caller
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return fmt.Errorf("config file %s has overly permissive mode %04o; expected 0600 — fix with: chmod 600 %s", path, mode, path)
	}
	return nil
}

// Load reads and validates the settings file at path. A missing file is
// not an error: the defaults are returned instead, so the daemon runs
// unconfigured out of the box.
func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that every address in cfg parses as a multiaddr, so
// a typo fails at load time instead of deep inside endpoint bring-up.
func Validate(cfg *Config) error {
	for _, addr := range cfg.Network.ListenAddresses {
		if _, err := ma.NewMultiaddr(addr); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", addr, err)
		}
	}
	for _, addr := range cfg.Relay.Addresses {
		if _, err := ma.NewMultiaddr(addr); err != nil {
			return fmt.Errorf("invalid relay address %q: %w", addr, err)
		}
	}
	return nil
}

// Render marshals cfg back to YAML, for "config show".
func Render(cfg *Config) (string, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("config: marshal: %w", err)
	}
	return string(out), nil
}
