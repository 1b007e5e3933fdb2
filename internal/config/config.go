// Package config loads the shell's run configuration: bus host/port, the
// optional SOCKS proxy triple, and the history/cache file paths (spec §6).
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Proxy is the optional proxy triple (host, port, userid) spec §6 lists
// among the configuration inputs to run. internal/bus/mqttbus dials it with
// the SOCKS5 protocol, not SOCKS4.
type Proxy struct {
	Host   string `toml:"host"`
	Port   int    `toml:"port"`
	UserID string `toml:"user_id"`
}

// Config is the full set of configuration inputs to run.
type Config struct {
	BusHost     string `toml:"bus_host"`
	BusPort     int    `toml:"bus_port"`
	Proxy       *Proxy `toml:"proxy"`
	HistoryFile string `toml:"history_file"`
	CacheFile   string `toml:"cache_file"`

	// AckTimeoutSeconds bounds the subscription-acknowledgement barrier
	// (spec §9 Design Note, resolving the "blocking subscription barrier"
	// Open Question). Zero means "use the shell package's default".
	AckTimeoutSeconds int `toml:"ack_timeout_seconds"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		BusHost:     "localhost",
		BusPort:     1883,
		HistoryFile: "",
		CacheFile:   "",
	}
}

// Load reads and decodes a TOML config file at path, starting from Defaults
// so unset fields keep their default value.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %q: %w", path, err)
	}
	return cfg, nil
}
