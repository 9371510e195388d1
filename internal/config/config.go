// Package config holds the proxy's immutable, process-wide configuration,
// loadable from a YAML file and overridable by CLI flags.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode is the routing strategy selected for every connection this
// process accepts.
type Mode string

const (
	ModePassThroughDedicated Mode = "pass_through_dedicated"
	ModePassThroughByDomain  Mode = "pass_through_by_domain"
	ModeHidden               Mode = "hidden"
)

// Config is the proxy's full configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	ListenPort int    `yaml:"listen_port"`

	PrimaryHost string `yaml:"primary_host"`
	PrimaryPort int    `yaml:"primary_port"`

	SidecarHost string `yaml:"sidecar_host"`
	SidecarPort int    `yaml:"sidecar_port"`

	ServerDomain string `yaml:"server_domain"`
	Mode         Mode   `yaml:"mode"`

	SyncMOTD    bool   `yaml:"sync_motd"`
	MOTDDefault string `yaml:"motd_default"`

	LogLevel     string        `yaml:"log_level"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	ConnTimeout  time.Duration `yaml:"connect_timeout"`
	SRVTimeout   time.Duration `yaml:"srv_timeout"`
	ProtoVersion int32         `yaml:"protocol_version"`
}

// Default returns a Config with the proxy's built-in defaults.
func Default() Config {
	return Config{
		ListenAddr:   "0.0.0.0",
		ListenPort:   25565,
		PrimaryPort:  25565,
		SidecarPort:  25565,
		Mode:         ModePassThroughDedicated,
		SyncMOTD:     true,
		MOTDDefault:  "A Minecraft Server",
		LogLevel:     "info",
		IdleTimeout:  60 * time.Second,
		ConnTimeout:  10 * time.Second,
		SRVTimeout:   10 * time.Second,
		ProtoVersion: 47,
	}
}

// Load reads and merges a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Validate enforces that mode = pass_through_by_domain requires a
// non-empty server_domain, and rejects unknown modes.
func (c Config) Validate() error {
	switch c.Mode {
	case ModePassThroughDedicated, ModePassThroughByDomain, ModeHidden:
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.Mode == ModePassThroughByDomain && c.ServerDomain == "" {
		return fmt.Errorf("config: --domain is required for %s mode", ModePassThroughByDomain)
	}
	return nil
}
