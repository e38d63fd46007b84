// Package server provides a factory for creating the gateway.
package server

import (
	"fmt"

	"github.com/txn2/mcp-calendar-gateway/pkg/gateway"
)

// Version is set at build time.
var Version = "dev"

// New creates a gateway from a config file path. An empty path uses the
// built-in defaults.
func New(configPath string) (*gateway.Gateway, *gateway.Config, error) {
	cfg := gateway.DefaultConfig()
	if configPath != "" {
		loaded, err := gateway.LoadConfig(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if cfg.Server.Version == "" || cfg.Server.Version == "1.0.0" {
		cfg.Server.Version = Version
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating gateway: %w", err)
	}
	return gw, cfg, nil
}
