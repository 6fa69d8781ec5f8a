// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config wires the engine to its two ledgers and tunes its polling
// behavior.
type Config struct {
	BaseRPC   string `yaml:"baseRPC"`
	BaseWS    string `yaml:"baseWS"`
	RollupRPC string `yaml:"rollupRPC"`
	RollupWS  string `yaml:"rollupWS"`

	// Commitment requested when confirming base-ledger transactions.
	Commitment string `yaml:"commitment"`

	// SettlePollInterval/SettleTimeout bound the status-convergence poll
	// after delegate and undelegate.
	SettlePollInterval time.Duration `yaml:"settlePollInterval"`
	SettleTimeout      time.Duration `yaml:"settleTimeout"`

	// KeyPath points at the primary credential's key file (CLI only).
	KeyPath string `yaml:"keyPath"`
}

func Default() Config {
	return Config{
		BaseRPC:            "http://127.0.0.1:8899",
		BaseWS:             "ws://127.0.0.1:8900",
		RollupRPC:          "http://127.0.0.1:7799",
		RollupWS:           "ws://127.0.0.1:7800",
		Commitment:         "confirmed",
		SettlePollInterval: 400 * time.Millisecond,
		SettleTimeout:      15 * time.Second,
		KeyPath:            ".dualcounter.key",
	}
}

// Load reads a yaml config from [path], applied over defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
