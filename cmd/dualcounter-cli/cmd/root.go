// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ephemlabs/dualcounter/auth"
	"github.com/ephemlabs/dualcounter/config"
	"github.com/ephemlabs/dualcounter/consts"
	"github.com/ephemlabs/dualcounter/engine"
	"github.com/ephemlabs/dualcounter/rpc"
)

const fsModeWrite = 0o600

var (
	configPath string
	keyPath    string

	rootCmd = &cobra.Command{
		Use:        consts.Name + "-cli",
		Short:      "Drives a counter across a base ledger and a rollup",
		SuggestFor: []string{"dualcounter-cli", "dualcountercli"},
	}
)

func init() {
	cobra.EnablePrefixMatching = true
	rootCmd.AddCommand(
		keyCmd,
		counterCmd,
		delegationCmd,
	)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to yaml config (defaults apply when unset)")
	rootCmd.PersistentFlags().StringVar(&keyPath, "key", "", "path to the primary key file (overrides config)")
}

func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func loadKey(cfg config.Config) (auth.PrivateKey, error) {
	path := cfg.KeyPath
	if keyPath != "" {
		path = keyPath
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return auth.EmptyPrivateKey, fmt.Errorf("reading key %s: %w", path, err)
	}
	decoded, err := base58.Decode(string(raw))
	if err != nil {
		return auth.EmptyPrivateKey, fmt.Errorf("decoding key %s: %w", path, err)
	}
	if len(decoded) != auth.PrivateKeyLen {
		return auth.EmptyPrivateKey, errors.New("key file does not hold an ed25519 private key")
	}
	return auth.PrivateKey(decoded), nil
}

// withEngine builds a started engine around the configured key and runs
// [f] against it.
func withEngine(ctx context.Context, f func(context.Context, *engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	priv, err := loadKey(cfg)
	if err != nil {
		return err
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	base := rpc.NewClient("base", cfg.BaseRPC, cfg.BaseWS, log)
	rollup := rpc.NewClient("rollup", cfg.RollupRPC, cfg.RollupWS, log)
	eng, err := engine.New(base, rollup, auth.NewED25519(priv), auth.NoSession, log, engine.Options{
		Commitment:         rpc.Commitment(cfg.Commitment),
		SettlePollInterval: cfg.SettlePollInterval,
		SettleTimeout:      cfg.SettleTimeout,
	})
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	if err := eng.Start(ctx, priv.PublicKey()); err != nil {
		return err
	}
	return f(ctx, eng)
}
