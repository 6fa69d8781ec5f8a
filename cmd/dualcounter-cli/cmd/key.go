// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package cmd

import (
	"fmt"
	"os"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/ephemlabs/dualcounter/accounts"
	"github.com/ephemlabs/dualcounter/auth"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the primary credential",
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate [path]",
	Short: "Generate a primary key file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := cfg.KeyPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("refusing to overwrite existing key at %s", path)
		}
		priv, err := auth.GeneratePrivateKey()
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(base58.Encode(priv[:])), fsModeWrite); err != nil {
			return err
		}
		fmt.Printf("generated key %s at %s\n", priv.PublicKey(), path)
		return nil
	},
}

var keyAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the authority and its counter address",
	RunE: func(*cobra.Command, []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		priv, err := loadKey(cfg)
		if err != nil {
			return err
		}
		authority := priv.PublicKey()
		counter, bump, err := accounts.CounterAddress(authority)
		if err != nil {
			return err
		}
		fmt.Printf("authority: %s\ncounter:   %s (bump %d)\n", authority, counter, bump)
		return nil
	},
}

func init() {
	keyCmd.AddCommand(keyGenerateCmd, keyAddressCmd)
}
