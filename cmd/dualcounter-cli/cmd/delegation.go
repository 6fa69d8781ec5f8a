// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ephemlabs/dualcounter/codec"
	"github.com/ephemlabs/dualcounter/engine"
)

var delegationCmd = &cobra.Command{
	Use:   "delegation",
	Short: "Move the counter between the base ledger and the rollup",
}

var delegateCmd = &cobra.Command{
	Use:   "delegate [validator]",
	Short: "Delegate the counter to the rollup",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var validator *codec.Pubkey
		if len(args) == 1 {
			v, err := codec.ParsePubkey(args[0])
			if err != nil {
				return err
			}
			validator = &v
		}
		return withEngine(cmd.Context(), func(ctx context.Context, eng *engine.Engine) error {
			if err := eng.Delegate(ctx, validator); err != nil {
				return err
			}
			fmt.Printf("status: %s\n", eng.Snapshot().Status)
			return nil
		})
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit the rollup state to the base ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, eng *engine.Engine) error {
			return eng.Commit(ctx)
		})
	},
}

var undelegateCmd = &cobra.Command{
	Use:   "undelegate",
	Short: "Return the counter to the base ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, eng *engine.Engine) error {
			if err := eng.Undelegate(ctx); err != nil {
				return err
			}
			fmt.Printf("status: %s\n", eng.Snapshot().Status)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current delegation status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, eng *engine.Engine) error {
			fmt.Printf("status: %s\n", eng.CheckDelegation(ctx))
			return nil
		})
	},
}

func init() {
	delegationCmd.AddCommand(delegateCmd, commitCmd, undelegateCmd, statusCmd)
}
