// Copyright (C) 2024, Ephem Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ephemlabs/dualcounter/engine"
)

var useRollup bool

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "Read and mutate the counter",
}

var counterGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Fetch the current counter state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, eng *engine.Engine) error {
			counter, err := eng.Fetch(ctx)
			if err != nil {
				return err
			}
			state := eng.Snapshot()
			if counter == nil {
				fmt.Println("counter: not initialized")
			} else {
				fmt.Printf("counter: %d (authority %s)\n", counter.Count, counter.Authority)
			}
			fmt.Printf("status:  %s\n", state.Status)
			if state.RollupValue != nil {
				fmt.Printf("rollup:  %d\n", *state.RollupValue)
			}
			return nil
		})
	},
}

var counterInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the counter account on the base ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, eng *engine.Engine) error {
			return eng.Initialize(ctx)
		})
	},
}

var counterIncCmd = &cobra.Command{
	Use:   "increment",
	Short: "Increment the counter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, eng *engine.Engine) error {
			if useRollup {
				return eng.IncrementOnRollup(ctx)
			}
			return eng.Increment(ctx)
		})
	},
}

var counterDecCmd = &cobra.Command{
	Use:   "decrement",
	Short: "Decrement the counter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd.Context(), func(ctx context.Context, eng *engine.Engine) error {
			if useRollup {
				return eng.DecrementOnRollup(ctx)
			}
			return eng.Decrement(ctx)
		})
	},
}

var counterSetCmd = &cobra.Command{
	Use:   "set [value]",
	Short: "Set the counter to a value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return withEngine(cmd.Context(), func(ctx context.Context, eng *engine.Engine) error {
			if useRollup {
				return eng.SetOnRollup(ctx, value)
			}
			return eng.Set(ctx, value)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{counterIncCmd, counterDecCmd, counterSetCmd} {
		c.Flags().BoolVar(&useRollup, "rollup", false, "target the rollup ledger (requires delegation)")
	}
	counterCmd.AddCommand(counterGetCmd, counterInitCmd, counterIncCmd, counterDecCmd, counterSetCmd)
}
