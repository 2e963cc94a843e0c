package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the reference price cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store, err := a.cacheStore(ctx)
			if err != nil {
				return err
			}
			st, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(st)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store, err := a.cacheStore(ctx)
			if err != nil {
				return err
			}
			n, err := store.Clear(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Cleared %d cache entries\n", n)
			return nil
		},
	})
	return cmd
}
