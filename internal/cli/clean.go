package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/loom-data/loomtest/internal/db"
	"github.com/loom-data/loomtest/internal/fixture"
	"github.com/loom-data/loomtest/internal/history"
)

func newCleanCmd() *cobra.Command {
	var (
		olderThan time.Duration
		dryRun    bool
		keepHist  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Drop leftover test schemas and prune invocation history",
		Long: `Clean removes harness schemas (test<unix><rand>) whose embedded
creation time is older than the cutoff. Schemas from in-flight runs are
left alone by the age check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			conn, err := db.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()

			schemas, err := db.ListSchemas(ctx, conn.Pool)
			if err != nil {
				return err
			}

			cutoff := time.Now().Add(-olderThan)
			var stale []string
			for _, name := range schemas {
				created, ok := fixture.SchemaCreatedAt(name)
				if ok && created.Before(cutoff) {
					stale = append(stale, name)
				}
			}

			if dryRun {
				for _, name := range stale {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d stale schemas (dry run)\n", len(stale))
				return nil
			}

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(4)
			for _, name := range stale {
				g.Go(func() error {
					return db.DropSchema(gctx, conn.Pool, name)
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %d stale schemas\n", len(stale))

			store, err := history.Open(cfg.Harness.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			pruned, err := store.Prune(ctx, time.Now().Add(-keepHist))
			if err != nil {
				return err
			}
			if verbose || pruned > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d history entries\n", pruned)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "only drop schemas older than this")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list stale schemas without dropping")
	cmd.Flags().DurationVar(&keepHist, "keep-history", 7*24*time.Hour, "prune history entries older than this")
	return cmd
}
