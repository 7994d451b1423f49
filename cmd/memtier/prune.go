package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/memtier/pkg/retention"
)

func newPruneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete memories older than the retention policy allows",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if a.cfg.Retention.Permanent {
				fmt.Println("prune: retention is permanent, nothing to do")
				return nil
			}
			if a.dryRun {
				fmt.Printf("prune: dry run, would delete points older than %d days\n",
					a.cfg.Retention.MaxAgeDays)
				return nil
			}

			store, cleanup, err := openVectorStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			pruner := retention.NewPruner(store, retention.Policy{
				Permanent:  a.cfg.Retention.Permanent,
				MaxAgeDays: a.cfg.Retention.MaxAgeDays,
			})

			report, err := pruner.Run(ctx, a.cfg.UserID)
			if err != nil {
				return err
			}
			fmt.Printf("prune: examined=%d pruned=%d\n", report.Examined, report.Pruned)
			return nil
		},
	}
}
