package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/memtier/pkg/promotion"
)

func newPromoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "promote",
		Short: "Move buffered exchanges into the durable vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			buf, err := openBuffer(a.cfg)
			if err != nil {
				return err
			}
			defer buf.Close()

			store, cleanup, err := openVectorStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			embedder, err := newEmbedder(a.cfg)
			if err != nil {
				return err
			}

			seen, err := promotion.NewSeenCache(a.cfg.Promotion.SeenCacheSize)
			if err != nil {
				return err
			}

			promoter := promotion.NewPromoter(buf, store, embedder, seen, promotion.Options{
				FallbackDir: a.cfg.Promotion.FallbackDir,
				Parallelism: a.cfg.Promotion.Parallelism,
				DryRun:      a.dryRun,
			})

			report, err := promoter.Run(ctx, a.cfg.UserID)
			fmt.Printf("promote: read=%d exchanges=%d stored=%d skipped=%d failed=%d cleared=%v\n",
				report.Read, report.Exchanges, report.Stored, report.Skipped, report.Failed, report.Cleared)
			if report.FallbackPath != "" {
				fmt.Printf("promote: buffer preserved, backup written to %s\n", report.FallbackPath)
			}
			return err
		},
	}
}
