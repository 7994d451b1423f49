package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/memtier/pkg/facts"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		date      string
		backfill  bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract atomic facts from daily logs into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, cleanup, err := openVectorStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			embedder, err := newEmbedder(a.cfg)
			if err != nil {
				return err
			}

			if batchSize <= 0 {
				batchSize = a.cfg.Facts.BatchSize
			}
			uploader := facts.NewUploader(store, embedder, facts.Options{
				LogDir:      a.cfg.Facts.LogDir,
				BatchSize:   batchSize,
				Parallelism: a.cfg.Facts.Parallelism,
				DryRun:      a.dryRun,
			})

			if backfill {
				reports, err := uploader.Backfill(ctx, a.cfg.UserID)
				for _, r := range reports {
					printFactReport(r)
				}
				return err
			}

			if date == "" {
				date = time.Now().UTC().Format("2006-01-02")
			}
			report, err := uploader.ProcessDate(ctx, a.cfg.UserID, date)
			printFactReport(report)
			return err
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "log date to process (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&backfill, "backfill", false, "process every daily log file")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "facts per upload batch")
	return cmd
}

func printFactReport(r facts.Report) {
	fmt.Printf("extract %s: extracted=%d skipped=%d uploaded=%d failed=%d\n",
		r.Date, r.Extracted, r.Skipped, r.Uploaded, r.Failed)
}
