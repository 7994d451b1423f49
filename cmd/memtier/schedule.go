package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openclaw/memtier/pkg/capture"
	"github.com/openclaw/memtier/pkg/log"
	"github.com/openclaw/memtier/pkg/promotion"
	"github.com/openclaw/memtier/pkg/scheduler"
)

func newScheduleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run capture and promotion on their configured cron cadence",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := openBuffer(a.cfg)
			if err != nil {
				return err
			}
			defer buf.Close()

			store, cleanup, err := openVectorStore(cmd.Context(), a.cfg)
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

			capturer := capture.NewCapturer(buf, capture.Options{
				SessionsDir:     a.cfg.Capture.SessionsDir,
				StatePath:       a.cfg.Capture.StatePath,
				IncludeThinking: a.cfg.Capture.IncludeThinking,
			})
			promoter := promotion.NewPromoter(buf, store, embedder, seen, promotion.Options{
				FallbackDir: a.cfg.Promotion.FallbackDir,
				Parallelism: a.cfg.Promotion.Parallelism,
			})

			userID := a.cfg.UserID
			sched := scheduler.New(log.Setup(a.cfg.Logging))

			err = sched.Add(a.cfg.Schedule.Capture, "capture", func(ctx context.Context) error {
				report, err := capturer.Run(ctx, userID)
				if err == nil && report.Appended > 0 {
					log.InfoContext(ctx, "Captured turns", "appended", report.Appended)
				}
				return err
			})
			if err != nil {
				return err
			}

			err = sched.Add(a.cfg.Schedule.Promote, "promote", func(ctx context.Context) error {
				report, err := promoter.Run(ctx, userID)
				if err == nil && report.Stored > 0 {
					log.InfoContext(ctx, "Promoted exchanges", "stored", report.Stored, "skipped", report.Skipped)
				}
				return err
			})
			if err != nil {
				return err
			}

			fmt.Printf("schedule: capture %q, promote %q (ctrl-c to stop)\n",
				a.cfg.Schedule.Capture, a.cfg.Schedule.Promote)
			sched.Start()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			fmt.Println("schedule: stopping, waiting for in-flight jobs")
			sched.Stop()
			return nil
		},
	}
}
