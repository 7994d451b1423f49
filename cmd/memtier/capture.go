package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/memtier/pkg/capture"
)

func newCaptureCmd(a *app) *cobra.Command {
	var sessionsDir string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Append new transcript turns to the short-term buffer",
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := openBuffer(a.cfg)
			if err != nil {
				return err
			}
			defer buf.Close()

			dir := a.cfg.Capture.SessionsDir
			if sessionsDir != "" {
				dir = sessionsDir
			}

			capturer := capture.NewCapturer(buf, capture.Options{
				SessionsDir:     dir,
				StatePath:       a.cfg.Capture.StatePath,
				IncludeThinking: a.cfg.Capture.IncludeThinking,
				DryRun:          a.dryRun,
			})

			report, err := capturer.Run(cmd.Context(), a.cfg.UserID)
			if err != nil {
				return err
			}

			switch {
			case report.Transcript == "":
				fmt.Println("capture: no transcript files found")
			case report.NoNewData:
				fmt.Printf("capture: %s unchanged, nothing to do\n", report.Transcript)
			default:
				fmt.Printf("capture: %s parsed=%d appended=%d\n",
					report.Transcript, report.Parsed, report.Appended)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionsDir, "sessions-dir", "", "override the transcript directory")
	return cmd
}
