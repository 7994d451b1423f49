package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/memtier/pkg/retrieval"
)

func newContextCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Print a session-priming snapshot of the user's memory",
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

			searcher := retrieval.NewSearcher(store, embedder, buf)
			sc, err := searcher.Context(ctx, a.cfg.UserID, limit)
			if err != nil {
				return err
			}

			out := retrieval.FormatSessionContext(sc)
			if out == "" {
				fmt.Println("context: no memories for user")
				return nil
			}
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", retrieval.DefaultLimit, "turns and summaries per tier")
	return cmd
}
