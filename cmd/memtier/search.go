package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openclaw/memtier/pkg/mem"
	"github.com/openclaw/memtier/pkg/retrieval"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		limit       int
		tag         string
		summaries   bool
		bufferOnly  bool
		vectorOnly  bool
		trackAccess bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories across both tiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

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
			opts := retrieval.Options{
				Limit:         limit,
				Tag:           tag,
				SummariesOnly: summaries,
				TrackAccess:   trackAccess,
			}

			switch {
			case bufferOnly:
				matches, err := searcher.SearchBuffer(ctx, a.cfg.UserID, query, limit)
				if err != nil {
					return err
				}
				printBufferMatches(matches)

			case vectorOnly:
				results, err := searcher.Search(ctx, a.cfg.UserID, query, opts)
				if err != nil {
					return err
				}
				for _, r := range results {
					printVectorMatch(r.Score, r.Point.Payload)
				}

			default:
				result, err := searcher.HybridSearch(ctx, a.cfg.UserID, query, opts)
				if err != nil {
					return err
				}
				printBufferMatches(result.BufferMatches)
				for _, r := range result.VectorMatches {
					printVectorMatch(r.Score, r.Point.Payload)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", retrieval.DefaultLimit, "maximum vector results")
	cmd.Flags().StringVar(&tag, "tag", "", "restrict to points carrying a tag")
	cmd.Flags().BoolVar(&summaries, "summaries", false, "restrict to exchange summaries")
	cmd.Flags().BoolVar(&bufferOnly, "buffer", false, "search only the short-term buffer")
	cmd.Flags().BoolVar(&vectorOnly, "vector", false, "search only the vector store")
	cmd.Flags().BoolVar(&trackAccess, "track-access", false, "update access stats on results")
	return cmd
}

func printBufferMatches(matches []mem.Turn) {
	for _, turn := range matches {
		fmt.Printf("[recent %s %s] %s\n",
			turn.Timestamp.Format("2006-01-02 15:04"), turn.Role, mem.Truncate(turn.Content, 160))
	}
}

func printVectorMatch(score float32, p mem.Payload) {
	fmt.Printf("[%.3f %s %s] %s\n", score, p.Date, p.SourceType, mem.Truncate(p.Text, 160))
}
