package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/openclaw/memtier/pkg/retrieval"
)

const replHelp = `Commands:
  !help             show this help
  !quit             exit
  !buffer <query>   exact substring search of the short-term buffer
  !summaries <q>    semantic search over exchange summaries only
  <anything else>   hybrid search across both tiers`

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memtier_history"
	}
	return filepath.Join(home, ".memtier_history")
}

func newReplCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive memory search shell",
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

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)
			line.SetCompleter(func(l string) (c []string) {
				for _, cmd := range []string{"!help", "!quit", "!buffer ", "!summaries "} {
					if strings.HasPrefix(cmd, l) {
						c = append(c, cmd)
					}
				}
				return
			})

			historyFile := historyFilePath()
			if f, err := os.Open(historyFile); err == nil {
				line.ReadHistory(f)
				f.Close()
			}
			defer func() {
				if f, err := os.Create(historyFile); err == nil {
					line.WriteHistory(f)
					f.Close()
				}
			}()

			fmt.Println("=== memtier ===")
			fmt.Printf("User: %s | Store: %s\n", a.cfg.UserID, a.cfg.Vector.Type)
			fmt.Println("Type !help for available commands.")

			for {
				input, err := line.Prompt(fmt.Sprintf("memtier::%s> ", a.cfg.UserID))
				if err != nil {
					if err == liner.ErrPromptAborted || err == io.EOF {
						fmt.Println("\nGoodbye!")
						return nil
					}
					fmt.Printf("Error reading input: %v\n", err)
					continue
				}

				input = strings.TrimSpace(input)
				if input == "" {
					continue
				}
				line.AppendHistory(input)

				switch {
				case input == "!quit":
					fmt.Println("Goodbye!")
					return nil

				case input == "!help":
					fmt.Println(replHelp)

				case strings.HasPrefix(input, "!buffer "):
					query := strings.TrimSpace(strings.TrimPrefix(input, "!buffer "))
					matches, err := searcher.SearchBuffer(ctx, a.cfg.UserID, query, 0)
					if err != nil {
						fmt.Printf("buffer search failed: %v\n", err)
						continue
					}
					if len(matches) == 0 {
						fmt.Println("no matches")
						continue
					}
					printBufferMatches(matches)

				case strings.HasPrefix(input, "!summaries "):
					query := strings.TrimSpace(strings.TrimPrefix(input, "!summaries "))
					results, err := searcher.Search(ctx, a.cfg.UserID, query, retrieval.Options{
						SummariesOnly: true,
						TrackAccess:   true,
					})
					if err != nil {
						fmt.Printf("search failed: %v\n", err)
						continue
					}
					for _, r := range results {
						printVectorMatch(r.Score, r.Point.Payload)
					}

				default:
					result, err := searcher.HybridSearch(ctx, a.cfg.UserID, input, retrieval.Options{
						TrackAccess: true,
					})
					if err != nil {
						fmt.Printf("search failed: %v\n", err)
						continue
					}
					if len(result.BufferMatches) == 0 && len(result.VectorMatches) == 0 {
						fmt.Println("no matches")
						continue
					}
					printBufferMatches(result.BufferMatches)
					for _, r := range result.VectorMatches {
						printVectorMatch(r.Score, r.Point.Payload)
					}
				}
			}
		},
	}
}
