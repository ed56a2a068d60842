package cmd

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"safeon/internal/chunker"
	"safeon/internal/index"

	"github.com/spf13/cobra"
)

var (
	flagWorkers      int
	flagSummaryModel string
	flagSummaries    bool
	flagIdxChunkSize int
	flagIdxOverlap   int
)

var indexCmd = &cobra.Command{
	Use:   "index <docs.jsonl|dir>",
	Short: "Embed a precedent corpus into the local vector index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		db, err := dbPath()
		if err != nil {
			return err
		}

		summaryModel := flagSummaryModel
		if summaryModel == "" {
			summaryModel = flagChatModel
		}

		idx, err := index.New(index.Config{
			DBPath:       db,
			OllamaURL:    flagOllama,
			Model:        flagModel,
			Workers:      flagWorkers,
			SummaryModel: summaryModel,
			Summaries:    flagSummaries,
			Chunk:        chunker.Options{Size: flagIdxChunkSize, Overlap: flagIdxOverlap},
			OnProgress: func(phase string, processed, total int) {
				if total == 0 {
					fmt.Println(phase)
				}
			},
		})
		if err != nil {
			return err
		}
		defer idx.Close()

		fmt.Printf("Indexing %s into %s...\n", root, db)
		start := time.Now()

		stats, err := idx.Index(cmd.Context(), root)
		elapsed := time.Since(start)

		if stats != nil {
			fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
			fmt.Printf("  Files:      %d\n", stats.Files)
			fmt.Printf("  Precedents: %d total, %d indexed, %d unchanged\n",
				stats.DocsTotal, stats.DocsIndexed, stats.DocsSkipped)
			fmt.Printf("  Chunks:     %d\n", stats.ChunksTotal)
		}

		return err
	},
}

func init() {
	indexCmd.Flags().IntVar(&flagWorkers, "workers", runtime.NumCPU(), "parallel chunking workers")
	indexCmd.Flags().StringVar(&flagSummaryModel, "summary-model", "", "model for summaries and the corpus overview (default: same as --chat-model)")
	indexCmd.Flags().BoolVar(&flagSummaries, "summaries", false, "generate a summary for every newly indexed precedent")
	indexCmd.Flags().IntVar(&flagIdxChunkSize, "chunk-size", chunker.DefaultSize, "chunk size in characters")
	indexCmd.Flags().IntVar(&flagIdxOverlap, "chunk-overlap", chunker.DefaultOverlap, "chunk overlap in characters (negative = none)")
	rootCmd.AddCommand(indexCmd)
}
