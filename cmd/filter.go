package cmd

import (
	"fmt"

	"safeon/internal/chunker"
	"safeon/internal/jsonl"
	"safeon/internal/precedent"

	"github.com/spf13/cobra"
)

var (
	flagFilterMode   string
	flagFilterCutoff string
	flagChunkSize    int
	flagChunkOverlap int
)

var filterCmd = &cobra.Command{
	Use:   "filter <all_docs.jsonl> [vector_docs.jsonl]",
	Short: "Select the records that belong in the vector corpus",
	Long: `filter keeps records with non-empty text decided on or after --cutoff.
Mode case-name additionally requires the case name to cite the Serious
Accidents Punishment Act, mode text requires the text to cite it, and mode
text-only keeps every record with text regardless of date.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := precedent.NewFilter(precedent.FilterMode(flagFilterMode), flagFilterCutoff)
		if err != nil {
			return err
		}
		out := outputArg(args, "vector_docs.jsonl")
		w, err := jsonl.Create(out)
		if err != nil {
			return err
		}
		sink := &corpusSink{filtered: w, filter: &f}
		return streamCorpus(args[0], out, sink)
	},
}

var chunkCmd = &cobra.Command{
	Use:   "chunk <vector_docs.jsonl> [vector_chunks.jsonl]",
	Short: "Split corpus records into overlapping chunks",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := chunker.Options{Size: flagChunkSize, Overlap: flagChunkOverlap}
		if err := opts.Validate(); err != nil {
			return err
		}
		out := outputArg(args, "vector_chunks.jsonl")
		w, err := jsonl.Create(out)
		if err != nil {
			return err
		}
		sink := &corpusSink{chunks: w, chunking: opts}
		return streamCorpus(args[0], out, sink)
	},
}

func outputArg(args []string, def string) string {
	if len(args) > 1 {
		return args[1]
	}
	return def
}

func streamCorpus(in, out string, sink *corpusSink) error {
	err := jsonl.ReadFile(in, sink.Write)
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s -> %s\n", in, out)
	fmt.Println(sink.summary())
	return nil
}

func init() {
	filterCmd.Flags().StringVar(&flagFilterMode, "mode", string(precedent.FilterCaseName), "case-name, text, or text-only")
	filterCmd.Flags().StringVar(&flagFilterCutoff, "cutoff", precedent.DefaultCutoff, "earliest decision date (YYYY-MM-DD or YYYYMMDD)")
	chunkCmd.Flags().IntVar(&flagChunkSize, "size", chunker.DefaultSize, "chunk size in characters")
	chunkCmd.Flags().IntVar(&flagChunkOverlap, "overlap", chunker.DefaultOverlap, "overlap between consecutive chunks (negative = none)")
	rootCmd.AddCommand(filterCmd, chunkCmd)
}
