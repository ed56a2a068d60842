package cmd

import (
	"fmt"
	"os"
	"time"

	"safeon/internal/chunker"
	"safeon/internal/jsonl"
	"safeon/internal/openlaw"
	"safeon/internal/precedent"

	"github.com/spf13/cobra"
)

var (
	flagCrawlQueries   []string
	flagCrawlDisplay   int
	flagCrawlDelay     time.Duration
	flagCrawlWorkers   int
	flagCrawlMaxPages  int
	flagCrawlRetries   int
	flagCrawlOut       string
	flagCrawlFilter    string
	flagCrawlCutoff    string
	flagCrawlFilterOut string
	flagCrawlChunkSize int
	flagCrawlOverlap   int
	flagCrawlChunksOut string
)

// progressEvery is how often crawl reports detail progress.
const progressEvery = 20

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Collect every matching precedent into a JSON Lines corpus",
	Long: `crawl pages through the precedent list endpoint for each query (full-text
search, newest first), merges the ids, fetches every detail, and writes one
normalized record per line. --filter and --chunk-size additionally write the
vector corpus and its chunk file in the same pass.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(flagCrawlRetries)
		if err != nil {
			return err
		}
		limiter := openlaw.NewLimiter(flagCrawlDelay)
		ctx := cmd.Context()

		fetcher := &precedent.Fetcher{
			Transport:  client,
			Throttle:   limiter,
			PageSize:   flagCrawlDisplay,
			BodySearch: true,
			Sort:       "ddes",
			MaxPages:   flagCrawlMaxPages,
			OnPage: func(s precedent.PageStats) {
				if s.Err != nil {
					warnf("[%s] page %d failed, stopping this query: %v", s.Query, s.Page, s.Err)
					return
				}
				fmt.Printf("[%s] page %d: got %d, new %d, total %d\n", s.Query, s.Page, s.Got, s.New, s.Total)
			},
		}
		ids, err := fetcher.FetchQueries(ctx, flagCrawlQueries)
		if err != nil {
			return fmt.Errorf("list precedents: %w", err)
		}
		fmt.Printf("Collected %d unique precedent ids from %d queries\n", len(ids), len(flagCrawlQueries))

		sink, err := crawlSink()
		if err != nil {
			return err
		}

		resolver := &precedent.Resolver{
			Transport: client,
			Throttle:  limiter,
			Workers:   flagCrawlWorkers,
			OnProgress: func(done, total int) {
				if done%progressEvery == 0 || done == total {
					fmt.Printf("  details %d/%d\n", done, total)
				}
			},
			OnFailure: func(f precedent.Failure) {
				fmt.Fprintf(os.Stderr, "error %s: %v\n", f.ID, f.Err)
			},
		}
		start := time.Now()
		failures, err := resolver.ResolveAll(ctx, ids, sink.Write)
		if cerr := sink.Close(); err == nil {
			err = cerr
		}

		fmt.Printf("\nDone in %s -> %s\n", time.Since(start).Round(time.Millisecond), flagCrawlOut)
		fmt.Println(sink.summary())
		fmt.Printf("  Failed:  %d\n", len(failures))
		return err
	},
}

func crawlSink() (*corpusSink, error) {
	sink := &corpusSink{}
	var err error
	if sink.all, err = jsonl.Create(flagCrawlOut); err != nil {
		return nil, err
	}
	if flagCrawlFilter != "" {
		f, err := precedent.NewFilter(precedent.FilterMode(flagCrawlFilter), flagCrawlCutoff)
		if err != nil {
			sink.Close()
			return nil, err
		}
		sink.filter = &f
		if sink.filtered, err = jsonl.Create(flagCrawlFilterOut); err != nil {
			sink.Close()
			return nil, err
		}
	}
	if flagCrawlChunkSize > 0 {
		sink.chunking = chunker.Options{Size: flagCrawlChunkSize, Overlap: flagCrawlOverlap}
		if err := sink.chunking.Validate(); err != nil {
			sink.Close()
			return nil, err
		}
		if sink.chunks, err = jsonl.Create(flagCrawlChunksOut); err != nil {
			sink.Close()
			return nil, err
		}
	}
	return sink, nil
}

func init() {
	f := crawlCmd.Flags()
	f.StringSliceVar(&flagCrawlQueries, "query", []string{"중대재해", "산업안전보건법위반"}, "search queries (repeatable)")
	f.IntVar(&flagCrawlDisplay, "display", 100, "results per list page")
	f.DurationVar(&flagCrawlDelay, "delay", 800*time.Millisecond, "minimum spacing between API requests")
	f.IntVar(&flagCrawlWorkers, "workers", 1, "parallel detail fetches (sharing the same rate limit)")
	f.IntVar(&flagCrawlMaxPages, "max-pages", 0, "maximum list pages per query (0 = until empty)")
	f.IntVar(&flagCrawlRetries, "retries", 0, "retries per request on transient errors")
	f.StringVar(&flagCrawlOut, "out", "all_docs.jsonl", "full corpus output")
	f.StringVar(&flagCrawlFilter, "filter", "", "also write a vector corpus: case-name, text, or text-only")
	f.StringVar(&flagCrawlCutoff, "cutoff", precedent.DefaultCutoff, "earliest decision date kept by --filter")
	f.StringVar(&flagCrawlFilterOut, "filter-out", "vector_docs.jsonl", "vector corpus output")
	f.IntVar(&flagCrawlChunkSize, "chunk-size", 0, "also write chunks of this many characters (0 = off)")
	f.IntVar(&flagCrawlOverlap, "chunk-overlap", chunker.DefaultOverlap, "chunk overlap in characters (negative = none)")
	f.StringVar(&flagCrawlChunksOut, "chunks-out", "vector_chunks.jsonl", "chunk output")
	rootCmd.AddCommand(crawlCmd)
}
