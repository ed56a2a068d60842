package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"safeon/internal/incident"
	"safeon/internal/openlaw"

	"github.com/spf13/cobra"
)

var (
	flagIncDisplay  int
	flagIncPages    int
	flagIncTop      int
	flagIncDelay    time.Duration
	flagIncOut      string
	flagIncPlanOnly bool
)

var incidentCmd = &cobra.Command{
	Use:   "incident <incident.json|yaml> [question...]",
	Short: "Find precedents relevant to a described workplace incident",
	Long: `incident reads a structured incident description in JSON or YAML (occurred_at, industry,
headcount, contracting, hazards), combines it with the free-text question,
searches the precedent list for every query of the resulting plan, ranks the
hits and saves incident.json and search_result.json under --out/<incident id>.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := incident.Load(args[0])
		if err != nil {
			return err
		}
		question := strings.Join(args[1:], " ")

		if flagIncPlanOnly {
			enc := json.NewEncoder(os.Stdout)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(incident.BuildQueries(in, question))
		}

		client, err := newClient(0)
		if err != nil {
			return err
		}
		s := &incident.Searcher{
			Transport: client,
			Throttle:  openlaw.NewLimiter(flagIncDelay),
			Display:   flagIncDisplay,
			Pages:     flagIncPages,
			TopN:      flagIncTop,
			OnQuery: func(q incident.QueryStats) {
				if q.Err != nil {
					warnf("query %q failed: %v", q.Query, q.Err)
					return
				}
				fmt.Printf("  %-60s %d hits\n", q.Query, q.Got)
			},
			OnDetailError: func(id string, err error) {
				warnf("detail %s: %v", id, err)
			},
		}
		res, err := s.Run(cmd.Context(), in, question)
		if err != nil {
			return err
		}
		dir, err := incident.Save(flagIncOut, in, res)
		if err != nil {
			return err
		}

		fmt.Printf("\nSaved %s\n", dir)
		for i, h := range res.Precedents {
			fmt.Printf("%2d. %s %s (%s) %s\n", i+1, h.Court, h.CaseNo, h.DecisionDate, h.CaseName)
		}
		if len(res.Precedents) == 0 {
			fmt.Println("No precedents found.")
		}
		return nil
	},
}

func init() {
	f := incidentCmd.Flags()
	f.IntVar(&flagIncDisplay, "display", 80, "results per list page")
	f.IntVar(&flagIncPages, "pages", 1, "list pages per query")
	f.IntVar(&flagIncTop, "top", 10, "number of ranked precedents to keep")
	f.DurationVar(&flagIncDelay, "delay", 800*time.Millisecond, "minimum spacing between API requests")
	f.StringVar(&flagIncOut, "out", "user_runs", "directory for run results")
	f.BoolVar(&flagIncPlanOnly, "plan-only", false, "print the query plan and exit without searching")
	rootCmd.AddCommand(incidentCmd)
}
