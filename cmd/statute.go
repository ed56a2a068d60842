package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"safeon/internal/openlaw"

	"github.com/spf13/cobra"
)

var (
	flagStatuteOut     string
	flagStatuteDisplay int
	flagStatuteDelay   time.Duration
)

var defaultStatutes = []string{
	"중대재해 처벌 등에 관한 법률",
	"중대재해 처벌 등에 관한 법률 시행령",
}

var unsafeFileChars = regexp.MustCompile(`[^가-힣A-Za-z0-9_-]+`)

var statuteCmd = &cobra.Command{
	Use:   "statute [name...]",
	Short: "Download statute bodies as raw JSON",
	Long: `statute searches each named statute, picks the best-matching hit and saves
its full body unchanged to --out/<name>_<lawId>.json. Without names it fetches
the Serious Accidents Punishment Act and its enforcement decree.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := args
		if len(names) == 0 {
			names = defaultStatutes
		}
		client, err := newClient(3)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(flagStatuteOut, 0o755); err != nil {
			return err
		}
		limiter := openlaw.NewLimiter(flagStatuteDelay)
		ctx := cmd.Context()

		for _, name := range names {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			laws, err := client.SearchLaws(ctx, name, flagStatuteDisplay, 1)
			if err != nil {
				return fmt.Errorf("search %q: %w", name, err)
			}
			law, ok := openlaw.PickBestMatch(laws, name)
			if !ok || law.ID == "" {
				return fmt.Errorf("no statute found for %q", name)
			}
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
			body, err := client.LawBody(ctx, law.ID)
			if err != nil {
				return fmt.Errorf("fetch %s (%s): %w", law.Name, law.ID, err)
			}
			path := filepath.Join(flagStatuteOut, statuteFileName(name, law.ID))
			if err := os.WriteFile(path, body, 0o644); err != nil {
				return err
			}
			fmt.Printf("%s -> %s (lawId %s, enforced %s)\n", name, path, law.ID, law.EnforceDate)
		}
		return nil
	},
}

func statuteFileName(name, id string) string {
	return unsafeFileChars.ReplaceAllString(name, "_") + "_" + id + ".json"
}

func init() {
	statuteCmd.Flags().StringVar(&flagStatuteOut, "out", "raw", "output directory")
	statuteCmd.Flags().IntVar(&flagStatuteDisplay, "display", 20, "search hits considered per statute")
	statuteCmd.Flags().DurationVar(&flagStatuteDelay, "delay", 800*time.Millisecond, "minimum spacing between API requests")
	rootCmd.AddCommand(statuteCmd)
}
