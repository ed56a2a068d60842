package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"safeon/internal/openlaw"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const (
	envOC      = "OPENLAW_OC"
	envBaseURL = "OPENLAW_BASE_URL"
)

// loadConfig applies the dotenv file, then fills unset flags from the
// environment. Variables already in the environment win over the file.
func loadConfig(cmd *cobra.Command) error {
	if flagEnvFile != "" {
		if err := godotenv.Load(flagEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", flagEnvFile, err)
		}
	}
	if !cmd.Flags().Changed("oc") {
		flagOC = os.Getenv(envOC)
	}
	if !cmd.Flags().Changed("base-url") {
		if v := os.Getenv(envBaseURL); v != "" {
			flagBaseURL = v
		}
	}
	return nil
}

// metricsRegistry collects client metrics when --metrics-out is set.
var metricsRegistry *prometheus.Registry

// newClient builds the open law transport. A missing key is the one fatal
// configuration error for network commands.
func newClient(retries int) (*openlaw.Client, error) {
	cfg := openlaw.Config{
		OC:      flagOC,
		BaseURL: flagBaseURL,
		Timeout: flagTimeout,
		Retries: retries,
	}
	if flagMetricsOut != "" && metricsRegistry == nil {
		metricsRegistry = prometheus.NewRegistry()
		cfg.Metrics = openlaw.NewMetrics(metricsRegistry)
	}
	c, err := openlaw.New(cfg)
	if errors.Is(err, openlaw.ErrMissingOC) {
		return nil, fmt.Errorf("%w: pass --oc or set %s (a .env file works too)", err, envOC)
	}
	return c, err
}

// writeMetrics dumps the collected metrics in the textfile collector format.
func writeMetrics() error {
	if flagMetricsOut == "" || metricsRegistry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(flagMetricsOut, metricsRegistry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// dbPath resolves --db, defaulting to ./.safeon/index.db.
func dbPath() (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, ".safeon", "index.db"), nil
}

// existingDBPath is dbPath for commands that only read the index.
func existingDBPath() (string, error) {
	p, err := dbPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return "", fmt.Errorf("index not found at %s\nRun 'safeon index <docs.jsonl>' first to build the index", p)
	}
	return p, nil
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}
