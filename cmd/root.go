package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagDB         string
	flagOllama     string
	flagModel      string
	flagChatModel  string
	flagOC         string
	flagBaseURL    string
	flagTimeout    time.Duration
	flagEnvFile    string
	flagMetricsOut string
)

var rootCmd = &cobra.Command{
	Use:   "safeon",
	Short: "Serious-accident precedent corpus builder and research assistant",
	Long: `safeon collects Korean court decisions on the Serious Accidents Punishment Act
from the open law API (law.go.kr), builds JSON Lines corpora for vector indexing,
searches precedents for a described workplace incident, and answers questions
over a local sqlite-vec index.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return writeMetrics()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default ./.safeon/index.db)")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "http://localhost:11434", "ollama base URL")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "nomic-embed-text", "embedding model")
	rootCmd.PersistentFlags().StringVar(&flagChatModel, "chat-model", "qwen3:8b", "generative model for chat")
	rootCmd.PersistentFlags().StringVar(&flagOC, "oc", "", "open law API key (default $"+envOC+")")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "open law API base URL (default $"+envBaseURL+" or https://www.law.go.kr/DRF)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 25*time.Second, "HTTP timeout per open law request")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&flagMetricsOut, "metrics-out", "", "write open law request metrics to this file (Prometheus text format)")
}
