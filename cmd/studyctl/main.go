// Package main implements studyctl, a command-line interface that runs the
// ingestion and retrieval services directly against the local database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"studyrag/internal/app"
	"studyrag/internal/config"
)

var (
	// outputJSON switches every command to JSON output
	outputJSON bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "studyctl",
	Short: "Ingest study documents and query them from the command line",
	Long: `studyctl runs the same ingestion and retrieval services as the API server,
reading configuration from the environment and .env.

Examples:
  # Ingest a PDF, or every supported file under a directory
  studyctl ingest notes/unit1.pdf
  studyctl ingest notes/

  # Ask a question
  studyctl ask "What is normalization?" --top-k 5

  # Build a mind map of one document
  studyctl mindmap --document unit1_1718000000000_4c1d9e --json`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
}

// withApp loads configuration, builds the services and runs fn. Logs go to
// stderr so command output stays parseable.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(app.NewLogger(cfg, cmd.ErrOrStderr()))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	return fn(ctx, a)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
