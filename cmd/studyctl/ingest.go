package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"studyrag/internal/app"
	"studyrag/internal/indexer"
	"studyrag/internal/service"
)

func init() {
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|directory>",
	Short: "Ingest a document or every supported file under a directory",
	Long: `Extract, chunk, embed and store a PDF, markdown or text file.

A directory is walked recursively; hidden files are skipped and a failing
file does not stop the others.

Examples:
  studyctl ingest unit1.pdf
  studyctl ingest ./notes --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return runIngest(ctx, cmd, a, args[0])
		})
	},
}

func runIngest(ctx context.Context, cmd *cobra.Command, a *app.App, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var results []indexer.IngestResult
	var ingestErr error
	if info.IsDir() {
		results, ingestErr = a.Pipeline.IngestPath(ctx, path)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		result, err := a.Service.Upload(ctx, service.UploadRequest{Filename: path, Data: data})
		if err != nil {
			return err
		}
		results = append(results, *result)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		if err := printJSON(out, results); err != nil {
			return err
		}
		return ingestErr
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT\tFILE\tCHUNKS\tMETHOD")
	for _, r := range results {
		method := r.Method
		if r.Reused {
			method += " (reused)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.DocumentID, r.Filename, r.ChunkCount, method)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return ingestErr
}
