package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"studyrag/internal/app"
	"studyrag/internal/rag"
)

var (
	askTopK      int
	askThreshold float64
	askDocument  string
	askDebug     bool
)

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().IntVar(&askTopK, "top-k", rag.DefaultTopK, "Number of passages to return (max 20)")
	askCmd.Flags().Float64Var(&askThreshold, "threshold", 0, "Minimum cosine similarity (only applied when set)")
	askCmd.Flags().StringVar(&askDocument, "document", "", "Restrict the search to one document ID")
	askCmd.Flags().BoolVar(&askDebug, "debug", false, "Include per-chunk scores")
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Retrieve the passages that best answer a question",
	Long: `Embed the question and print the most similar stored passages.

Examples:
  studyctl ask "What is a B-tree?"
  studyctl ask "Explain 3NF" --top-k 5 --threshold 0.3 --document dbms_1718000000000_4c1d9e`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := rag.AskRequest{
			Question:   strings.Join(args, " "),
			TopK:       askTopK,
			DocumentID: askDocument,
			Debug:      askDebug,
		}
		if cmd.Flags().Changed("threshold") {
			threshold := askThreshold
			req.Threshold = &threshold
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return runAsk(ctx, cmd, a, req)
		})
	},
}

func runAsk(ctx context.Context, cmd *cobra.Command, a *app.App, req rag.AskRequest) error {
	resp, err := a.Service.Ask(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		return printJSON(out, resp)
	}

	if len(resp.Sources) == 0 {
		fmt.Fprintln(out, "No passages matched.")
		return nil
	}
	for i, src := range resp.Sources {
		heading := src.SectionTitle
		if heading == "" {
			heading = "-"
		}
		fmt.Fprintf(out, "[%d] score=%.3f document=%s section=%s", i+1, src.Score, src.DocumentID, heading)
		if src.PageNumber > 0 {
			fmt.Fprintf(out, " page=%d", src.PageNumber)
		}
		fmt.Fprintf(out, "\n%s\n\n", src.Text)
	}
	return nil
}
