package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"studyrag/internal/app"
)

var clearDocument string

func init() {
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(documentsCmd)

	clearCmd.Flags().StringVar(&clearDocument, "document", "", "Delete only this document ID")
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete stored documents and chunks",
	Long: `Delete one document (--document) or everything.

Examples:
  studyctl clear --document dbms_1718000000000_4c1d9e
  studyctl clear`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			var n int
			var err error
			if clearDocument != "" {
				n, err = a.Service.DeleteDocument(ctx, clearDocument)
			} else {
				n, err = a.Service.Clear(ctx)
			}
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"document_id":    clearDocument,
					"chunks_deleted": n,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d chunks\n", n)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ingestion statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			stats, err := a.Service.Stats(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Documents:\t%d\n", stats.Documents)
			fmt.Fprintf(w, "Documents without chunks:\t%d\n", stats.DocsWith0Chunks)
			fmt.Fprintf(w, "Chunks:\t%d\n", stats.Chunks)
			fmt.Fprintf(w, "Words per chunk:\tmin %d, max %d, mean %.1f, p95 %d\n",
				stats.ChunkWordStats.Min, stats.ChunkWordStats.Max, stats.ChunkWordStats.Mean, stats.ChunkWordStats.P95)

			levels := make([]string, 0, len(stats.SectionLevels))
			for level := range stats.SectionLevels {
				levels = append(levels, level)
			}
			sort.Strings(levels)
			for _, level := range levels {
				fmt.Fprintf(w, "Section level %s:\t%d\n", level, stats.SectionLevels[level])
			}
			fmt.Fprintf(w, "Chunker version:\t%s\n", stats.ChunkerVersion)
			fmt.Fprintf(w, "Index version:\t%s\n", stats.IndexVersion)
			return w.Flush()
		})
	},
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List ingested documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			docs, err := a.Service.ListDocuments(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), docs)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFILE\tCHUNKS\tCREATED")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.ID, d.Filename, d.ChunkCount, d.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}
