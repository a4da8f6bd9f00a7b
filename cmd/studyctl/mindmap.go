package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"studyrag/internal/app"
	"studyrag/internal/domain"
	"studyrag/internal/service"
)

var (
	mindmapDocument string
	mindmapFile     string
)

func init() {
	rootCmd.AddCommand(mindmapCmd)

	mindmapCmd.Flags().StringVar(&mindmapDocument, "document", "", "Build from the stored chunks of one document ID")
	mindmapCmd.Flags().StringVar(&mindmapFile, "file", "", "Build from a text file instead of stored chunks")
	mindmapCmd.MarkFlagsMutuallyExclusive("document", "file")
}

var mindmapCmd = &cobra.Command{
	Use:   "mindmap",
	Short: "Build a topic mind map",
	Long: `Build a keyword mind map from stored chunks or from a text file.

Examples:
  studyctl mindmap
  studyctl mindmap --document dbms_1718000000000_4c1d9e
  studyctl mindmap --file lecture.txt --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := service.MindMapRequest{DocumentID: mindmapDocument}
		if mindmapFile != "" {
			data, err := os.ReadFile(mindmapFile)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", mindmapFile, err)
			}
			req.Text = string(data)
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			tree, err := a.Service.MindMap(ctx, req)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmd.OutOrStdout(), tree)
			}
			printTree(cmd.OutOrStdout(), tree, 0)
			return nil
		})
	},
}

// printTree writes the tree as an indented outline.
func printTree(w io.Writer, node domain.MindMapNode, depth int) {
	fmt.Fprintf(w, "%s- %s\n", strings.Repeat("  ", depth), node.Title)
	for _, child := range node.Children {
		printTree(w, child, depth+1)
	}
}
