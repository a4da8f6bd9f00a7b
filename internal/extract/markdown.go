package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"studyrag/internal/domain"
)

// newMarkdownParser returns the goldmark parser used for markdown uploads.
func newMarkdownParser() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.Table),
	)
}

// markdownParagraphs parses markdown source and returns its block-level text.
// ATX and setext headings become heading paragraphs with a section level
// derived from their depth; every other block becomes a body paragraph.
func markdownParagraphs(md goldmark.Markdown, content []byte) []domain.Paragraph {
	doc := md.Parser().Parse(text.NewReader(content))

	var paragraphs []domain.Paragraph
	add := func(p domain.Paragraph) {
		p.Text = Clean(p.Text)
		if p.Text != "" {
			p.Page = 1
			paragraphs = append(paragraphs, p)
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			add(domain.Paragraph{
				Text:    extractTextFromNode(node, content),
				Heading: true,
				Level:   headingLevel(node.Level),
			})
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph, *ast.TextBlock:
			add(domain.Paragraph{Text: extractTextFromNode(node, content)})
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock, *ast.CodeBlock:
			add(domain.Paragraph{Text: blockLines(node, content)})
			return ast.WalkSkipChildren, nil

		case *extast.Table:
			var rows []string
			for row := node.FirstChild(); row != nil; row = row.NextSibling() {
				rows = append(rows, extractTableRowText(row, content))
			}
			add(domain.Paragraph{Text: strings.Join(rows, "\n")})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return paragraphs
}

// headingLevel maps a markdown heading depth onto the section hierarchy.
func headingLevel(depth int) domain.SectionLevel {
	switch depth {
	case 1:
		return domain.LevelUnit
	case 2:
		return domain.LevelTopic
	case 3:
		return domain.LevelSubtopic
	default:
		return domain.LevelSubSubtopic
	}
}

// extractTextFromNode extracts the inline text of a node. Soft and hard line
// breaks become spaces.
func extractTextFromNode(n ast.Node, content []byte) string {
	var b strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

// extractTableRowText joins the cells of a table row with " | ".
func extractTableRowText(row ast.Node, content []byte) string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		cells = append(cells, extractTextFromNode(cell, content))
	}
	return strings.Join(cells, " | ")
}

func blockLines(n ast.Node, content []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(content))
	}
	return b.String()
}
