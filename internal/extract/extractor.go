// Package extract turns uploaded documents into cleaned, paragraph-structured
// text. PDFs are rebuilt from positioned text runs; markdown and plain text
// uploads are accepted as well.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"

	"studyrag/internal/contextutil"
	"studyrag/internal/domain"
)

const (
	// DefaultMinFileBytes is the smallest upload accepted.
	DefaultMinFileBytes = 100
	// DefaultMinFragments is the number of positioned text runs a PDF must
	// yield before layout reconstruction is trusted.
	DefaultMinFragments = 10
	// DefaultMinChars is the amount of cleaned text an extraction must yield.
	DefaultMinChars = 50
)

// Extraction methods reported in Result.Method.
const (
	MethodLayout   = "layout"
	MethodPlain    = "plain"
	MethodMarkdown = "markdown"
	MethodText     = "text"
)

var pdfMagic = []byte("%PDF-")

var blockSeparator = regexp.MustCompile(`\n[ \t]*\n`)

// Result is the outcome of extracting one document.
type Result struct {
	// Text is the cleaned document text with paragraphs separated by blank lines.
	Text string
	// Paragraphs are the cleaned paragraphs in reading order.
	Paragraphs []domain.Paragraph
	// Method names the extraction path that produced the text.
	Method string
	// PageCount is the number of pages for PDFs and 1 otherwise.
	PageCount int
}

// Options configures an Extractor. Zero values select the defaults.
type Options struct {
	MinFileBytes int
	MinFragments int
	MinChars     int
}

// Extractor converts raw upload bytes into text.
type Extractor struct {
	opts     Options
	markdown goldmark.Markdown
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	if opts.MinFileBytes <= 0 {
		opts.MinFileBytes = DefaultMinFileBytes
	}
	if opts.MinFragments <= 0 {
		opts.MinFragments = DefaultMinFragments
	}
	if opts.MinChars <= 0 {
		opts.MinChars = DefaultMinChars
	}
	return &Extractor{
		opts:     opts,
		markdown: newMarkdownParser(),
	}
}

// Kind is the detected format of an upload.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindMarkdown Kind = "markdown"
	KindText     Kind = "text"
	KindUnknown  Kind = "unknown"
)

// DetectKind decides how an upload is parsed. The PDF header is trusted over
// the file extension.
func DetectKind(data []byte, filename string) Kind {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.Contains(head, pdfMagic) {
		return KindPDF
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindUnknown
	case ".md", ".markdown":
		if utf8.Valid(data) {
			return KindMarkdown
		}
		return KindUnknown
	}
	if utf8.Valid(data) {
		return KindText
	}
	return KindUnknown
}

// Extract reads the upload and returns its cleaned text. Parsing stops with
// ErrTimeout when ctx is done first.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx).With(slog.String("filename", filename))

	if len(data) < e.opts.MinFileBytes {
		return nil, fmt.Errorf("%w: %d bytes", domain.ErrFileTooSmall, len(data))
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: extracting %s: %v", domain.ErrTimeout, filename, err)
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.extract(ctx, data, filename)
		done <- outcome{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		logger.WarnContext(ctx, "extraction abandoned", "error", ctx.Err())
		return nil, fmt.Errorf("%w: extracting %s: %v", domain.ErrTimeout, filename, ctx.Err())
	case out := <-done:
		if out.err != nil {
			logger.WarnContext(ctx, "extraction failed", "error", out.err)
			return nil, out.err
		}
		logger.DebugContext(ctx, "extracted document",
			"method", out.res.Method,
			"pages", out.res.PageCount,
			"paragraphs", len(out.res.Paragraphs),
			"chars", utf8.RuneCountInString(out.res.Text),
		)
		return out.res, nil
	}
}

func (e *Extractor) extract(ctx context.Context, data []byte, filename string) (*Result, error) {
	switch DetectKind(data, filename) {
	case KindPDF:
		return e.extractPDF(ctx, data)
	case KindMarkdown:
		return e.finish(markdownParagraphs(e.markdown, data), MethodMarkdown, 1)
	case KindText:
		return e.finish(textParagraphs(string(data)), MethodText, 1)
	default:
		return nil, fmt.Errorf("%w: unsupported or corrupt file %q", domain.ErrUnreadable, filename)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	reader, err := openPDF(data)
	if err != nil {
		return nil, err
	}

	doc, err := readFragments(reader)
	if err != nil {
		return nil, err
	}

	if len(doc.fragments) >= e.opts.MinFragments {
		paragraphs := mergeParagraphs(orderFragments(doc.fragments))
		if charCount(paragraphs) >= e.opts.MinChars {
			return e.finish(paragraphs, MethodLayout, doc.pageCount)
		}
	}

	logger.WarnContext(ctx, "layout extraction yielded too little text, using plain text",
		"fragments", len(doc.fragments),
		"pages", doc.pageCount,
	)
	return e.finish(plainText(reader, doc.fragments), MethodPlain, doc.pageCount)
}

// finish assembles the result and enforces the minimum text length.
func (e *Extractor) finish(paragraphs []domain.Paragraph, method string, pages int) (*Result, error) {
	if charCount(paragraphs) < e.opts.MinChars {
		return nil, fmt.Errorf("%w: fewer than %d characters extracted", domain.ErrNoText, e.opts.MinChars)
	}

	texts := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		texts[i] = p.Text
	}
	return &Result{
		Text:       strings.Join(texts, "\n\n"),
		Paragraphs: paragraphs,
		Method:     method,
		PageCount:  pages,
	}, nil
}

// textParagraphs splits plain text on blank lines and cleans each block.
func textParagraphs(s string) []domain.Paragraph {
	var paragraphs []domain.Paragraph
	for _, block := range splitBlocks(s) {
		paragraphs = append(paragraphs, domain.Paragraph{Text: block, Page: 1})
	}
	return paragraphs
}

func splitBlocks(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var blocks []string
	for _, raw := range blockSeparator.Split(s, -1) {
		if text := Clean(raw); text != "" {
			blocks = append(blocks, text)
		}
	}
	return blocks
}

func charCount(paragraphs []domain.Paragraph) int {
	n := 0
	for _, p := range paragraphs {
		n += utf8.RuneCountInString(p.Text)
	}
	return n
}
