package extract

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"

	"studyrag/internal/domain"
)

// pdfDocument is the parsed form of a PDF before quality checks.
type pdfDocument struct {
	pageCount int
	fragments []Fragment
}

// openPDF parses the document and collects positioned text runs for every
// page. The pdf package panics on some malformed inputs; those panics are
// reported as ErrUnreadable.
func openPDF(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader = nil
			err = fmt.Errorf("%w: %v", domain.ErrUnreadable, r)
		}
	}()

	reader, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadable, err)
	}
	return reader, nil
}

func readFragments(reader *pdf.Reader) (doc pdfDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrUnreadable, r)
		}
	}()

	doc.pageCount = reader.NumPage()
	if doc.pageCount == 0 {
		return doc, fmt.Errorf("%w: document has no pages", domain.ErrUnreadable)
	}
	for i := 1; i <= doc.pageCount; i++ {
		doc.fragments = append(doc.fragments, pageFragments(reader, i)...)
	}
	return doc, nil
}

// pageFragments returns the text runs of one page. Pages whose content stream
// cannot be decoded contribute nothing.
func pageFragments(reader *pdf.Reader, num int) (frags []Fragment) {
	defer func() {
		if r := recover(); r != nil {
			frags = nil
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return nil
	}
	return coalesceGlyphs(page.Content().Text, num)
}

// coalesceGlyphs merges the per-glyph text records produced by the pdf package
// into word-level fragments. Glyphs on the same baseline that follow each other
// closely are joined; a horizontal gap wider than a fraction of the font size
// becomes a space, and a wide jump starts a new fragment.
func coalesceGlyphs(glyphs []pdf.Text, page int) []Fragment {
	var frags []Fragment
	var b strings.Builder
	var start pdf.Text
	end := 0.0
	open := false

	flush := func() {
		if open && strings.TrimSpace(b.String()) != "" {
			frags = append(frags, Fragment{
				Text: strings.TrimSpace(b.String()),
				Page: page,
				X:    start.X,
				Y:    start.Y,
			})
		}
		b.Reset()
		open = false
	}

	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		size := g.FontSize
		if size <= 0 {
			size = 10
		}

		if open {
			gap := g.X - end
			sameBaseline := math.Abs(g.Y-start.Y) <= size*0.5
			switch {
			case !sameBaseline || gap > size*3 || gap < -size:
				flush()
			case gap > size*0.15 && !strings.HasSuffix(b.String(), " ") && g.S != " ":
				b.WriteByte(' ')
			}
		}

		if !open {
			start = g
			open = true
		}
		b.WriteString(g.S)
		end = g.X + glyphWidth(g, size)
	}
	flush()
	return frags
}

func glyphWidth(g pdf.Text, size float64) float64 {
	if g.W > 0 {
		return g.W
	}
	return size * 0.5 * float64(len([]rune(g.S)))
}

// plainText extracts text page by page without reordering. Each page's text
// runs are joined in content-stream order; pages without decodable runs fall
// back to the pdf package's plain text.
func plainText(reader *pdf.Reader, frags []Fragment) []domain.Paragraph {
	byPage := make(map[int][]Fragment)
	for _, f := range frags {
		byPage[f.Page] = append(byPage[f.Page], f)
	}

	var paragraphs []domain.Paragraph
	for i := 1; i <= reader.NumPage(); i++ {
		text := streamText(byPage[i])
		if text == "" {
			text = pagePlainText(reader, i)
		}
		for _, block := range splitBlocks(text) {
			paragraphs = append(paragraphs, domain.Paragraph{Text: block, Page: i})
		}
	}
	return paragraphs
}

// streamText joins fragments in the order they were drawn. Fragments on one
// baseline are separated by a space, a move to another line by a newline and
// a vertical jump wider than paragraphGap by a blank line.
func streamText(frags []Fragment) string {
	var b strings.Builder
	for i, f := range frags {
		if i > 0 {
			dy := math.Abs(frags[i-1].Y - f.Y)
			switch {
			case dy > paragraphGap:
				b.WriteString("\n\n")
			case dy > sameLineTolerance:
				b.WriteByte('\n')
			default:
				b.WriteByte(' ')
			}
		}
		b.WriteString(f.Text)
	}
	return b.String()
}

func pagePlainText(reader *pdf.Reader, num int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
