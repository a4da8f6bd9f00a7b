package extract

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"studyrag/internal/domain"
)

const (
	// sameLineTolerance is the vertical distance within which two fragments sit on one line.
	sameLineTolerance = 10.0
	// paragraphGap is the vertical distance between lines that starts a new paragraph.
	paragraphGap = 30.0
)

// Fragment is a run of text placed on a page at (X, Y). Y grows upwards, as in
// PDF user space, so larger Y is closer to the top of the page.
type Fragment struct {
	Text string
	Page int
	X    float64
	Y    float64
}

// line is a group of fragments sharing a baseline, ordered left to right.
type line struct {
	page  int
	y     float64
	frags []Fragment
}

// orderFragments sorts fragments into reading order: page ascending, top of the
// page first, and left to right within a line. Fragments whose Y differs by at
// most sameLineTolerance from the first fragment of a line belong to that line.
func orderFragments(frags []Fragment) []line {
	if len(frags) == 0 {
		return nil
	}

	sorted := make([]Fragment, len(frags))
	copy(sorted, frags)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Page != sorted[j].Page {
			return sorted[i].Page < sorted[j].Page
		}
		return sorted[i].Y > sorted[j].Y
	})

	var lines []line
	for _, f := range sorted {
		if n := len(lines); n > 0 {
			last := &lines[n-1]
			if last.page == f.Page && math.Abs(last.y-f.Y) <= sameLineTolerance {
				last.frags = append(last.frags, f)
				continue
			}
		}
		lines = append(lines, line{page: f.Page, y: f.Y, frags: []Fragment{f}})
	}

	for i := range lines {
		sort.SliceStable(lines[i].frags, func(a, b int) bool {
			return lines[i].frags[a].X < lines[i].frags[b].X
		})
	}
	return lines
}

// mergeParagraphs joins ordered lines into paragraphs. A page change or a
// vertical gap above paragraphGap starts a new paragraph; other line breaks are
// kept as single newlines for Clean to resolve.
func mergeParagraphs(lines []line) []domain.Paragraph {
	var paragraphs []domain.Paragraph
	var current strings.Builder
	currentPage := 0
	prevY := 0.0
	open := false

	flush := func() {
		if text := Clean(current.String()); text != "" {
			paragraphs = append(paragraphs, domain.Paragraph{Text: text, Page: currentPage})
		}
		current.Reset()
		open = false
	}

	for _, l := range lines {
		text := joinLine(l.frags)
		if strings.TrimSpace(text) == "" {
			continue
		}

		if open && (l.page != currentPage || prevY-l.y > paragraphGap) {
			flush()
		}
		if open {
			current.WriteByte('\n')
		} else {
			currentPage = l.page
			open = true
		}
		current.WriteString(text)
		prevY = l.y
	}
	if open {
		flush()
	}
	return paragraphs
}

// joinLine concatenates the fragments of one line. A space is inserted between
// fragments unless one already sits at the boundary or the next fragment opens
// with closing punctuation.
func joinLine(frags []Fragment) string {
	var b strings.Builder
	for i, f := range frags {
		s := f.Text
		if s == "" {
			continue
		}
		if i > 0 && b.Len() > 0 && needsSpace(b.String(), s) {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	return strings.TrimSpace(b.String())
}

func needsSpace(prev, next string) bool {
	last, _ := utf8.DecodeLastRuneInString(prev)
	first, _ := utf8.DecodeRuneInString(next)
	if unicode.IsSpace(last) || unicode.IsSpace(first) {
		return false
	}
	if strings.ContainsRune(".,;:!?)]}%", first) {
		return false
	}
	if strings.ContainsRune("([{", last) {
		return false
	}
	return true
}
