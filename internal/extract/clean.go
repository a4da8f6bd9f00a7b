package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}\x{2000}-\x{200B}\x{3000}]+`)
	spaceAroundEOL  = regexp.MustCompile(` *\n *`)
	hyphenatedEOL   = regexp.MustCompile(`(\p{L})-\n(\p{Ll})`)
	brokenSentence  = regexp.MustCompile(`(\p{Ll})\n(\p{Lu})`)
	continuedLine   = regexp.MustCompile(`([\p{Ll},;])\n(\p{Ll})`)
	bareLineNumber  = regexp.MustCompile(`(?m)^\d{1,4}(?:\n|$)`)
	missingSpace    = regexp.MustCompile(`(\p{Ll}[.!?])(\p{Lu})`)
	extraSpace      = regexp.MustCompile(`([.!?]) {2,}`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes extracted text: folds compatibility glyphs (ligatures,
// full-width forms), collapses whitespace runs, rejoins sentences and words
// broken across line ends, drops lines holding only a page or line number and
// normalizes spacing after sentence-ending punctuation.
// Paragraph breaks (blank lines) are preserved.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	s := norm.NFKC.String(text)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = spaceAroundEOL.ReplaceAllString(s, "\n")

	s = bareLineNumber.ReplaceAllString(s, "")
	s = hyphenatedEOL.ReplaceAllString(s, "$1$2")
	s = brokenSentence.ReplaceAllString(s, "$1 $2")
	s = continuedLine.ReplaceAllString(s, "$1 $2")

	s = missingSpace.ReplaceAllString(s, "$1 $2")
	s = extraSpace.ReplaceAllString(s, "$1 ")
	s = blankLines.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}
