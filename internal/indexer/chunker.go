package indexer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"studyrag/internal/domain"
)

const (
	// MinChunkWords is the floor below which a chunk is merged into its
	// predecessor or dropped.
	MinChunkWords = 40
	// MaxChunkWords bounds how many words paragraphs are packed into.
	MaxChunkWords = 400
	// OversizeParagraphWords is the size above which a single paragraph is
	// split at sentence boundaries.
	OversizeParagraphWords = 800
)

var (
	unitHeading      = regexp.MustCompile(`(?i)^unit\s+([ivxlcdm]+|\d+)\b`)
	chapterHeading   = regexp.MustCompile(`(?i)^chapter\s+\d+\b`)
	sectionHeading   = regexp.MustCompile(`(?i)^section\s+\d+(\.\d+)?\b`)
	numbered3Heading = regexp.MustCompile(`^\d+\.\d+\.\d+\.?\s+\p{Lu}`)
	numbered2Heading = regexp.MustCompile(`^\d+\.\d+\.?\s+\p{Lu}`)
	numbered1Heading = regexp.MustCompile(`^\d+\.\s+\p{Lu}`)
	sentenceBoundary = regexp.MustCompile(`([.!?]["')\]]?)\s+`)
)

const (
	maxHeadingWords   = 12
	maxNumberedWords  = 10
	maxTitleCaseWords = 8
)

// ChunkerOptions holds the size thresholds used by the Chunker.
type ChunkerOptions struct {
	MinWords      int
	MaxWords      int
	OversizeWords int
}

// DefaultChunkerOptions returns the standard thresholds.
func DefaultChunkerOptions() ChunkerOptions {
	return ChunkerOptions{
		MinWords:      MinChunkWords,
		MaxWords:      MaxChunkWords,
		OversizeWords: OversizeParagraphWords,
	}
}

// Chunker splits extracted paragraphs into heading-aware, size-bounded chunks.
type Chunker struct {
	opts ChunkerOptions
}

// NewChunker creates a new chunker. Zero option fields take their defaults.
func NewChunker(opts ChunkerOptions) *Chunker {
	def := DefaultChunkerOptions()
	if opts.MinWords <= 0 {
		opts.MinWords = def.MinWords
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = def.MaxWords
	}
	if opts.OversizeWords <= 0 {
		opts.OversizeWords = def.OversizeWords
	}
	return &Chunker{opts: opts}
}

// DetectHeading classifies a single line. It reports the section level and
// true when the line looks like a heading.
func DetectHeading(line string) (domain.SectionLevel, bool) {
	line = strings.TrimSpace(line)
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > maxHeadingWords {
		return domain.LevelNone, false
	}

	switch {
	case unitHeading.MatchString(line), chapterHeading.MatchString(line):
		return domain.LevelUnit, true
	case sectionHeading.MatchString(line):
		return domain.LevelTopic, true
	}

	numberedTitle := len(words) <= maxNumberedWords && !strings.HasSuffix(line, ".")
	switch {
	case numberedTitle && numbered3Heading.MatchString(line):
		return domain.LevelSubSubtopic, true
	case numberedTitle && numbered2Heading.MatchString(line):
		return domain.LevelSubtopic, true
	case numberedTitle && numbered1Heading.MatchString(line):
		return domain.LevelTopic, true
	}

	if isAllCaps(line) {
		return domain.LevelTopic, true
	}
	if isTitleCase(line, words) {
		return domain.LevelSubtopic, true
	}
	return domain.LevelNone, false
}

// isAllCaps reports whether a line of at least five characters contains
// letters and no lowercase letters.
func isAllCaps(line string) bool {
	if utf8.RuneCountInString(line) < 5 {
		return false
	}
	letters := 0
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 2
}

// isTitleCase reports whether a short line has at least 70% of its words
// starting with an uppercase letter.
func isTitleCase(line string, words []string) bool {
	if len(words) == 0 || len(words) > maxTitleCaseWords {
		return false
	}
	if last, _ := utf8.DecodeLastRuneInString(line); strings.ContainsRune(".,;:", last) {
		return false
	}
	title := 0
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			title++
		}
	}
	return float64(title)/float64(len(words)) >= 0.7
}

// unit is one heading or body block in reading order.
type unit struct {
	text    string
	page    int
	heading bool
	level   domain.SectionLevel
}

// splitUnits turns paragraphs into heading and body units. Explicit headings
// are kept as-is; other paragraphs are scanned line by line and split around
// any line that looks like a heading.
func splitUnits(paragraphs []domain.Paragraph) []unit {
	var units []unit
	for _, p := range paragraphs {
		if p.Heading {
			level := p.Level
			if level == domain.LevelNone {
				level = domain.LevelTopic
			}
			units = append(units, unit{text: strings.TrimSpace(p.Text), page: p.Page, heading: true, level: level})
			continue
		}

		var body []string
		flush := func() {
			if len(body) > 0 {
				units = append(units, unit{text: strings.Join(body, "\n"), page: p.Page})
				body = nil
			}
		}
		for _, l := range strings.Split(p.Text, "\n") {
			l = strings.TrimSpace(l)
			if l == "" {
				continue
			}
			if level, ok := DetectHeading(l); ok {
				flush()
				units = append(units, unit{text: l, page: p.Page, heading: true, level: level})
				continue
			}
			body = append(body, l)
		}
		flush()
	}
	return units
}

// ParagraphsFromText splits cleaned text into paragraphs on blank lines.
func ParagraphsFromText(text string) []domain.Paragraph {
	var paragraphs []domain.Paragraph
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			paragraphs = append(paragraphs, domain.Paragraph{Text: block, Page: 1})
		}
	}
	return paragraphs
}

// ChunkText chunks cleaned text that carries no page or heading structure.
func (c *Chunker) ChunkText(text, documentID string) []domain.Chunk {
	return c.Chunk(ParagraphsFromText(text), documentID)
}

// Chunk splits paragraphs into chunks for a document. Headings close the
// current chunk and become section metadata of the chunks that follow; they
// are not part of chunk text. Chunks under the word floor are merged into
// the previous chunk of the same section or dropped. If nothing survives,
// the text is packed again without heading metadata.
func (c *Chunker) Chunk(paragraphs []domain.Paragraph, documentID string) []domain.Chunk {
	units := splitUnits(paragraphs)

	chunks := c.pack(units, true)
	if len(chunks) == 0 {
		chunks = c.pack(units, false)
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].DocumentID = documentID
		chunks[i].ID = ChunkID(documentID, i)
	}
	return chunks
}

// ChunkID returns the stable identifier of the chunk at index within a document.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", documentID, index))).String()
}

// packer accumulates body text into chunks.
type packer struct {
	opts   ChunkerOptions
	chunks []domain.Chunk

	parts []string
	words int
	page  int

	title string
	level domain.SectionLevel
	// fresh is true until a chunk has been emitted for the current section.
	fresh bool
}

func (c *Chunker) pack(units []unit, useHeadings bool) []domain.Chunk {
	p := &packer{opts: c.opts, fresh: true}
	for _, u := range units {
		if u.heading && useHeadings {
			p.close()
			p.title = u.text
			p.level = u.level
			p.fresh = true
			continue
		}

		for _, piece := range c.splitOversize(u.text) {
			p.add(piece, u.page)
		}
	}
	p.close()
	return p.chunks
}

func (p *packer) add(text string, page int) {
	n := wordCount(text)
	if n == 0 {
		return
	}
	// A chunk under the floor keeps growing past MaxWords rather than
	// being closed and dropped.
	if p.words >= p.opts.MinWords && p.words+n > p.opts.MaxWords {
		p.close()
	}
	if len(p.parts) == 0 {
		p.page = page
	}
	p.parts = append(p.parts, text)
	p.words += n
}

// close emits the accumulated text as a chunk, applying the word floor.
func (p *packer) close() {
	if len(p.parts) == 0 {
		return
	}
	text := strings.Join(p.parts, "\n\n")
	words := p.words
	p.parts = nil
	p.words = 0

	if words < p.opts.MinWords {
		if !p.fresh && len(p.chunks) > 0 {
			prev := &p.chunks[len(p.chunks)-1]
			prev.Text += "\n\n" + text
		}
		return
	}

	p.chunks = append(p.chunks, domain.Chunk{
		Text:         text,
		SectionTitle: p.title,
		SectionLevel: p.level,
		PageNumber:   p.page,
	})
	p.fresh = false
}

// splitOversize returns text unchanged unless it exceeds the oversize
// threshold, in which case it is split at sentence boundaries into pieces
// of at most MaxWords words.
func (c *Chunker) splitOversize(text string) []string {
	if wordCount(text) <= c.opts.OversizeWords {
		return []string{text}
	}

	var pieces []string
	var current []string
	words := 0
	emit := func() {
		if len(current) > 0 {
			pieces = append(pieces, strings.Join(current, " "))
			current = nil
			words = 0
		}
	}

	for _, sentence := range splitSentences(text) {
		for _, part := range splitWords(sentence, c.opts.MaxWords) {
			n := wordCount(part)
			if words > 0 && words+n > c.opts.MaxWords {
				emit()
			}
			current = append(current, part)
			words += n
		}
	}
	emit()
	return pieces
}

// splitSentences breaks text after sentence-ending punctuation followed by
// whitespace.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	var sentences []string
	last := 0
	for _, loc := range sentenceBoundary.FindAllStringSubmatchIndex(text, -1) {
		end := loc[3]
		if s := strings.TrimSpace(text[last:end]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// splitWords cuts a run-on sentence into pieces of at most limit words.
func splitWords(sentence string, limit int) []string {
	words := strings.Fields(sentence)
	if len(words) <= limit {
		return []string{sentence}
	}
	var parts []string
	for len(words) > 0 {
		n := min(limit, len(words))
		parts = append(parts, strings.Join(words[:n], " "))
		words = words[n:]
	}
	return parts
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
