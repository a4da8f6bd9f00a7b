// Package mindmap builds a topic tree from text using word frequencies and
// fixed keyword categories. It makes no external calls.
package mindmap

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"studyrag/internal/domain"
)

const (
	maxCategories      = 5
	maxLeaves          = 4
	categoryBonus      = 3.0
	fallbackCandidates = 8
	fallbackKept       = 6
	minTokenLen        = 3
	maxTokenLen        = 25
	otherCategory      = "Other"
	emptyRootTitle     = "Overview"
	emptyChildTitle    = "No key topics found"
	lengthBonusDivisor = 10.0
	errorChildPrefix   = "mind map extraction failed: "
)

// ErrorTitle is the root title of a tree that reports an extraction failure.
const ErrorTitle = "Error"

var (
	urlPattern        = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	emailPattern      = regexp.MustCompile(`\S+@\S+\.\S+`)
	codeSpanPattern   = regexp.MustCompile("`[^`]*`")
	numberPattern     = regexp.MustCompile(`\b\d+(?:[.,]\d+)*\b`)
	punctPattern      = regexp.MustCompile(`[^\p{L}\p{N}\s-]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Extract builds a mind map from text. The root is the most important
// token; up to five category branches follow, each with up to four leaf
// topics. Extract never panics: any internal failure is returned as a tree
// rooted at ErrorTitle.
func Extract(text string) (root domain.MindMapNode) {
	defer func() {
		if r := recover(); r != nil {
			root = errorTree(fmt.Sprint(r))
		}
	}()
	return buildTree(text)
}

// FromChunks builds a mind map from stored chunk texts in order.
func FromChunks(chunks []domain.Chunk) domain.MindMapNode {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return Extract(strings.Join(texts, "\n\n"))
}

func errorTree(msg string) domain.MindMapNode {
	return domain.MindMapNode{
		Title:    ErrorTitle,
		Children: []domain.MindMapNode{leaf(errorChildPrefix + msg)},
	}
}

// IsError reports whether tree describes an extraction failure and returns
// the failure message. A text whose main topic is "error" is not a failure.
func IsError(tree domain.MindMapNode) (string, bool) {
	if tree.Title != ErrorTitle || len(tree.Children) != 1 {
		return "", false
	}
	msg, ok := strings.CutPrefix(tree.Children[0].Title, errorChildPrefix)
	if !ok {
		return "", false
	}
	return msg, true
}

func leaf(title string) domain.MindMapNode {
	return domain.MindMapNode{Title: title, Children: []domain.MindMapNode{}}
}

// buildTree is replaced in tests to exercise the recovery path.
var buildTree = build

type scored struct {
	token string
	score float64
	order int
}

func build(text string) domain.MindMapNode {
	tokens := tokenize(normalize(text))
	if len(tokens) == 0 {
		return domain.MindMapNode{Title: emptyRootTitle, Children: []domain.MindMapNode{leaf(emptyChildTitle)}}
	}

	ranked := rankTokens(tokens)
	root := domain.MindMapNode{Title: capitalize(ranked[0].token)}

	branches := categorize(ranked)
	if len(branches) == 0 {
		root.Children = fallback(ranked)
		return root
	}
	root.Children = branches
	return root
}

// normalize lowercases text and strips URLs, emails, code spans, standalone
// numbers and punctuation other than hyphens.
func normalize(text string) string {
	text = codeSpanPattern.ReplaceAllString(text, " ")
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, " ")
	text = emailPattern.ReplaceAllString(text, " ")
	text = numberPattern.ReplaceAllString(text, " ")
	text = punctPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// tokenize returns the surviving tokens in order, duplicates included.
func tokenize(text string) []string {
	var tokens []string
	for _, tok := range strings.Fields(text) {
		tok = strings.Trim(tok, "-")
		n := utf8.RuneCountInString(tok)
		if n < minTokenLen || n > maxTokenLen || ignored(tok) {
			continue
		}
		if singular, ok := plurals[tok]; ok {
			tok = singular
			if ignored(tok) {
				continue
			}
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func ignored(tok string) bool {
	if _, ok := stopwords[tok]; ok {
		return true
	}
	_, ok := genericWords[tok]
	return ok
}

// rankTokens deduplicates tokens and orders them by importance: frequency,
// plus categoryBonus for category keywords, plus a length bonus of at most 1.
// Equal scores keep first-seen order.
func rankTokens(tokens []string) []scored {
	freq := make(map[string]int, len(tokens))
	var unique []string
	for _, tok := range tokens {
		if freq[tok] == 0 {
			unique = append(unique, tok)
		}
		freq[tok]++
	}

	ranked := make([]scored, len(unique))
	for i, tok := range unique {
		score := float64(freq[tok])
		if _, ok := categoryKeywords[tok]; ok {
			score += categoryBonus
		}
		score += min(float64(utf8.RuneCountInString(tok))/lengthBonusDivisor, 1)
		ranked[i] = scored{token: tok, score: score, order: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked
}

// categorize files ranked tokens under their first matching category and
// returns the top categories with their top tokens. It returns nil when no
// token matches a named category.
func categorize(ranked []scored) []domain.MindMapNode {
	type bucket struct {
		name   string
		order  int
		total  float64
		tokens []scored
	}

	buckets := make([]*bucket, len(categories)+1)
	for i, c := range categories {
		buckets[i] = &bucket{name: c.name, order: i}
	}
	other := &bucket{name: otherCategory, order: len(categories)}
	buckets[len(categories)] = other

	matched := false
	for _, s := range ranked {
		b := other
		for i, c := range categories {
			if contains(c.keywords, s.token) {
				b = buckets[i]
				matched = true
				break
			}
		}
		b.total += s.score
		b.tokens = append(b.tokens, s)
	}
	if !matched {
		return nil
	}

	var kept []*bucket
	for _, b := range buckets {
		if len(b.tokens) > 0 {
			kept = append(kept, b)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].total > kept[j].total })
	if len(kept) > maxCategories {
		kept = kept[:maxCategories]
	}

	nodes := make([]domain.MindMapNode, 0, len(kept))
	for _, b := range kept {
		n := domain.MindMapNode{Title: b.name}
		for i, s := range b.tokens {
			if i == maxLeaves {
				break
			}
			n.Children = append(n.Children, leaf(s.token))
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// fallback pairs the top tokens: token 2i becomes a branch with token 2i+1
// as its only child.
func fallback(ranked []scored) []domain.MindMapNode {
	top := ranked[:min(len(ranked), fallbackCandidates)]
	top = top[:min(len(top), fallbackKept)]

	var nodes []domain.MindMapNode
	for i := 0; i < len(top); i += 2 {
		n := leaf(top[i].token)
		if i+1 < len(top) {
			n.Children = []domain.MindMapNode{leaf(top[i+1].token)}
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
