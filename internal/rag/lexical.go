package rag

import (
	"strings"
	"unicode"
)

const (
	lexicalLengthScale = 10.0
	maxLexicalScore    = 0.4
	headingMatchBonus  = 0.1
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"does": {}, "for": {}, "from": {}, "has": {}, "have": {}, "how": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "what": {}, "why": {},
	"with": {},
}

// lexicalScore measures how many question terms occur in a chunk, scaled by
// chunk length and clamped to [0, maxLexicalScore]. Terms found in the
// section title add headingMatchBonus each. It is reported in debug output
// only and never changes the vector ranking.
func lexicalScore(question, text, sectionTitle string) float64 {
	terms := filterStopwords(tokenize(question))
	if len(terms) == 0 {
		return 0
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	freq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freq[tok]++
	}

	var matches int
	for _, term := range terms {
		matches += freq[term]
	}
	score := float64(matches) / float64(1+len(tokens)) * lexicalLengthScale

	if titleTokens := tokenize(sectionTitle); len(titleTokens) > 0 {
		inTitle := make(map[string]struct{}, len(titleTokens))
		for _, tok := range titleTokens {
			inTitle[tok] = struct{}{}
		}
		for _, term := range terms {
			if _, ok := inTitle[term]; ok {
				score += headingMatchBonus
			}
		}
	}

	return min(max(score, 0), maxLexicalScore)
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func filterStopwords(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		if _, stop := lexicalStopwords[tok]; !stop {
			out = append(out, tok)
		}
	}
	return out
}
