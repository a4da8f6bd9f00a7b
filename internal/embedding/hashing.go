package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashingDimension is the vector size of the hashing provider.
const DefaultHashingDimension = 256

// HashingProvider is a deterministic bag-of-words embedder. Each lowercase
// token is hashed into one of Dimension buckets with a hash-derived sign.
// It needs no model files and is used offline and in tests.
type HashingProvider struct {
	dimension int
}

// NewHashingProvider creates a hashing provider.
func NewHashingProvider(dimension int) *HashingProvider {
	if dimension <= 0 {
		dimension = DefaultHashingDimension
	}
	return &HashingProvider{dimension: dimension}
}

// HashingLoader returns a loader for the hashing provider.
func HashingLoader(dimension int) LoaderFunc {
	return func(context.Context) (Provider, error) {
		return NewHashingProvider(dimension), nil
	}
}

// EmbedDocuments embeds each text.
func (p *HashingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

// EmbedQuery embeds a single text.
func (p *HashingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

// Dimension returns the vector size.
func (p *HashingProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op.
func (p *HashingProvider) Close() error {
	return nil
}

func (p *HashingProvider) vector(text string) []float32 {
	vec := make([]float32, p.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dimension))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	return vec
}
