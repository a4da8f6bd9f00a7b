// Package rag answers questions by ranking stored chunks against the
// embedded question.
package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks studyrag/internal/rag Engine

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"studyrag/internal/contextutil"
	"studyrag/internal/domain"
	"studyrag/internal/embedding"
	"studyrag/internal/vectorstore"
)

const (
	// DefaultTopK is used when a request does not set TopK.
	DefaultTopK = 3
	// MaxTopK caps TopK.
	MaxTopK = 20
	// DefaultPreviewRunes is the display length of a source passage.
	DefaultPreviewRunes = 500
)

// Engine answers questions from the vector store.
type Engine interface {
	// Ask embeds the question and returns the best matching passages.
	// It fails with domain.ErrNotReady when nothing has been ingested.
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
}

// Observer receives search outcomes. metrics.Collector implements it.
type Observer interface {
	ObserveSearch(results int, d time.Duration, err error)
}

// Options configures the engine.
type Options struct {
	// PreviewRunes truncates source text. Zero selects DefaultPreviewRunes,
	// a negative value disables truncation.
	PreviewRunes int
	Observer     Observer
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	embedder embedding.Embedder
	store    vectorstore.Store
	opts     Options
}

// NewEngine creates a new retrieval engine.
func NewEngine(embedder embedding.Embedder, store vectorstore.Store, opts Options) Engine {
	if opts.PreviewRunes == 0 {
		opts.PreviewRunes = DefaultPreviewRunes
	}
	return &ragEngine{
		embedder: embedder,
		store:    store,
		opts:     opts,
	}
}

// Ask answers a question from the stored chunks.
func (e *ragEngine) Ask(ctx context.Context, req AskRequest) (resp AskResponse, err error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()
	if e.opts.Observer != nil {
		defer func() { e.opts.Observer.ObserveSearch(len(resp.Sources), time.Since(start), err) }()
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return AskResponse{}, &domain.ValidationError{Field: "question", Message: "question is required"}
	}
	topK, err := effectiveTopK(req.TopK)
	if err != nil {
		return AskResponse{}, err
	}
	if req.Threshold != nil && (*req.Threshold < -1 || *req.Threshold > 1) {
		return AskResponse{}, &domain.ValidationError{Field: "threshold", Message: "threshold must be between -1 and 1"}
	}

	logger.InfoContext(ctx, "query started",
		"question_length", len(question),
		"top_k", topK,
		"document_id", req.DocumentID,
	)

	stored, err := e.store.Count(ctx, req.DocumentID)
	if err != nil {
		return AskResponse{}, fmt.Errorf("failed to count chunks: %w", err)
	}
	if stored == 0 {
		if req.DocumentID != "" {
			return AskResponse{}, fmt.Errorf("%w: document %q has no chunks", domain.ErrNotReady, req.DocumentID)
		}
		return AskResponse{}, domain.ErrNotReady
	}

	queryVector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed question", "error", err)
		return AskResponse{}, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := e.store.Search(ctx, queryVector, vectorstore.SearchOptions{
		TopK:       topK,
		Threshold:  req.Threshold,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search vector store", "error", err)
		return AskResponse{}, fmt.Errorf("failed to search: %w", err)
	}

	logger.InfoContext(ctx, "vector search completed", "results_count", len(results), "top_k", topK)
	if len(results) > 0 {
		topScores := make([]float64, 0, 3)
		for i := 0; i < len(results) && i < 3; i++ {
			topScores = append(topScores, results[i].Score)
		}
		logger.DebugContext(ctx, "top search results", "top_3_scores", topScores)
	}

	resp = AskResponse{Sources: make([]Source, 0, len(results))}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		text := preview(r.Chunk.Text, e.opts.PreviewRunes)
		texts = append(texts, text)
		resp.Sources = append(resp.Sources, Source{
			Text:         text,
			Score:        r.Score,
			ChunkID:      r.Chunk.ID,
			DocumentID:   r.Chunk.DocumentID,
			SectionTitle: r.Chunk.SectionTitle,
			SectionLevel: r.Chunk.SectionLevel,
			PageNumber:   r.Chunk.PageNumber,
		})
	}
	resp.Answer = strings.Join(texts, "\n\n")

	if req.Debug {
		resp.Debug = debugInfo(question, results, topK, stored, len(queryVector))
	}
	return resp, nil
}

func effectiveTopK(k int) (int, error) {
	switch {
	case k < 0:
		return 0, &domain.ValidationError{Field: "top_k", Message: "top_k must not be negative"}
	case k == 0:
		return DefaultTopK, nil
	case k > MaxTopK:
		return MaxTopK, nil
	}
	return k, nil
}

// preview truncates text to limit runes, appending "..." when cut.
func preview(text string, limit int) string {
	if limit < 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimRightFunc(string(runes[:limit]), func(r rune) bool { return r == ' ' || r == '\n' }) + "..."
}

func debugInfo(question string, results []domain.SearchResult, topK, stored, dim int) *DebugInfo {
	chunks := make([]RetrievedChunk, 0, len(results))
	for i, r := range results {
		chunks = append(chunks, RetrievedChunk{
			ChunkID:      r.Chunk.ID,
			DocumentID:   r.Chunk.DocumentID,
			SectionTitle: r.Chunk.SectionTitle,
			PageNumber:   r.Chunk.PageNumber,
			ScoreVector:  r.Score,
			ScoreLexical: lexicalScore(question, r.Chunk.Text, r.Chunk.SectionTitle),
			Text:         r.Chunk.Text,
			Rank:         i + 1,
		})
	}
	return &DebugInfo{
		RetrievedChunks:    chunks,
		TopK:               topK,
		StoredChunks:       stored,
		EmbeddingDimension: dim,
	}
}
