package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// ChunkerVersion is the version identifier for the chunker implementation.
// Update this when chunking logic changes significantly.
const ChunkerVersion = "v2.0"

// IngestionStats summarises the current contents of the index.
type IngestionStats struct {
	// Documents is the number of registered documents.
	Documents int `json:"documents"`
	// DocsWith0Chunks counts registered documents with no stored chunks.
	DocsWith0Chunks int `json:"docs_with_0_chunks"`
	// Chunks is the number of stored chunks.
	Chunks int `json:"chunks"`
	// ChunkWordStats describes the word count per stored chunk.
	ChunkWordStats ChunkWordStats `json:"chunk_word_stats"`
	// SectionLevels counts chunks per section level ("none" when untagged).
	SectionLevels map[string]int `json:"section_levels"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// ChunkWordStats contains statistics about word counts in chunks.
type ChunkWordStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// Stats computes ingestion statistics from the registry and the store.
func (p *Pipeline) Stats(ctx context.Context) (*IngestionStats, error) {
	docs, err := p.documents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	chunks, err := p.store.ListChunks(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	stats := &IngestionStats{
		Documents:      len(docs),
		Chunks:         len(chunks),
		SectionLevels:  make(map[string]int),
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   p.IndexVersion(),
	}

	perDoc := make(map[string]int, len(docs))
	wordCounts := make([]int, 0, len(chunks))
	for _, c := range chunks {
		perDoc[c.DocumentID]++
		wordCounts = append(wordCounts, wordCount(c.Text))
		level := string(c.SectionLevel)
		if level == "" {
			level = "none"
		}
		stats.SectionLevels[level]++
	}
	for _, d := range docs {
		if perDoc[d.ID] == 0 {
			stats.DocsWith0Chunks++
		}
	}
	stats.ChunkWordStats = computeWordStats(wordCounts)

	return stats, nil
}

// IndexVersion hashes the chunker version, its thresholds and the embedding
// model name. Chunks stored under a different index version should be
// re-ingested.
func (p *Pipeline) IndexVersion() string {
	o := p.chunker.opts
	input := fmt.Sprintf("%s|%s|minWords=%d|maxWords=%d|oversizeWords=%d",
		ChunkerVersion, p.opts.EmbeddingModel, o.MinWords, o.MaxWords, o.OversizeWords)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// computeWordStats computes min, max, mean, and p95 from word counts.
func computeWordStats(counts []int) ChunkWordStats {
	if len(counts) == 0 {
		return ChunkWordStats{}
	}

	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Ints(sorted)

	sum := 0
	for _, n := range sorted {
		sum += n
	}
	mean := float64(sum) / float64(len(sorted))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return ChunkWordStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}
