package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyrag/internal/contextutil"
	"studyrag/internal/domain"
	"studyrag/internal/embedding"
	"studyrag/internal/extract"
	"studyrag/internal/scanner"
	"studyrag/internal/storage"
	"studyrag/internal/vectorstore"
)

// DefaultIngestTimeout bounds extraction plus embedding of one document.
const DefaultIngestTimeout = 2 * time.Minute

const (
	maxDocumentIDLength = 64
	documentNonceLength = 6
)

var unsafeIDChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	// Timeout bounds a single Ingest call. Zero means DefaultIngestTimeout.
	Timeout time.Duration
	// ReplaceOnIngest clears every stored document before a new one is
	// inserted. When false ingestion is additive and scoped by document ID.
	ReplaceOnIngest bool
	// EmbeddingModel is recorded in the index version.
	EmbeddingModel string
	Observer       Observer
}

// Pipeline turns uploaded files into stored, embedded chunks.
type Pipeline struct {
	extractor *extract.Extractor
	chunker   *Chunker
	embedder  embedding.Embedder
	store     vectorstore.Store
	documents storage.DocumentStore
	opts      PipelineOptions

	// replaceMu keeps a store-wide clear and the following insert together
	// when ReplaceOnIngest is set.
	replaceMu sync.Mutex
	now       func() time.Time
	nonce     func() string
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	extractor *extract.Extractor,
	chunker *Chunker,
	embedder embedding.Embedder,
	store vectorstore.Store,
	documents storage.DocumentStore,
	opts PipelineOptions,
) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultIngestTimeout
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if chunker == nil {
		chunker = NewChunker(DefaultChunkerOptions())
	}
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		documents: documents,
		opts:      opts,
		now:       time.Now,
		nonce:     randomNonce,
	}
}

func randomNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:documentNonceLength]
}

// DocumentID derives a document identifier from a filename, the ingestion
// time and a nonce: the lowercased file stem with unsafe characters replaced
// by "_", then "_" and the unix time in milliseconds, then "_" and the nonce.
// The nonce keeps uploads of the same filename within one millisecond apart.
func DocumentID(filename string, at time.Time, nonce string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = unsafeIDChars.ReplaceAllString(strings.ToLower(stem), "_")
	stem = strings.Trim(stem, "_")
	if stem == "" || stem == "." {
		stem = "document"
	}

	suffix := fmt.Sprintf("_%d", at.UnixMilli())
	if nonce = unsafeIDChars.ReplaceAllString(strings.ToLower(nonce), ""); nonce != "" {
		suffix += "_" + nonce
	}
	if len(stem)+len(suffix) > maxDocumentIDLength {
		stem = strings.TrimRight(stem[:maxDocumentIDLength-len(suffix)], "_")
	}
	return stem + suffix
}

// Ingest extracts, chunks, embeds and stores one file. If the same bytes
// were ingested before and their chunks are still stored, the existing
// document is returned without re-embedding.
func (p *Pipeline) Ingest(ctx context.Context, filename string, data []byte) (result *IngestResult, err error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()
	method := "none"
	defer func() {
		chunks := 0
		if result != nil {
			chunks = result.ChunkCount
		}
		p.opts.Observer.ObserveIngest(method, chunks, time.Since(start), err)
	}()

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if existing, ok := p.reusable(ctx, hash); ok {
		logger.InfoContext(ctx, "document already ingested", "document_id", existing.ID, "filename", filename)
		method = "reused"
		return &IngestResult{
			DocumentID: existing.ID,
			Filename:   existing.Filename,
			ChunkCount: existing.ChunkCount,
			CharCount:  existing.CharCount,
			Method:     method,
			Reused:     true,
			Duration:   time.Since(start),
		}, nil
	}

	extracted, err := p.extractor.Extract(ctx, data, filename)
	if err != nil {
		return nil, timeoutError(err)
	}
	method = extracted.Method

	docID := DocumentID(filename, p.now(), p.nonce())
	chunks := p.chunker.Chunk(extracted.Paragraphs, docID)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunk reached %d words", domain.ErrNoText, p.chunker.opts.MinWords)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, timeoutError(fmt.Errorf("failed to generate embeddings: %w", err))
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: embedding count mismatch: expected %d, got %d", domain.ErrEmbedding, len(chunks), len(vectors))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	inserted, err := p.write(ctx, docID, chunks)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:          docID,
		Filename:    filename,
		ContentHash: hash,
		ChunkCount:  inserted,
		CharCount:   len([]rune(extracted.Text)),
	}
	if err := p.documents.Upsert(ctx, doc); err != nil {
		if _, clearErr := p.store.Clear(context.WithoutCancel(ctx), docID); clearErr != nil {
			logger.ErrorContext(ctx, "failed to remove chunks of unregistered document", "document_id", docID, "error", clearErr)
		}
		return nil, fmt.Errorf("failed to register document: %w", err)
	}

	result = &IngestResult{
		DocumentID: docID,
		Filename:   filename,
		ChunkCount: inserted,
		CharCount:  doc.CharCount,
		PageCount:  extracted.PageCount,
		Method:     method,
		Duration:   time.Since(start),
	}
	logger.InfoContext(ctx, "ingested document",
		"document_id", docID,
		"filename", filename,
		"method", method,
		"chunk_count", inserted,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// write stores chunks, first clearing everything when ReplaceOnIngest is set.
func (p *Pipeline) write(ctx context.Context, docID string, chunks []domain.Chunk) (int, error) {
	if !p.opts.ReplaceOnIngest {
		return p.store.InsertBatch(ctx, chunks, docID)
	}

	p.replaceMu.Lock()
	defer p.replaceMu.Unlock()

	cleared, err := p.store.Clear(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to clear store: %w", err)
	}
	if _, err := p.documents.DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear documents: %w", err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "cleared store before ingest", "chunks_deleted", cleared)
	return p.store.InsertBatch(ctx, chunks, docID)
}

// reusable returns the registered document with the given content hash if
// its chunks are still present.
func (p *Pipeline) reusable(ctx context.Context, hash string) (*domain.Document, bool) {
	doc, err := p.documents.GetByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to look up document by hash", "error", err)
		}
		return nil, false
	}
	n, err := p.store.Count(ctx, doc.ID)
	if err != nil || n == 0 || n != doc.ChunkCount {
		return nil, false
	}
	return doc, true
}

// DeleteDocument removes a document's chunks and its registry entry.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, &domain.ValidationError{Field: "document_id", Message: "document_id is required"}
	}
	if _, err := p.documents.GetByID(ctx, documentID); err != nil {
		return 0, err
	}
	n, err := p.store.Clear(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if err := p.documents.Delete(ctx, documentID); err != nil {
		return n, err
	}
	return n, nil
}

// ClearAll removes every chunk and document.
func (p *Pipeline) ClearAll(ctx context.Context) (int, error) {
	p.replaceMu.Lock()
	defer p.replaceMu.Unlock()

	n, err := p.store.Clear(ctx, "")
	if err != nil {
		return 0, err
	}
	if _, err := p.documents.DeleteAll(ctx); err != nil {
		return n, fmt.Errorf("failed to clear documents: %w", err)
	}
	return n, nil
}

// IngestPath ingests a file, or every supported file below a directory.
// Errors for individual files are logged but don't stop the run.
func (p *Pipeline) IngestPath(ctx context.Context, root string) ([]IngestResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := scanner.Scan(ctx, root)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "starting ingestion", "total_files", len(files))

	var results []IngestResult
	var errorCount int
	for _, file := range files {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		data, err := os.ReadFile(file.AbsPath)
		if err != nil {
			errorCount++
			logger.ErrorContext(ctx, "failed to read file", "rel_path", file.RelPath, "error", err)
			continue
		}

		res, err := p.Ingest(ctx, file.RelPath, data)
		if err != nil {
			errorCount++
			logger.ErrorContext(ctx, "failed to ingest file", "rel_path", file.RelPath, "error", err)
			continue
		}
		results = append(results, *res)
	}

	logger.InfoContext(ctx, "ingestion completed", "total_files", len(files), "success", len(results), "errors", errorCount)

	if errorCount > 0 {
		return results, fmt.Errorf("ingestion completed with %d errors", errorCount)
	}
	return results, nil
}

// timeoutError maps context deadline errors to domain.ErrTimeout.
func timeoutError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return err
}
