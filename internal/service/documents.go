package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ingester.go -package=mocks studyrag/internal/service Ingester
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_service.go -package=mocks studyrag/internal/service DocumentService

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"studyrag/internal/contextutil"
	"studyrag/internal/domain"
	"studyrag/internal/indexer"
	"studyrag/internal/mindmap"
	"studyrag/internal/rag"
	"studyrag/internal/storage"
	"studyrag/internal/vectorstore"
)

// DefaultMaxUploadBytes caps upload size when Options.MaxUploadBytes is zero.
const DefaultMaxUploadBytes = 20 << 20

// Ingester is the ingestion API used by the service layer.
// *indexer.Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, filename string, data []byte) (*indexer.IngestResult, error)
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	ClearAll(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*indexer.IngestionStats, error)
}

// UploadRequest carries an uploaded file.
type UploadRequest struct {
	Filename string
	Data     []byte
}

// MindMapRequest selects the text a mind map is built from. Text wins when
// set; otherwise the stored chunks of DocumentID (or of every document) are used.
type MindMapRequest struct {
	Text       string `json:"text,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// DocumentService is the boundary used by the HTTP handlers and the CLI.
type DocumentService interface {
	// Upload ingests a file and reports how many chunks were stored.
	Upload(ctx context.Context, req UploadRequest) (*indexer.IngestResult, error)
	// Ask answers a question from stored chunks.
	Ask(ctx context.Context, req rag.AskRequest) (rag.AskResponse, error)
	// MindMap builds a topic tree from text or stored chunks.
	MindMap(ctx context.Context, req MindMapRequest) (domain.MindMapNode, error)
	// ListDocuments returns registered documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	// DeleteDocument removes one document and its chunks.
	DeleteDocument(ctx context.Context, documentID string) (int, error)
	// Clear removes every document and chunk.
	Clear(ctx context.Context) (int, error)
	// Stats reports ingestion statistics.
	Stats(ctx context.Context) (*indexer.IngestionStats, error)
}

// Options configures the document service.
type Options struct {
	MaxUploadBytes int64
}

// documentService implements DocumentService.
type documentService struct {
	ingester  Ingester
	engine    rag.Engine
	store     vectorstore.Store
	documents storage.DocumentStore
	opts      Options
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(
	ingester Ingester,
	engine rag.Engine,
	store vectorstore.Store,
	documents storage.DocumentStore,
	opts Options,
) DocumentService {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &documentService{
		ingester:  ingester,
		engine:    engine,
		store:     store,
		documents: documents,
		opts:      opts,
	}
}

// Upload validates and ingests a file.
func (s *documentService) Upload(ctx context.Context, req UploadRequest) (*indexer.IngestResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	filename := filepath.Base(strings.TrimSpace(req.Filename))
	if filename == "." || filename == "/" {
		filename = ""
	}
	if filename == "" {
		logger.WarnContext(ctx, "upload without filename")
		return nil, &domain.ValidationError{Field: "file", Message: "filename is required"}
	}
	if int64(len(req.Data)) > s.opts.MaxUploadBytes {
		logger.WarnContext(ctx, "upload too large", "size", len(req.Data), "max_bytes", s.opts.MaxUploadBytes)
		return nil, &domain.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file exceeds %d bytes", s.opts.MaxUploadBytes),
		}
	}

	result, err := s.ingester.Ingest(ctx, filename, req.Data)
	if err != nil {
		logger.ErrorContext(ctx, "failed to ingest upload", "filename", filename, "size", len(req.Data), "error", err)
		return nil, WrapError(err, "failed to ingest "+filename)
	}

	logger.InfoContext(ctx, "upload processed successfully",
		"document_id", result.DocumentID,
		"chunk_count", result.ChunkCount,
		"reused", result.Reused,
	)
	return result, nil
}

// Ask answers a question.
func (s *documentService) Ask(ctx context.Context, req rag.AskRequest) (rag.AskResponse, error) {
	resp, err := s.engine.Ask(ctx, req)
	if err != nil {
		return rag.AskResponse{}, WrapError(err, "failed to answer question")
	}
	return resp, nil
}

// MindMap builds a mind map from request text or from stored chunks.
func (s *documentService) MindMap(ctx context.Context, req MindMapRequest) (domain.MindMapNode, error) {
	logger := contextutil.LoggerFromContext(ctx)

	text := req.Text
	if strings.TrimSpace(text) == "" {
		if req.DocumentID != "" {
			if _, err := s.documents.GetByID(ctx, req.DocumentID); err != nil {
				return domain.MindMapNode{}, WrapError(err, "failed to load document "+req.DocumentID)
			}
		}
		chunks, err := s.store.ListChunks(ctx, req.DocumentID)
		if err != nil {
			return domain.MindMapNode{}, WrapError(err, "failed to load chunks")
		}
		if len(chunks) == 0 {
			return domain.MindMapNode{}, domain.ErrNotReady
		}
		tree := mindmap.FromChunks(chunks)
		logTree(ctx, tree, len(chunks))
		return tree, nil
	}

	tree := mindmap.Extract(text)
	logTree(ctx, tree, 0)
	logger.DebugContext(ctx, "mind map built from request text", "text_length", len(text))
	return tree, nil
}

func logTree(ctx context.Context, tree domain.MindMapNode, chunks int) {
	logger := contextutil.LoggerFromContext(ctx)
	if msg, failed := mindmap.IsError(tree); failed {
		logger.WarnContext(ctx, "mind map extraction failed", "reason", msg)
		return
	}
	logger.InfoContext(ctx, "mind map built", "title", tree.Title, "branches", len(tree.Children), "chunks", chunks)
}

// ListDocuments lists registered documents.
func (s *documentService) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.documents.List(ctx)
	if err != nil {
		return nil, WrapError(err, "failed to list documents")
	}
	return docs, nil
}

// DeleteDocument removes a document.
func (s *documentService) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	n, err := s.ingester.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, WrapError(err, "failed to delete document")
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "document deleted", "document_id", documentID, "chunks_deleted", n)
	return n, nil
}

// Clear removes every document.
func (s *documentService) Clear(ctx context.Context) (int, error) {
	n, err := s.ingester.ClearAll(ctx)
	if err != nil {
		return 0, WrapError(err, "failed to clear store")
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "store cleared", "chunks_deleted", n)
	return n, nil
}

// Stats reports ingestion statistics.
func (s *documentService) Stats(ctx context.Context) (*indexer.IngestionStats, error) {
	stats, err := s.ingester.Stats(ctx)
	if err != nil {
		return nil, WrapError(err, "failed to compute stats")
	}
	return stats, nil
}
