package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"studyrag/internal/contextutil"
	"studyrag/internal/domain"
	"studyrag/internal/storage"
)

// qdrantClient is the subset of *qdrant.Client used by QdrantStore.
type qdrantClient interface {
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	DeleteCollection(ctx context.Context, collectionName string) error
	Close() error
}

// QdrantStore implements Store with a Qdrant collection as the ANN index.
// Chunk text and metadata stay in SQLite, which remains the system of record;
// Qdrant holds the vectors plus document_id and chunk_index payload fields.
type QdrantStore struct {
	client     qdrantClient
	collection string
	chunks     storage.ChunkStore

	writeMu sync.Mutex
	dimMu   sync.Mutex
	dim     int
}

// parseQdrantURL derives the gRPC host and port from an HTTP URL such as
// "http://localhost:6333". The gRPC port is the HTTP port + 1.
func parseQdrantURL(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// NewQdrantStore creates a Qdrant-backed store. The collection is created
// lazily, sized by the first inserted batch.
func NewQdrantStore(urlStr, collection string, chunks storage.ChunkStore) (*QdrantStore, error) {
	host, port, err := parseQdrantURL(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return newQdrantStore(client, collection, chunks), nil
}

func newQdrantStore(client qdrantClient, collection string, chunks storage.ChunkStore) *QdrantStore {
	return &QdrantStore{
		client:     client,
		collection: collection,
		chunks:     chunks,
	}
}

// Close closes the Qdrant connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Clear deletes the chunks of documentID, or drops the whole collection.
func (s *QdrantStore) Clear(ctx context.Context, documentID string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return 0, err
	}

	if exists {
		if documentID == "" {
			if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
				return 0, fmt.Errorf("%w: failed to delete collection: %v", domain.ErrStore, err)
			}
			s.setDim(0)
		} else {
			_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
				CollectionName: s.collection,
				Wait:           qdrant.PtrOf(true),
				Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentID)),
			})
			if err != nil {
				return 0, fmt.Errorf("%w: failed to delete points: %v", domain.ErrStore, err)
			}
		}
	}

	n, err := s.chunks.Delete(ctx, documentID)
	if err != nil {
		return 0, err
	}
	logger.InfoContext(ctx, "cleared chunks", "collection", s.collection, "document_id", documentID, "count", n)
	return n, nil
}

// InsertBatch upserts vectors into Qdrant, then writes the chunks to SQLite
// in one transaction. If the SQLite write fails the upserted points are
// deleted again.
func (s *QdrantStore) InsertBatch(ctx context.Context, chunks []domain.Chunk, documentID string) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(chunks) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	storedDim, err := s.collectionDim(ctx)
	if err != nil {
		return 0, err
	}
	prepared, err := prepareBatch(chunks, documentID, storedDim)
	if err != nil {
		return 0, err
	}
	for i, c := range prepared {
		if _, err := uuid.Parse(c.ID); err != nil {
			return 0, &domain.ValidationError{Field: "id", Message: fmt.Sprintf("chunk %d id %q is not a UUID", i, c.ID)}
		}
	}

	dim := len(prepared[0].Embedding)
	if err := s.EnsureCollection(ctx, dim); err != nil {
		return 0, err
	}

	points := make([]*qdrant.PointStruct, 0, len(prepared))
	ids := make([]string, 0, len(prepared))
	for _, c := range prepared {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(c.ID),
			Vectors: qdrant.NewVectors(c.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": c.DocumentID,
				"chunk_index": c.Index,
			}),
		})
		ids = append(ids, c.ID)
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert points", "collection", s.collection, "count", len(points), "error", err)
		return 0, fmt.Errorf("%w: failed to upsert points: %v", domain.ErrStore, err)
	}

	if err := s.chunks.InsertBatch(ctx, prepared); err != nil {
		if delErr := s.deletePoints(context.WithoutCancel(ctx), ids); delErr != nil {
			logger.ErrorContext(ctx, "failed to remove points after chunk insert failure",
				"collection", s.collection, "count", len(ids), "error", delErr)
		}
		return 0, err
	}

	logger.InfoContext(ctx, "upserted points", "collection", s.collection, "document_id", documentID, "count", len(points))
	return len(prepared), nil
}

// Search queries Qdrant for the nearest points and loads their chunks from SQLite.
func (s *QdrantStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]domain.SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := ValidateVector(query); err != nil {
		logger.WarnContext(ctx, "ignoring malformed query vector", "error", err)
		return []domain.SearchResult{}, nil
	}

	dim, err := s.collectionDim(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []domain.SearchResult{}, nil
	}
	if len(query) != dim {
		logger.WarnContext(ctx, "query dimension does not match collection",
			"query_dimension", len(query), "collection_dimension", dim)
		return []domain.SearchResult{}, nil
	}

	limit := opts.TopK
	if limit <= 0 {
		n, err := s.chunks.Count(ctx, opts.DocumentID)
		if err != nil {
			return nil, err
		}
		limit = n
	}
	if limit == 0 {
		return []domain.SearchResult{}, nil
	}

	var threshold *float32
	if opts.Threshold != nil {
		t := float32(*opts.Threshold)
		threshold = &t
	}
	scoredPoints, err := s.query(ctx, query, opts.DocumentID, limit, threshold)
	if err != nil {
		return nil, err
	}

	// Qdrant cuts at limit before insertion order is known, so points tied
	// with the last score may have been left out. Fetch every point scoring
	// at least the boundary and let rank apply the cut.
	if opts.TopK > 0 && len(scoredPoints) == limit {
		total, err := s.chunks.Count(ctx, opts.DocumentID)
		if err != nil {
			return nil, err
		}
		if total > limit {
			boundary := scoredPoints[len(scoredPoints)-1].Score
			if scoredPoints, err = s.query(ctx, query, opts.DocumentID, total, &boundary); err != nil {
				return nil, err
			}
		}
	}

	ids := make([]string, 0, len(scoredPoints))
	scores := make(map[string]float64, len(scoredPoints))
	for _, p := range scoredPoints {
		if p.Id == nil {
			continue
		}
		id := p.Id.GetUuid()
		ids = append(ids, id)
		scores[id] = float64(p.Score)
	}

	chunks, err := s.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, 0, len(ids))
	for _, id := range ids {
		c, ok := chunks[id]
		if !ok {
			logger.WarnContext(ctx, "point has no stored chunk", "point_id", id)
			continue
		}
		results = append(results, domain.SearchResult{Chunk: c, Score: scores[id]})
	}

	// Restore insertion order before the stable rank so ties resolve as in SQLiteStore.
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Chunk, results[j].Chunk
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.Index < b.Index
	})

	logger.DebugContext(ctx, "search completed", "collection", s.collection, "limit", limit, "results", len(results))
	return rank(results, opts), nil
}

func (s *QdrantStore) query(ctx context.Context, vector []float32, documentID string, limit int, threshold *float32) ([]*qdrant.ScoredPoint, error) {
	ulimit := uint64(limit)
	req := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &ulimit,
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: threshold,
	}
	if documentID != "" {
		req.Filter = documentFilter(documentID)
	}

	points, err := s.client.Query(ctx, req)
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to search points",
			"collection", s.collection, "limit", limit, "error", err)
		return nil, fmt.Errorf("%w: failed to search points: %v", domain.ErrStore, err)
	}
	return points, nil
}

// Count returns the number of stored chunks in scope.
func (s *QdrantStore) Count(ctx context.Context, documentID string) (int, error) {
	return s.chunks.Count(ctx, documentID)
}

// ListChunks returns stored chunks in insertion order.
func (s *QdrantStore) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	chunks, err := s.chunks.List(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	return chunks, nil
}

func (s *QdrantStore) deletePoints(ctx context.Context, ids []string) error {
	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, qdrant.NewID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(qdrantIDs...),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentID)},
	}
}

// CollectionExists checks if the collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check collection existence: %v", domain.ErrStore, err)
	}
	return exists, nil
}

func (s *QdrantStore) setDim(dim int) {
	s.dimMu.Lock()
	s.dim = dim
	s.dimMu.Unlock()
}

// collectionDim returns the collection's vector size, or 0 if the collection
// does not exist yet.
func (s *QdrantStore) collectionDim(ctx context.Context) (int, error) {
	s.dimMu.Lock()
	dim := s.dim
	s.dimMu.Unlock()
	if dim > 0 {
		return dim, nil
	}

	exists, err := s.CollectionExists(ctx)
	if err != nil || !exists {
		return 0, err
	}
	info, err := s.GetCollectionInfo(ctx)
	if err != nil {
		return 0, err
	}
	s.setDim(info.VectorSize)
	return info.VectorSize, nil
}

// EnsureCollection ensures the collection exists with the specified vector size.
// If the collection exists, validates that the vector size matches.
// If it doesn't exist, creates it with cosine distance.
func (s *QdrantStore) EnsureCollection(ctx context.Context, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return err
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", s.collection, "vector_size", vectorSize)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("%w: failed to create collection: %v", domain.ErrStore, err)
		}
		s.setDim(vectorSize)
		return nil
	}

	info, err := s.GetCollectionInfo(ctx)
	if err != nil {
		return err
	}
	if info.VectorSize == 0 {
		return fmt.Errorf("%w: could not determine collection vector size", domain.ErrStore)
	}
	if info.VectorSize != vectorSize {
		return &domain.ValidationError{
			Field:   "embedding",
			Message: fmt.Sprintf("collection vector size mismatch: expected %d, got %d", vectorSize, info.VectorSize),
		}
	}
	s.setDim(vectorSize)
	return nil
}

// CollectionInfo contains information about a Qdrant collection.
type CollectionInfo struct {
	VectorSize  int
	PointsCount int
	Status      string
}

// GetCollectionInfo returns information about the collection including point count.
func (s *QdrantStore) GetCollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get collection info: %v", domain.ErrStore, err)
	}

	var vectorSize int
	if config := info.Config; config != nil && config.Params != nil {
		if vectorsConfig := config.Params.GetVectorsConfig(); vectorsConfig != nil {
			if params := vectorsConfig.GetParams(); params != nil {
				vectorSize = int(params.Size)
			}
		}
	}

	var pointsCount int
	if info.PointsCount != nil {
		pointsCount = int(*info.PointsCount)
	}

	status := "unknown"
	if info.Status != 0 {
		status = info.Status.String()
	}

	return &CollectionInfo{
		VectorSize:  vectorSize,
		PointsCount: pointsCount,
		Status:      status,
	}, nil
}
