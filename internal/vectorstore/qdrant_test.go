package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/storage"
)

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		name     string
		urlStr   string
		wantErr  bool
		wantHost string
		wantPort int
	}{
		{name: "valid URL", urlStr: "http://localhost:6333", wantHost: "localhost", wantPort: 6334},
		{name: "URL with custom port", urlStr: "http://qdrant:9000", wantHost: "qdrant", wantPort: 9001},
		{name: "invalid URL", urlStr: "://invalid", wantErr: true},
		{name: "URL without port", urlStr: "http://localhost", wantHost: "localhost", wantPort: 6334},
		{name: "URL without hostname", urlStr: "http://:6333", wantHost: "localhost", wantPort: 6334},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := parseQdrantURL(tt.urlStr)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseQdrantURL() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseQdrantURL() error = %v", err)
			}
			if host != tt.wantHost {
				t.Errorf("parseQdrantURL() host = %v, want %v", host, tt.wantHost)
			}
			if port != tt.wantPort {
				t.Errorf("parseQdrantURL() port = %v, want %v", port, tt.wantPort)
			}
		})
	}
}

// fakeQdrant records calls and answers queries with preset scores.
type fakeQdrant struct {
	mu        sync.Mutex
	exists    bool
	size      uint64
	points    map[string]bool
	scores    map[string]float32
	upsertErr error
	queries   []*qdrant.QueryPoints
	deletes   int
	dropped   bool
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{points: map[string]bool{}, scores: map[string]float32{}}
}

func (f *fakeQdrant) Upsert(_ context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	for _, p := range req.Points {
		f.points[p.Id.GetUuid()] = true
	}
	return &qdrant.UpdateResult{}, nil
}

// Query returns points by descending score, applying the score threshold and
// limit. Points with equal scores come back in map order, as Qdrant gives no
// order among ties.
func (f *fakeQdrant) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, req)
	var out []*qdrant.ScoredPoint
	for id := range f.points {
		score := f.scores[id]
		if req.ScoreThreshold != nil && score < req.GetScoreThreshold() {
			continue
		}
		out = append(out, &qdrant.ScoredPoint{Id: qdrant.NewID(id), Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if req.Limit != nil && uint64(len(out)) > req.GetLimit() {
		out = out[:req.GetLimit()]
	}
	return out, nil
}

func (f *fakeQdrant) Delete(_ context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if ids := req.Points.GetPoints(); ids != nil {
		for _, id := range ids.Ids {
			delete(f.points, id.GetUuid())
		}
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakeQdrant) CollectionExists(context.Context, string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists, nil
}

func (f *fakeQdrant) CreateCollection(_ context.Context, req *qdrant.CreateCollection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists = true
	f.size = req.VectorsConfig.GetParams().Size
	return nil
}

func (f *fakeQdrant) GetCollectionInfo(context.Context, string) (*qdrant.CollectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &qdrant.CollectionInfo{
		Config: &qdrant.CollectionConfig{
			Params: &qdrant.CollectionParams{
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: f.size, Distance: qdrant.Distance_Cosine}),
			},
		},
	}, nil
}

func (f *fakeQdrant) DeleteCollection(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists = false
	f.dropped = true
	f.points = map[string]bool{}
	return nil
}

func (f *fakeQdrant) Close() error { return nil }

func newTestQdrantStore(t *testing.T) (*QdrantStore, *fakeQdrant) {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(db))

	fake := newFakeQdrant()
	return newQdrantStore(fake, "chunks", storage.NewChunkRepo(db)), fake
}

func pointID(docID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", docID, index))).String()
}

func idChunk(docID string, index int, text string, vec []float32) domain.Chunk {
	return domain.Chunk{ID: pointID(docID, index), Index: index, Text: text, Embedding: vec}
}

func TestQdrantStore_InsertAndSearch(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestQdrantStore(t)

	results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 2})
	require.NoError(t, err)
	assert.Empty(t, results, "search before any insert")

	chunks := []domain.Chunk{
		idChunk("doc", 0, "first", unit(1, 0)),
		idChunk("doc", 1, "second", unit(0, 1)),
		idChunk("doc", 2, "third", unit(0.9, 0.1)),
	}
	n, err := store.InsertBatch(ctx, chunks, "doc")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, uint64(2), fake.size)

	fake.scores[chunks[0].ID] = 1
	fake.scores[chunks[1].ID] = 0
	fake.scores[chunks[2].ID] = 0.99

	threshold := 0.5
	results, err = store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 2, Threshold: &threshold, DocumentID: "doc"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Chunk.Text)
	assert.Equal(t, "third", results[1].Chunk.Text)

	require.Len(t, fake.queries, 2)
	assert.Equal(t, uint64(2), fake.queries[0].GetLimit())
	assert.NotNil(t, fake.queries[0].Filter)
	assert.InDelta(t, 0.5, fake.queries[0].GetScoreThreshold(), 1e-6)
	// A full page is widened to every point scoring at least the last score.
	assert.Equal(t, uint64(3), fake.queries[1].GetLimit())
	assert.NotNil(t, fake.queries[1].Filter)
	assert.InDelta(t, 0.99, fake.queries[1].GetScoreThreshold(), 1e-6)

	results, err = store.Search(ctx, []float32{1, 0, 0}, SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results, "query with the wrong dimension")
}

func TestQdrantStore_TiesAtCutoffFollowInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestQdrantStore(t)

	chunks := []domain.Chunk{
		idChunk("doc", 0, "low", unit(0, 1)),
		idChunk("doc", 1, "tie-a", unit(1, 0)),
		idChunk("doc", 2, "tie-b", unit(1, 0)),
		idChunk("doc", 3, "tie-c", unit(1, 0)),
		idChunk("doc", 4, "tie-d", unit(1, 0)),
	}
	_, err := store.InsertBatch(ctx, chunks, "doc")
	require.NoError(t, err)
	fake.scores[chunks[0].ID] = 0.1
	for _, c := range chunks[1:] {
		fake.scores[c.ID] = 0.9
	}

	for i := 0; i < 5; i++ {
		results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 2})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "tie-a", results[0].Chunk.Text)
		assert.Equal(t, "tie-b", results[1].Chunk.Text)
	}
}

func TestQdrantStore_InsertRequiresUUIDs(t *testing.T) {
	store, _ := newTestQdrantStore(t)

	_, err := store.InsertBatch(context.Background(), []domain.Chunk{
		{ID: "not-a-uuid", Text: "x", Embedding: unit(1, 0)},
	}, "doc")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestQdrantStore_UpsertFailureLeavesNoChunks(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestQdrantStore(t)
	fake.upsertErr = errors.New("unavailable")

	_, err := store.InsertBatch(ctx, []domain.Chunk{idChunk("doc", 0, "x", unit(1, 0))}, "doc")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStore)

	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestQdrantStore_SQLiteFailureRemovesPoints(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestQdrantStore(t)

	c := idChunk("doc", 0, "x", unit(1, 0))
	_, err := store.InsertBatch(ctx, []domain.Chunk{c}, "doc")
	require.NoError(t, err)

	// Same chunk ID again violates the chunks table's UNIQUE constraint.
	_, err = store.InsertBatch(ctx, []domain.Chunk{c, idChunk("doc", 1, "y", unit(0, 1))}, "doc")
	require.Error(t, err)
	assert.Equal(t, 1, fake.deletes)
	assert.False(t, fake.points[pointID("doc", 1)])
}

func TestQdrantStore_Clear(t *testing.T) {
	ctx := context.Background()
	store, fake := newTestQdrantStore(t)

	_, err := store.InsertBatch(ctx, []domain.Chunk{idChunk("a", 0, "a", unit(1, 0))}, "a")
	require.NoError(t, err)
	_, err = store.InsertBatch(ctx, []domain.Chunk{idChunk("b", 0, "b", unit(1, 0))}, "b")
	require.NoError(t, err)

	n, err := store.Clear(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, fake.deletes)

	n, err = store.Clear(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, fake.dropped)

	results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
