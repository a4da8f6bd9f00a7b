package vectorstore

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyrag/internal/domain"
	"studyrag/internal/storage"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, storage.Migrate(db))
	return NewSQLiteStore(storage.NewChunkRepo(db))
}

func unit(v ...float32) []float32 {
	var s float64
	for _, x := range v {
		s += float64(x * x)
	}
	n := float32(math.Sqrt(s))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

func chunk(text string, vec []float32) domain.Chunk {
	return domain.Chunk{Text: text, Embedding: vec}
}

func TestSQLiteStore_SearchScenario(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	n, err := store.InsertBatch(ctx, []domain.Chunk{
		chunk("first", unit(1, 0)),
		chunk("second", unit(0, 1)),
		chunk("third", unit(0.9, 0.1)),
	}, "doc")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Chunk.Text)
	assert.Equal(t, "third", results[1].Chunk.Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Nil(t, results[0].Chunk.Embedding)
}

func TestSQLiteStore_EmptyStore(t *testing.T) {
	store := newTestSQLiteStore(t)

	results, err := store.Search(context.Background(), []float32{1, 0}, SearchOptions{TopK: 3})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSQLiteStore_MalformedQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	_, err := store.InsertBatch(ctx, []domain.Chunk{chunk("a", unit(1, 0))}, "doc")
	require.NoError(t, err)

	for _, q := range [][]float32{nil, {}, {float32(math.NaN()), 0}} {
		results, err := store.Search(ctx, q, SearchOptions{})
		require.NoError(t, err)
		assert.Empty(t, results)
	}

	// Wrong dimension scores nothing rather than a wrong value.
	results, err := store.Search(ctx, []float32{1, 0, 0}, SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteStore_RankingAndOptions(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	_, err := store.InsertBatch(ctx, []domain.Chunk{
		chunk("a1", unit(1, 0)),
		chunk("a2", unit(1, 1)),
		chunk("tie", unit(1, 0)),
	}, "doc-a")
	require.NoError(t, err)
	_, err = store.InsertBatch(ctx, []domain.Chunk{
		chunk("b1", unit(0, 1)),
		chunk("b2", unit(1, 0)),
	}, "doc-b")
	require.NoError(t, err)

	t.Run("descending with stable ties", func(t *testing.T) {
		results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{})
		require.NoError(t, err)
		require.Len(t, results, 5)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
		assert.Equal(t, []string{"a1", "tie", "b2"}, []string{results[0].Chunk.Text, results[1].Chunk.Text, results[2].Chunk.Text})
	})

	t.Run("top k", func(t *testing.T) {
		for k := 1; k <= 6; k++ {
			results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: k})
			require.NoError(t, err)
			assert.LessOrEqual(t, len(results), k)
		}
	})

	t.Run("threshold", func(t *testing.T) {
		threshold := 0.8
		results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{Threshold: &threshold})
		require.NoError(t, err)
		assert.Len(t, results, 3)
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Score, threshold)
		}
	})

	t.Run("document scope", func(t *testing.T) {
		results, err := store.Search(ctx, []float32{1, 0}, SearchOptions{DocumentID: "doc-b"})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "b2", results[0].Chunk.Text)
		for _, r := range results {
			assert.Equal(t, "doc-b", r.Chunk.DocumentID)
		}
	})
}

func TestSQLiteStore_InsertBatchValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	_, err := store.InsertBatch(ctx, []domain.Chunk{chunk("seed", unit(1, 0))}, "doc")
	require.NoError(t, err)

	tests := []struct {
		name   string
		chunks []domain.Chunk
		docID  string
	}{
		{name: "missing document id", chunks: []domain.Chunk{chunk("x", unit(1, 0))}, docID: ""},
		{name: "empty text", chunks: []domain.Chunk{chunk(" ", unit(1, 0))}, docID: "doc"},
		{name: "empty vector", chunks: []domain.Chunk{chunk("x", nil)}, docID: "doc"},
		{name: "nan vector", chunks: []domain.Chunk{chunk("x", []float32{float32(math.NaN()), 1})}, docID: "doc"},
		{name: "dimension differs from store", chunks: []domain.Chunk{chunk("x", unit(1, 0, 0))}, docID: "doc"},
		{name: "mixed dimensions", chunks: []domain.Chunk{chunk("ok", unit(1, 0)), chunk("x", unit(1, 0, 1))}, docID: "doc"},
		{name: "foreign document", chunks: []domain.Chunk{{DocumentID: "other", Text: "x", Embedding: unit(1, 0)}}, docID: "doc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := store.InsertBatch(ctx, tt.chunks, tt.docID)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Zero(t, n)

			count, err := store.Count(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, 1, count, "a rejected batch must not be partially written")
		})
	}
}

func TestSQLiteStore_ClearAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	_, err := store.InsertBatch(ctx, []domain.Chunk{chunk("a1", unit(1, 0)), chunk("a2", unit(0, 1))}, "doc-a")
	require.NoError(t, err)
	_, err = store.InsertBatch(ctx, []domain.Chunk{chunk("b1", unit(1, 1))}, "doc-b")
	require.NoError(t, err)

	listed, err := store.ListChunks(ctx, "doc-a")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "a1", listed[0].Text)

	n, err := store.Clear(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	n, err = store.Clear(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	listed, err = store.ListChunks(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, listed)
	assert.Empty(t, listed)
}

func TestSQLiteStore_ConcurrentIngestAndSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 10; i++ {
		docID := fmt.Sprintf("doc-%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := store.InsertBatch(ctx, []domain.Chunk{chunk("x", unit(1, 0)), chunk("y", unit(0, 1))}, docID)
			errs <- err
			_, err = store.Clear(ctx, docID)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := store.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 3})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, count)
}
