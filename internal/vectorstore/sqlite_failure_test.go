package vectorstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"studyrag/internal/domain"
	storage_mocks "studyrag/internal/storage/mocks"
)

func TestSQLiteStore_RepositoryFailures(t *testing.T) {
	ctx := context.Background()
	storeErr := fmt.Errorf("%w: database is locked", domain.ErrStore)
	chunk := domain.Chunk{ID: "c1", DocumentID: "doc", Text: "text", Embedding: []float32{1, 0}}

	t.Run("insert", func(t *testing.T) {
		repo := storage_mocks.NewMockChunkStore(gomock.NewController(t))
		repo.EXPECT().Dimension(gomock.Any()).Return(2, nil)
		repo.EXPECT().InsertBatch(gomock.Any(), gomock.Len(1)).Return(storeErr)

		n, err := NewSQLiteStore(repo).InsertBatch(ctx, []domain.Chunk{chunk}, "doc")
		assert.ErrorIs(t, err, domain.ErrStore)
		assert.Equal(t, 0, n)
	})

	t.Run("dimension mismatch never reaches the repository", func(t *testing.T) {
		repo := storage_mocks.NewMockChunkStore(gomock.NewController(t))
		repo.EXPECT().Dimension(gomock.Any()).Return(3, nil)

		_, err := NewSQLiteStore(repo).InsertBatch(ctx, []domain.Chunk{chunk}, "doc")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("search", func(t *testing.T) {
		repo := storage_mocks.NewMockChunkStore(gomock.NewController(t))
		repo.EXPECT().Scan(gomock.Any(), "", gomock.Any()).Return(storeErr)

		_, err := NewSQLiteStore(repo).Search(ctx, []float32{1, 0}, SearchOptions{})
		assert.ErrorIs(t, err, domain.ErrStore)
	})

	t.Run("list returns empty slice", func(t *testing.T) {
		repo := storage_mocks.NewMockChunkStore(gomock.NewController(t))
		repo.EXPECT().List(gomock.Any(), "doc").Return(nil, nil)

		chunks, err := NewSQLiteStore(repo).ListChunks(ctx, "doc")
		require.NoError(t, err)
		assert.NotNil(t, chunks)
		assert.Empty(t, chunks)
	})
}
