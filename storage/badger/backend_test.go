package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/websift/core"
	"github.com/poiesic/websift/storage"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

// seedDocument stores a collection and document, returning the document ID.
func seedDocument(t *testing.T, collections storage.CollectionRepository, documents storage.DocumentRepository, name, url string) (string, core.ID) {
	t.Helper()
	ctx := context.Background()

	collection, err := collections.AddCollection(ctx, &core.Collection{
		Name:     name,
		Capacity: 500,
		Overlap:  50,
	})
	require.NoError(t, err)

	document, err := documents.PutDocument(ctx, &core.Document{
		CollectionId: collection.Id,
		URL:          url,
		Title:        "Seeded",
		CleanText:    "seeded text",
		WordCount:    2,
		Status:       core.StatusPending,
	})
	require.NoError(t, err)

	return collection.Id, document.Id
}

func storeSegments(t *testing.T, segments storage.SegmentRepository, docID core.ID, embeddings ...[]float32) []*core.SegmentRecord {
	t.Helper()

	records := make([]*core.SegmentRecord, len(embeddings))
	for i, embedding := range embeddings {
		records[i] = &core.SegmentRecord{
			Index:     i,
			Text:      "segment text",
			Embedding: embedding,
		}
	}
	require.NoError(t, segments.ReplaceSegments(context.Background(), docID, records))
	return records
}

func TestFindSimilar_NoRecords(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	results, err := backend.FindSimilar(context.Background(), []float32{1, 0, 0}, "", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_OrdersBySimilarity(t *testing.T) {
	collections, documents, segments, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, docID := seedDocument(t, collections, documents, "docs", "https://example.com/a")
	storeSegments(t, segments, docID,
		[]float32{0, 1, 0},
		[]float32{1, 0, 0},
		[]float32{0.7071, 0.7071, 0},
	)

	results, err := backend.FindSimilar(context.Background(), []float32{1, 0, 0}, "", -1, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[0].Record.Index)
	assert.Equal(t, 2, results[1].Record.Index)
	assert.Equal(t, 0, results[2].Record.Index)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
	assert.Greater(t, results[1].Similarity, results[2].Similarity)
}

func TestFindSimilar_TieBreakByInsertionOrder(t *testing.T) {
	collections, documents, segments, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, docID := seedDocument(t, collections, documents, "docs", "https://example.com/a")
	// Identical embeddings give identical similarity scores.
	storeSegments(t, segments, docID,
		[]float32{1, 0, 0},
		[]float32{1, 0, 0},
		[]float32{1, 0, 0},
	)

	for range 3 {
		results, err := backend.FindSimilar(context.Background(), []float32{1, 0, 0}, "", 0, 10)
		require.NoError(t, err)
		require.Len(t, results, 3)
		for i, result := range results {
			assert.Equal(t, i, result.Record.Index)
		}
	}
}

func TestFindSimilar_DimensionMismatchAbortsQuery(t *testing.T) {
	collections, documents, segments, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, docID := seedDocument(t, collections, documents, "docs", "https://example.com/a")
	storeSegments(t, segments, docID, []float32{1, 0, 0})

	results, err := backend.FindSimilar(context.Background(), []float32{1, 0}, "", 0, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.Nil(t, results)
}

func TestFindSimilar_CollectionScope(t *testing.T) {
	collections, documents, segments, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	colA, docA := seedDocument(t, collections, documents, "col-a", "https://example.com/a")
	_, docB := seedDocument(t, collections, documents, "col-b", "https://example.com/b")

	storeSegments(t, segments, docA, []float32{1, 0, 0})
	// The out-of-scope segment scores higher but must not appear.
	storeSegments(t, segments, docB, []float32{1, 0, 0})

	results, err := backend.FindSimilar(context.Background(), []float32{1, 0, 0}, colA, 0, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, docA, results[0].Record.DocumentId)
}

func TestFindSimilar_MinSimilarityAndLimit(t *testing.T) {
	collections, documents, segments, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, docID := seedDocument(t, collections, documents, "docs", "https://example.com/a")
	storeSegments(t, segments, docID,
		[]float32{1, 0, 0},
		[]float32{0.9, 0.4359, 0},
		[]float32{0, 1, 0},
	)

	results, err := backend.FindSimilar(context.Background(), []float32{1, 0, 0}, "", 0.5, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	results, err = backend.FindSimilar(context.Background(), []float32{1, 0, 0}, "", 0.5, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Record.Index)
}

func TestFindSimilar_InvalidQuery(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	_, err = backend.FindSimilar(context.Background(), nil, "", 0, 10)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = backend.FindSimilar(context.Background(), []float32{1}, "", 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	calls := 0
	err = backend.WithTransaction(context.Background(), func(ctx context.Context) error {
		calls++
		return assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFindSimilar_ResultsCarryTimestamps(t *testing.T) {
	collections, documents, segments, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, docID := seedDocument(t, collections, documents, "docs", "https://example.com/a")
	before := time.Now().UTC().Add(-time.Second)
	storeSegments(t, segments, docID, []float32{1, 0, 0})

	results, err := backend.FindSimilar(context.Background(), []float32{1, 0, 0}, "", 0, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Record.InsertedAt.After(before))
}
