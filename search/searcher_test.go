package search

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/websift/ai"
	"github.com/poiesic/websift/ai/mock"
	"github.com/poiesic/websift/core"
	"github.com/poiesic/websift/storage"
	"github.com/poiesic/websift/storage/badger"
)

const testDimensions = 3

func testConfig() *ai.Config {
	return ai.NewConfig(ai.WithEmbeddingDimensions(testDimensions))
}

// queryProvider returns the same vector for every query, which makes the
// stored segments' similarities fully predictable.
func queryProvider(vector []float32) ai.Provider {
	embedder := mock.NewMockEmbedder(testDimensions)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return vector, nil
	}
	return mock.NewMockProviderWithServices(embedder, mock.NewMockMetadataGenerator())
}

type searchFixture struct {
	collections storage.CollectionRepository
	documents   storage.DocumentRepository
	segments    storage.SegmentRepository
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	collections, documents, segments, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return &searchFixture{collections: collections, documents: documents, segments: segments}
}

func (f *searchFixture) addDocument(t *testing.T, collectionName, url, title string) (string, core.ID) {
	t.Helper()
	ctx := context.Background()

	collection, err := f.collections.FindCollectionByName(ctx, collectionName)
	if err != nil {
		collection, err = f.collections.AddCollection(ctx, &core.Collection{
			Name:     collectionName,
			Capacity: 500,
			Overlap:  50,
		})
		require.NoError(t, err)
	}

	document, err := f.documents.PutDocument(ctx, &core.Document{
		CollectionId: collection.Id,
		URL:          url,
		Title:        title,
		CleanText:    "page text",
		Status:       core.StatusPending,
	})
	require.NoError(t, err)
	return collection.Id, document.Id
}

func (f *searchFixture) addSegments(t *testing.T, docID core.ID, texts []string, embeddings [][]float32) {
	t.Helper()
	records := make([]*core.SegmentRecord, len(texts))
	for i := range texts {
		records[i] = &core.SegmentRecord{
			Index:     i,
			Text:      texts[i],
			Embedding: embeddings[i],
		}
	}
	require.NoError(t, f.segments.ReplaceSegments(context.Background(), docID, records))
}

func TestNewSearcher_Validation(t *testing.T) {
	f := newSearchFixture(t)
	provider := mock.NewMockProvider(testDimensions)

	_, err := NewSearcher(nil, f.segments, provider, testConfig())
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

	_, err = NewSearcher(f.documents, nil, provider, testConfig())
	assert.ErrorIs(t, err, ErrSegmentRepositoryRequired)

	_, err = NewSearcher(f.documents, f.segments, nil, testConfig())
	assert.ErrorIs(t, err, ErrAIProviderRequired)
}

func TestSearcher_Search(t *testing.T) {
	f := newSearchFixture(t)
	_, docID := f.addDocument(t, "pages", "https://example.com/go", "Go articles")
	f.addSegments(t, docID,
		[]string{"irrelevant text", "exact topic", "close topic"},
		[][]float32{
			{0, 1, 0},
			{1, 0, 0},
			{0.8, 0.6, 0},
		})

	searcher, err := NewSearcher(f.documents, f.segments, queryProvider([]float32{1, 0, 0}), testConfig())
	require.NoError(t, err)

	matches, err := searcher.Search(context.Background(), "some query words", "", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "exact topic", matches[0].Record.Text)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-5)
	assert.Equal(t, "close topic", matches[1].Record.Text)
	assert.InDelta(t, 0.8, matches[1].Similarity, 1e-5)

	// Matches carry the source document's fields.
	assert.Equal(t, "https://example.com/go", matches[0].URL)
	assert.Equal(t, "Go articles", matches[0].Title)
}

func TestSearcher_CollectionScope(t *testing.T) {
	f := newSearchFixture(t)
	scopeID, docA := f.addDocument(t, "col-a", "https://example.com/a", "A")
	_, docB := f.addDocument(t, "col-b", "https://example.com/b", "B")
	f.addSegments(t, docA, []string{"in scope"}, [][]float32{{0.8, 0.6, 0}})
	f.addSegments(t, docB, []string{"out of scope"}, [][]float32{{1, 0, 0}})

	searcher, err := NewSearcher(f.documents, f.segments, queryProvider([]float32{1, 0, 0}), testConfig())
	require.NoError(t, err)

	matches, err := searcher.Search(context.Background(), "some query", scopeID, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "in scope", matches[0].Record.Text)
}

func TestSearcher_VerbatimBoostReorders(t *testing.T) {
	f := newSearchFixture(t)
	_, docID := f.addDocument(t, "pages", "https://example.com/a", "A")
	f.addSegments(t, docID,
		[]string{
			"nothing relevant here",
			"garbage collection tuning guide",
		},
		[][]float32{
			{0.98, 0.198997, 0}, // higher similarity, no keyword match
			{0.8, 0.6, 0},       // lower similarity, contains the query words
		})

	searcher, err := NewSearcher(f.documents, f.segments, queryProvider([]float32{1, 0, 0}), testConfig())
	require.NoError(t, err)

	matches, err := searcher.Search(context.Background(), "garbage collection tuning", "", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// 0.8 + 0.3 boost beats 0.98.
	assert.Equal(t, "garbage collection tuning guide", matches[0].Record.Text)
	assert.Greater(t, matches[0].Score, matches[0].Similarity)
	assert.Equal(t, matches[1].Score, matches[1].Similarity)
}

func TestSearcher_WrongQueryDimension(t *testing.T) {
	f := newSearchFixture(t)
	_, docID := f.addDocument(t, "pages", "https://example.com/a", "A")
	f.addSegments(t, docID, []string{"text"}, [][]float32{{1, 0, 0}})

	searcher, err := NewSearcher(f.documents, f.segments, queryProvider([]float32{1, 0}), testConfig())
	require.NoError(t, err)

	matches, err := searcher.Search(context.Background(), "some query", "", 10)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.Nil(t, matches)
}

func TestSearcher_ArgumentValidation(t *testing.T) {
	f := newSearchFixture(t)
	searcher, err := NewSearcher(f.documents, f.segments, mock.NewMockProvider(testDimensions), testConfig())
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "   ", "", 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = searcher.Search(context.Background(), "query", "", 0)
	assert.ErrorIs(t, err, ErrInvalidTopK)
}

type recordingMonitor struct {
	started      string
	embeddingDim int
	segmentIds   []core.ID
	documentIds  []core.ID
	verbatim     int
	finished     []*core.RankedMatch
}

func (m *recordingMonitor) Start(query string)              { m.started = query }
func (m *recordingMonitor) AfterQueryEmbedding(dim int)     { m.embeddingDim = dim }
func (m *recordingMonitor) AfterVectorSearch(ids []core.ID) { m.segmentIds = ids }

func (m *recordingMonitor) AfterDocumentJoin(ids iter.Seq[core.ID]) {
	for id := range ids {
		m.documentIds = append(m.documentIds, id)
	}
}

func (m *recordingMonitor) VerbatimHit(_ *core.SegmentRecord)  { m.verbatim++ }
func (m *recordingMonitor) Finish(matches []*core.RankedMatch) { m.finished = matches }

func TestSearcher_MonitorHooks(t *testing.T) {
	f := newSearchFixture(t)
	_, docID := f.addDocument(t, "pages", "https://example.com/a", "A")
	f.addSegments(t, docID, []string{"alpha beta"}, [][]float32{{1, 0, 0}})

	searcher, err := NewSearcher(f.documents, f.segments, queryProvider([]float32{1, 0, 0}), testConfig())
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	matches, err := searcher.SearchWithMonitor(context.Background(), "alpha beta", "", 5, monitor)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	assert.Equal(t, "alpha beta", monitor.started)
	assert.Equal(t, testDimensions, monitor.embeddingDim)
	assert.Len(t, monitor.segmentIds, 1)
	assert.Equal(t, []core.ID{docID}, monitor.documentIds)
	assert.Equal(t, 1, monitor.verbatim)
	assert.Equal(t, matches, monitor.finished)
}
