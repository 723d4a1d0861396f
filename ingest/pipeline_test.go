package ingest

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/websift/ai"
	"github.com/poiesic/websift/ai/mock"
	"github.com/poiesic/websift/core"
	"github.com/poiesic/websift/segment"
	"github.com/poiesic/websift/storage"
	"github.com/poiesic/websift/storage/badger"
)

// wordTokenizer treats every whitespace-separated word as one token, which
// makes capacities in tests read as word counts.
type wordTokenizer struct {
	words []string
	ids   map[string]int
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: make(map[string]int)}
}

func (tk *wordTokenizer) Encode(text string) ([]int, error) {
	fields := strings.Fields(text)
	tokens := make([]int, len(fields))
	for i, field := range fields {
		id, ok := tk.ids[field]
		if !ok {
			id = len(tk.words)
			tk.ids[field] = id
			tk.words = append(tk.words, field)
		}
		tokens[i] = id
	}
	return tokens, nil
}

func (tk *wordTokenizer) Decode(tokens []int) (string, error) {
	fields := make([]string, len(tokens))
	for i, token := range tokens {
		fields[i] = tk.words[token]
	}
	return strings.Join(fields, " "), nil
}

type pipelineFixture struct {
	pipeline  *Pipeline
	documents storage.DocumentRepository
	segments  storage.SegmentRepository
	document  *core.Document
}

// failingSegmentRepository wraps a real repository but rejects batch writes.
type failingSegmentRepository struct {
	storage.SegmentRepository
}

func (r *failingSegmentRepository) ReplaceSegments(ctx context.Context, documentID core.ID, segments []*core.SegmentRecord) error {
	return errors.New("disk full")
}

func newPipelineFixture(t *testing.T, provider ai.Provider, text string, opts ...Option) *pipelineFixture {
	t.Helper()
	ctx := context.Background()

	collections, documents, segments, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	collection, err := collections.AddCollection(ctx, &core.Collection{
		Name:     "test",
		Capacity: 500,
		Overlap:  50,
	})
	require.NoError(t, err)

	document, err := documents.PutDocument(ctx, &core.Document{
		CollectionId: collection.Id,
		URL:          "https://example.com/page",
		Title:        "Test page",
		CleanText:    text,
		WordCount:    len(strings.Fields(text)),
		Status:       core.StatusPending,
	})
	require.NoError(t, err)

	segmenter, err := segment.New(segment.WithTokenizer(newWordTokenizer()))
	require.NoError(t, err)

	enricher, err := NewEnricher(provider, testConfig(), nil)
	require.NoError(t, err)

	pipeline, err := NewPipeline(documents, segments, segmenter, enricher, opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return &pipelineFixture{
		pipeline:  pipeline,
		documents: documents,
		segments:  segments,
		document:  document,
	}
}

func TestNewPipeline_Validation(t *testing.T) {
	segmenter, err := segment.New(segment.WithTokenizer(newWordTokenizer()))
	require.NoError(t, err)
	enricher, err := NewEnricher(mock.NewMockProvider(testDimensions), testConfig(), nil)
	require.NoError(t, err)

	_, _, segments, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	documents, err := badger.NewDocumentRepository(backend)
	require.NoError(t, err)

	tests := []struct {
		name    string
		build   func() (*Pipeline, error)
		wantErr error
	}{
		{"nil documents", func() (*Pipeline, error) {
			return NewPipeline(nil, segments, segmenter, enricher)
		}, ErrDocumentRepositoryRequired},
		{"nil segments", func() (*Pipeline, error) {
			return NewPipeline(documents, nil, segmenter, enricher)
		}, ErrSegmentRepositoryRequired},
		{"nil segmenter", func() (*Pipeline, error) {
			return NewPipeline(documents, segments, nil, enricher)
		}, ErrSegmenterRequired},
		{"nil enricher", func() (*Pipeline, error) {
			return NewPipeline(documents, segments, segmenter, nil)
		}, ErrEnricherRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPipeline_ProcessNilDocument(t *testing.T) {
	f := newPipelineFixture(t, mock.NewMockProvider(testDimensions), "some text")
	_, err := f.pipeline.Process(context.Background(), nil, 10, 0)
	assert.ErrorIs(t, err, ErrNilDocument)
}

func TestPipeline_ProcessDocument(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta eta theta iota kappa"
	f := newPipelineFixture(t, mock.NewMockProvider(testDimensions), text)
	ctx := context.Background()

	outcome, err := f.pipeline.Process(ctx, f.document, 3, 0)
	require.NoError(t, err)
	require.NotNil(t, outcome)

	assert.Equal(t, core.StatusProcessed, outcome.Status)
	assert.Equal(t, core.StatusProcessed, f.document.Status)
	require.Len(t, outcome.Results, 4)
	assert.Equal(t, 4, outcome.Succeeded)
	assert.Equal(t, 0, outcome.Failed)

	records, err := f.segments.GetSegmentsByDocument(ctx, f.document.Id)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "alpha beta gamma", records[0].Text)
	assert.Equal(t, "kappa", records[3].Text)
	for i, record := range records {
		assert.Equal(t, i, record.Index)
		assert.Len(t, record.Embedding, testDimensions)
		assertUnitLength(t, record.Embedding)
		assert.Contains(t, record.Summary, "summary:")
		assert.Contains(t, record.RetrievalContext, "context:")
	}

	stored, err := f.documents.GetDocument(ctx, f.document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessed, stored.Status)
	assert.Empty(t, stored.ErrorMessage)
}

func TestPipeline_ResultsOrderedDespiteCompletionOrder(t *testing.T) {
	words := make([]string, 40)
	for i := range words {
		words[i] = string(rune('a' + i%26))
	}
	text := strings.Join(words, " ")

	// Random per-call delays shuffle completion order; results must still
	// land in segment-index order.
	embedder := mock.NewMockEmbedder(testDimensions)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
		return mock.NewMockEmbedder(testDimensions).EmbedText(ctx, text)
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockMetadataGenerator())
	f := newPipelineFixture(t, provider, text, WithConcurrency(4))

	outcome, err := f.pipeline.Process(context.Background(), f.document, 2, 0)
	require.NoError(t, err)
	require.Len(t, outcome.Results, 20)
	for i, result := range outcome.Results {
		assert.Equal(t, i, result.SegmentIndex)
		assert.True(t, result.Succeeded())
	}
}

func TestPipeline_PartialFailureStillProcesses(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta"
	embedder := mock.NewMockEmbedder(testDimensions)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "delta") {
			return nil, errors.New("service unavailable")
		}
		return mock.NewMockEmbedder(testDimensions).EmbedText(ctx, text)
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockMetadataGenerator())
	f := newPipelineFixture(t, provider, text)
	ctx := context.Background()

	outcome, err := f.pipeline.Process(ctx, f.document, 3, 0)
	require.NoError(t, err)

	assert.Equal(t, core.StatusProcessed, outcome.Status)
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, 1, outcome.Succeeded)
	assert.Equal(t, 1, outcome.Failed)
	assert.True(t, outcome.Results[0].Succeeded())
	assert.ErrorIs(t, outcome.Results[1].Err, core.ErrEmbeddingFailed)

	// Only the successful segment is committed.
	records, err := f.segments.GetSegmentsByDocument(ctx, f.document.Id)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "alpha beta gamma", records[0].Text)
}

func TestPipeline_AllSegmentsFailed(t *testing.T) {
	embedder := mock.NewMockEmbedder(testDimensions)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("service unavailable")
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockMetadataGenerator())
	f := newPipelineFixture(t, provider, "alpha beta gamma delta")
	ctx := context.Background()

	outcome, err := f.pipeline.Process(ctx, f.document, 2, 0)
	require.NoError(t, err)

	assert.Equal(t, core.StatusFailed, outcome.Status)
	assert.Equal(t, 0, outcome.Succeeded)
	assert.Equal(t, 2, outcome.Failed)

	records, err := f.segments.GetSegmentsByDocument(ctx, f.document.Id)
	require.NoError(t, err)
	assert.Empty(t, records)

	stored, err := f.documents.GetDocument(ctx, f.document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.ErrorMessage)
}

func TestPipeline_EmptyTextFailsDocument(t *testing.T) {
	f := newPipelineFixture(t, mock.NewMockProvider(testDimensions), "   \n\t  ")
	ctx := context.Background()

	outcome, err := f.pipeline.Process(ctx, f.document, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, outcome.Status)
	assert.Empty(t, outcome.Results)

	stored, err := f.documents.GetDocument(ctx, f.document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, stored.Status)
}

func TestPipeline_CancellationLeavesDocumentPending(t *testing.T) {
	text := "alpha beta gamma delta epsilon zeta eta theta"
	ctx, cancel := context.WithCancel(context.Background())

	embedder := mock.NewMockEmbedder(testDimensions)
	embedder.EmbedTextFunc = func(callCtx context.Context, text string) ([]float32, error) {
		// Cancel while the first segment is in flight; it still finishes.
		cancel()
		time.Sleep(10 * time.Millisecond)
		return mock.NewMockEmbedder(testDimensions).EmbedText(callCtx, text)
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockMetadataGenerator())
	f := newPipelineFixture(t, provider, text, WithConcurrency(1))

	_, err := f.pipeline.Process(ctx, f.document, 2, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)

	// Nothing committed, document retryable.
	records, err := f.segments.GetSegmentsByDocument(context.Background(), f.document.Id)
	require.NoError(t, err)
	assert.Empty(t, records)

	stored, err := f.documents.GetDocument(context.Background(), f.document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, stored.Status)
}

func TestPipeline_CancellationAfterLastDispatch(t *testing.T) {
	// A single segment means every segment is dispatched before the
	// cancel lands; the interruption must still leave the document
	// pending and uncommitted.
	text := "alpha beta"
	ctx, cancel := context.WithCancel(context.Background())

	embedder := mock.NewMockEmbedder(testDimensions)
	embedder.EmbedTextFunc = func(callCtx context.Context, text string) ([]float32, error) {
		cancel()
		time.Sleep(10 * time.Millisecond)
		return mock.NewMockEmbedder(testDimensions).EmbedText(callCtx, text)
	}
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockMetadataGenerator())
	f := newPipelineFixture(t, provider, text, WithConcurrency(1))

	_, err := f.pipeline.Process(ctx, f.document, 10, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)

	records, err := f.segments.GetSegmentsByDocument(context.Background(), f.document.Id)
	require.NoError(t, err)
	assert.Empty(t, records)

	stored, err := f.documents.GetDocument(context.Background(), f.document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, stored.Status)
}

func TestPipeline_SinkFailureRevertsToPending(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t, mock.NewMockProvider(testDimensions), "alpha beta gamma delta")

	segmenter, err := segment.New(segment.WithTokenizer(newWordTokenizer()))
	require.NoError(t, err)
	enricher, err := NewEnricher(mock.NewMockProvider(testDimensions), testConfig(), nil)
	require.NoError(t, err)

	pipeline, err := NewPipeline(
		f.documents,
		&failingSegmentRepository{SegmentRepository: f.segments},
		segmenter,
		enricher,
	)
	require.NoError(t, err)
	defer pipeline.Release()

	_, err = pipeline.Process(ctx, f.document, 2, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSinkWriteFailed)

	stored, err := f.documents.GetDocument(ctx, f.document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, stored.Status)
}
