package reembed

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/websift/ai/mock"
	"github.com/poiesic/websift/core"
)

func fastConfig() *Config {
	return &Config{
		BatchSize:      10,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}
}

func TestNewReembedder_Validation(t *testing.T) {
	segments, cleanup := seedSegments(t, 0)
	defer cleanup()

	_, err := NewReembedder(nil, mock.NewMockEmbedder(3), nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrSegmentRepositoryRequired)

	_, err = NewReembedder(segments, nil, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	reembedder, err := NewReembedder(segments, mock.NewMockEmbedder(3), nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, reembedder.config.BatchSize)
}

func TestReembedder_Run(t *testing.T) {
	segments, cleanup := seedSegments(t, 25)
	defer cleanup()
	ctx := context.Background()

	var buf bytes.Buffer
	reembedder, err := NewReembedder(segments, mock.NewMockEmbedder(4), fastConfig(), &buf)
	require.NoError(t, err)

	require.NoError(t, reembedder.Run(ctx))

	assert.Contains(t, buf.String(), "Starting reembedding of 25 segments")
	assert.Contains(t, buf.String(), "Reembedding complete. Processed 25 segments")

	// Every stored segment now carries a fresh, unit-length 4-dim vector.
	count := 0
	err = segments.IterateSegments(ctx, func(record *core.SegmentRecord) error {
		count++
		require.Len(t, record.Embedding, 4)
		var sum float64
		for _, v := range record.Embedding {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 25, count)
}

func TestReembedder_EmptyStore(t *testing.T) {
	segments, cleanup := seedSegments(t, 0)
	defer cleanup()

	var buf bytes.Buffer
	reembedder, err := NewReembedder(segments, mock.NewMockEmbedder(4), fastConfig(), &buf)
	require.NoError(t, err)

	require.NoError(t, reembedder.Run(context.Background()))
	assert.Contains(t, buf.String(), "No segments found")
}

func TestReembedder_RetriesTransientFailures(t *testing.T) {
	segments, cleanup := seedSegments(t, 5)
	defer cleanup()

	attempts := 0
	embedder := mock.NewMockEmbedder(4)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("rate limited")
		}
		embeddings := make([][]float32, len(texts))
		for i := range texts {
			embeddings[i] = []float32{1, 0, 0, 0}
		}
		return embeddings, nil
	}

	var buf bytes.Buffer
	reembedder, err := NewReembedder(segments, embedder, fastConfig(), &buf)
	require.NoError(t, err)

	require.NoError(t, reembedder.Run(context.Background()))
	assert.Equal(t, 2, attempts)
}

func TestReembedder_PersistentFailurePropagates(t *testing.T) {
	segments, cleanup := seedSegments(t, 5)
	defer cleanup()

	serviceErr := errors.New("service down")
	embedder := mock.NewMockEmbedder(4)
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, serviceErr
	}

	var buf bytes.Buffer
	reembedder, err := NewReembedder(segments, embedder, fastConfig(), &buf)
	require.NoError(t, err)

	err = reembedder.Run(context.Background())
	assert.ErrorIs(t, err, serviceErr)
}
