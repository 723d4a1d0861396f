package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/websift/ai"
	"github.com/poiesic/websift/core"
	"github.com/poiesic/websift/storage"
)

// BatchProcessor regenerates embeddings for batches of segment records.
type BatchProcessor struct {
	repo           storage.SegmentRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.SegmentRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates embeddings for a batch of segments and writes them back
// to the store. Vectors are normalized after embedding so the store's
// dot-product scan stays equivalent to cosine similarity.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.SegmentRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Text
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(records) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(records), len(embeddings))
	}

	for i := range records {
		records[i].Embedding = core.NormalizeVector(embeddings[i])
	}

	if err := bp.repo.UpdateSegmentEmbeddings(ctx, records...); err != nil {
		return fmt.Errorf("failed to update segments: %w", err)
	}

	return nil
}
