// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/websift/ai"
	"github.com/poiesic/websift/core"
)

// EnrichmentResult is the outcome of enriching one segment. Exactly one of
// Embedding or Err is set once enrichment completes. Summary and
// RetrievalContext are best-effort and may be empty even on success.
type EnrichmentResult struct {
	SegmentIndex     int
	Embedding        []float32
	Summary          string
	RetrievalContext string
	Err              error
}

// Succeeded reports whether the segment's required embedding was produced.
func (r *EnrichmentResult) Succeeded() bool {
	return r.Err == nil
}

// Enricher produces an embedding and optional derived metadata for a single
// segment's text. The three external calls are independent reads of the
// same input and are issued concurrently, each bounded by the configured
// request timeout.
//
// The Enricher never retries; callers own retry policy.
type Enricher struct {
	embedder   ai.Embedder
	generator  ai.MetadataGenerator
	dimensions int
	timeout    time.Duration
	logger     *slog.Logger
}

// NewEnricher creates an Enricher backed by the provider's services.
// Dimension and timeout settings come from config.
func NewEnricher(provider ai.Provider, config *ai.Config, logger *slog.Logger) (*Enricher, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Enricher{
		embedder:   provider.Embedder(),
		generator:  provider.MetadataGenerator(),
		dimensions: config.EmbeddingDimensions,
		timeout:    config.RequestTimeout,
		logger:     logger.With("component", "enricher"),
	}, nil
}

// Enrich runs the three enrichment calls for one segment text and collects
// their outcomes. An embedding failure (error, timeout, or wrong dimension)
// is terminal and sets Err; summary and retrieval-context failures only
// leave their field empty.
//
// SegmentIndex is left zero; the pipeline fills it in.
func (e *Enricher) Enrich(ctx context.Context, text string) EnrichmentResult {
	var result EnrichmentResult
	var wg sync.WaitGroup

	// Each call writes to its own field, so no locking is needed.
	wg.Add(3)

	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		embedding, err := e.embedder.EmbedText(callCtx, text)
		if err != nil {
			result.Err = fmt.Errorf("%w: %w", core.ErrEmbeddingFailed, err)
			return
		}
		if len(embedding) != e.dimensions {
			result.Err = fmt.Errorf("%w: %w: expected %d, got %d",
				core.ErrEmbeddingFailed, core.ErrDimensionMismatch, e.dimensions, len(embedding))
			return
		}
		// Unit length at write time lets the store score with a plain
		// dot product.
		result.Embedding = core.NormalizeVector(embedding)
	}()

	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		summary, err := e.generator.Summarize(callCtx, text)
		if err != nil {
			e.logger.Warn("summary generation failed",
				"err", fmt.Errorf("%w: %w", core.ErrMetadataGenerationFailed, err))
			return
		}
		result.Summary = summary
	}()

	go func() {
		defer wg.Done()
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		retrievalContext, err := e.generator.RetrievalContext(callCtx, text)
		if err != nil {
			e.logger.Warn("retrieval context generation failed",
				"err", fmt.Errorf("%w: %w", core.ErrMetadataGenerationFailed, err))
			return
		}
		result.RetrievalContext = retrievalContext
	}()

	wg.Wait()

	if result.Err != nil {
		// A failed segment carries no partial fields.
		result.Summary = ""
		result.RetrievalContext = ""
		result.Embedding = nil
	}

	return result
}
