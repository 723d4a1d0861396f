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
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/websift/core"
	"github.com/poiesic/websift/segment"
	"github.com/poiesic/websift/storage"
)

// DefaultConcurrency is the default number of segments enriched in
// parallel. It protects the external generation service's rate limits;
// changing it never changes results, only throughput.
const DefaultConcurrency = 5

// Outcome is the document-level result of one processing run.
type Outcome struct {
	// Results holds one entry per segment, ordered by segment index
	// regardless of the order workers completed in.
	Results []EnrichmentResult

	// Status is the document's final status for this run.
	Status core.DocumentStatus

	// Succeeded and Failed count segments by enrichment outcome.
	Succeeded int
	Failed    int
}

// Pipeline drives a document through segmentation, concurrent enrichment,
// and the batch commit to storage. It tracks per-segment success and
// failure and aggregates a document-level outcome.
type Pipeline struct {
	documents storage.DocumentRepository
	segments  storage.SegmentRepository
	segmenter *segment.Segmenter
	enricher  *Enricher
	pool      *ants.Pool
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConcurrency sets the maximum number of concurrently in-flight
// segment enrichments. Default is DefaultConcurrency.
func WithConcurrency(limit int) Option {
	return func(p *Pipeline) error {
		if limit < 1 {
			limit = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(limit)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "pipeline")
		return nil
	}
}

// NewPipeline creates a processing pipeline.
func NewPipeline(
	documents storage.DocumentRepository,
	segments storage.SegmentRepository,
	segmenter *segment.Segmenter,
	enricher *Enricher,
	opts ...Option,
) (*Pipeline, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if segments == nil {
		return nil, ErrSegmentRepositoryRequired
	}
	if segmenter == nil {
		return nil, ErrSegmenterRequired
	}
	if enricher == nil {
		return nil, ErrEnricherRequired
	}

	pool, err := ants.NewPool(DefaultConcurrency)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		documents: documents,
		segments:  segments,
		segmenter: segmenter,
		enricher:  enricher,
		pool:      pool,
		logger:    slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Process runs one document through the pipeline: segment its clean text
// with the given capacity and overlap, enrich every segment under the
// concurrency limit, and commit the batch to storage.
//
// Per-segment failures are recorded in the outcome, not raised: the
// document ends processed if at least one segment succeeded, failed if all
// segments failed or the text was empty. If ctx is cancelled mid-batch,
// in-flight enrichments finish naturally, nothing is committed, the
// document reverts to pending, and ErrInterrupted is returned.
func (p *Pipeline) Process(ctx context.Context, document *core.Document, capacity, overlap int) (*Outcome, error) {
	if document == nil {
		return nil, ErrNilDocument
	}

	logger := p.logger.With("document", document.Id, "url", document.URL)

	if strings.TrimSpace(document.CleanText) == "" {
		logger.Warn("document has no text")
		if err := p.setStatus(ctx, document, core.StatusFailed, "document text was empty"); err != nil {
			return nil, err
		}
		return &Outcome{Status: core.StatusFailed}, nil
	}

	segments, err := p.segmenter.Segment(document.CleanText, capacity, overlap)
	if err != nil {
		if statusErr := p.setStatus(ctx, document, core.StatusFailed, err.Error()); statusErr != nil {
			logger.Error("failed to record segmentation failure", "err", statusErr)
		}
		return nil, err
	}
	if len(segments) == 0 {
		if err := p.setStatus(ctx, document, core.StatusFailed, "document text was empty"); err != nil {
			return nil, err
		}
		return &Outcome{Status: core.StatusFailed}, nil
	}

	if err := p.setStatus(ctx, document, core.StatusProcessing, ""); err != nil {
		return nil, err
	}

	logger.Info("processing document", "segments", len(segments))

	// In-flight enrichments are detached from the caller's cancellation
	// so they finish naturally; cancellation only stops dispatch.
	enrichCtx := context.WithoutCancel(ctx)

	// One slot per segment index. Workers complete in any order; the
	// slots keep the output ordered without any post-hoc sort.
	results := make([]EnrichmentResult, len(segments))

	var wg sync.WaitGroup
	dispatched := 0
	for i, seg := range segments {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			result := p.enricher.Enrich(enrichCtx, seg.Text)
			result.SegmentIndex = seg.Index
			results[i] = result
		})
		if submitErr != nil {
			wg.Done()
			results[i] = EnrichmentResult{
				SegmentIndex: seg.Index,
				Err:          fmt.Errorf("%w: %w", core.ErrEmbeddingFailed, submitErr),
			}
		}
		dispatched++
	}
	wg.Wait()

	// A cancel can also land after the last dispatch, while workers are
	// still in flight. Either way nothing is committed and the document
	// reverts to pending.
	if ctx.Err() != nil {
		logger.Warn("processing interrupted, leaving document pending",
			"dispatched", dispatched, "segments", len(segments))
		if err := p.setStatus(ctx, document, core.StatusPending, ""); err != nil {
			logger.Error("failed to revert document to pending", "err", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}

	outcome := &Outcome{Results: results}
	for i := range results {
		if results[i].Succeeded() {
			outcome.Succeeded++
		} else {
			outcome.Failed++
		}
	}

	if outcome.Succeeded == 0 {
		logger.Warn("all segments failed", "segments", len(segments))
		outcome.Status = core.StatusFailed
		if err := p.setStatus(ctx, document, core.StatusFailed, "all segments failed enrichment"); err != nil {
			return nil, err
		}
		return outcome, nil
	}

	if err := p.commit(ctx, document, segments, results); err != nil {
		// Nothing was made visible; the document stays retryable.
		if statusErr := p.setStatus(ctx, document, core.StatusPending, ""); statusErr != nil {
			logger.Error("failed to revert document to pending", "err", statusErr)
		}
		return nil, fmt.Errorf("%w: %w", core.ErrSinkWriteFailed, err)
	}

	outcome.Status = core.StatusProcessed
	document.Status = core.StatusProcessed
	logger.Info("document processed",
		"segments", len(segments),
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed)

	return outcome, nil
}

// commit hands every successfully enriched segment to storage as a single
// batch. The repository replaces prior segments and flips the document's
// status in one transaction.
func (p *Pipeline) commit(ctx context.Context, document *core.Document, segments []core.Segment, results []EnrichmentResult) error {
	now := time.Now().UTC()
	records := make([]*core.SegmentRecord, 0, len(results))
	for i := range results {
		if !results[i].Succeeded() {
			continue
		}
		records = append(records, &core.SegmentRecord{
			Id:               core.SegmentRecordID(document.Id, segments[i].Index),
			DocumentId:       document.Id,
			Index:            segments[i].Index,
			Text:             segments[i].Text,
			TokenCount:       segments[i].TokenCount,
			Summary:          results[i].Summary,
			RetrievalContext: results[i].RetrievalContext,
			Embedding:        results[i].Embedding,
			InsertedAt:       now,
			UpdatedAt:        now,
		})
	}

	return p.segments.ReplaceSegments(ctx, document.Id, records)
}

func (p *Pipeline) setStatus(ctx context.Context, document *core.Document, status core.DocumentStatus, message string) error {
	// Status writes must survive caller cancellation, otherwise an
	// interrupted run could not revert its document to pending.
	if err := p.documents.SetDocumentStatus(context.WithoutCancel(ctx), document.Id, status, message); err != nil {
		return err
	}
	document.Status = status
	document.ErrorMessage = message
	return nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
