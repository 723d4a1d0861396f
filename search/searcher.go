package search

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/websift/ai"
	"github.com/poiesic/websift/core"
	"github.com/poiesic/websift/storage"
)

// defaultMinSimilarity filters out weakly related segments before ranking.
const defaultMinSimilarity = 0.60

// verbatimMatchBoost is added to a match's score when every significant
// query word appears in the segment text.
const verbatimMatchBoost = 0.3

// Searcher provides semantic search over stored segments.
type Searcher struct {
	documentRepository storage.DocumentRepository
	segmentRepository  storage.SegmentRepository
	embedder           ai.Embedder
	ranker             *Ranker
	dimensions         int
	minSimilarity      float32
	logger             *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithSimilarityThreshold sets the minimum similarity a segment must score
// to appear in results. Default is 0.60.
func WithSimilarityThreshold(minSimilarity float32) Option {
	return func(s *Searcher) error {
		s.minSimilarity = minSimilarity
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	documentRepository storage.DocumentRepository,
	segmentRepository storage.SegmentRepository,
	provider ai.Provider,
	config *ai.Config,
	opts ...Option,
) (*Searcher, error) {
	if documentRepository == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if segmentRepository == nil {
		return nil, ErrSegmentRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Searcher{
		documentRepository: documentRepository,
		segmentRepository:  segmentRepository,
		embedder:           provider.Embedder(),
		ranker:             NewRanker(),
		dimensions:         config.EmbeddingDimensions,
		minSimilarity:      defaultMinSimilarity,
		logger:             slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Ranker exposes the searcher's ranker for callers that combine candidate
// sets from several queries themselves.
func (s *Searcher) Ranker() *Ranker {
	return s.ranker
}

// Search finds segments similar to the query, optionally scoped to one
// collection. Pass an empty collectionID to search the whole store.
// Returns up to topK matches in descending relevance order.
func (s *Searcher) Search(ctx context.Context, query, collectionID string, topK int) ([]*core.RankedMatch, error) {
	return s.SearchWithMonitor(ctx, query, collectionID, topK, nil)
}

// SearchWithMonitor runs Search with monitoring. The monitor receives
// callbacks at each stage of the search process.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query, collectionID string, topK int, monitor SearchMonitor) ([]*core.RankedMatch, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, topK)
	}

	monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailed, err)
	}
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d",
			core.ErrDimensionMismatch, len(embedding), s.dimensions)
	}

	// Stored embeddings are unit length, so the query must be too for the
	// store's dot-product scan to equal cosine similarity.
	vector := core.NormalizeVector(embedding)
	monitor.AfterQueryEmbedding(len(vector))

	results, err := s.segmentRepository.FindSimilar(ctx, vector, collectionID, s.minSimilarity, topK)
	if err != nil {
		s.logger.Error("error querying for similar segments", "err", err)
		return nil, err
	}

	segmentIds := make([]core.ID, 0, len(results))
	for _, result := range results {
		segmentIds = append(segmentIds, result.Record.Id)
	}
	monitor.AfterVectorSearch(segmentIds)

	// Join each segment with its source document for URL and title.
	documents := make(map[core.ID]*core.Document)
	matches := make([]*core.RankedMatch, 0, len(results))
	for _, result := range results {
		document, ok := documents[result.Record.DocumentId]
		if !ok {
			document, err = s.documentRepository.GetDocument(ctx, result.Record.DocumentId)
			if err != nil {
				s.logger.Warn("error looking up source document",
					"document", result.Record.DocumentId, "err", err)
				continue
			}
			documents[result.Record.DocumentId] = document
		}

		score := result.Similarity
		if containsAllQueryWords(result.Record.Text, query) {
			score += verbatimMatchBoost
			monitor.VerbatimHit(result.Record)
		}

		matches = append(matches, &core.RankedMatch{
			Record:     result.Record,
			URL:        document.URL,
			Title:      document.Title,
			Similarity: result.Similarity,
			Score:      score,
		})
	}
	monitor.AfterDocumentJoin(maps.Keys(documents))

	// The verbatim boost can reorder hits, so re-sort on the final score.
	slices.SortStableFunc(matches, func(a, b *core.RankedMatch) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	monitor.Finish(matches)

	return matches, nil
}
