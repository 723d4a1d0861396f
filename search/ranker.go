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


package search

import (
	"fmt"
	"slices"

	"github.com/poiesic/websift/core"
)

// Ranker orders candidate segments by cosine similarity against a query
// vector. It performs no I/O; candidates come from the caller, typically a
// storage vector scan or several of them merged.
type Ranker struct{}

// NewRanker creates a ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// RankOption configures a single Rank call.
type RankOption func(*rankParams)

type rankParams struct {
	scope         func(*core.SegmentRecord) bool
	minSimilarity float32
}

// WithScope restricts ranking to candidates the predicate accepts. Excluded
// candidates are dropped before scoring and never count toward top-k.
func WithScope(scope func(*core.SegmentRecord) bool) RankOption {
	return func(p *rankParams) {
		p.scope = scope
	}
}

// WithMinSimilarity drops candidates scoring below the threshold.
func WithMinSimilarity(minSimilarity float32) RankOption {
	return func(p *rankParams) {
		p.minSimilarity = minSimilarity
	}
}

// Rank scores every candidate against the query vector and returns up to
// topK results in descending similarity order. Ties keep the candidates'
// input order, so repeated queries against an unchanged corpus are
// deterministic.
//
// A dimension mismatch between the query and any candidate aborts the whole
// call with no partial results; a partially scored set would be misleading.
func (r *Ranker) Rank(query []float32, candidates []*core.SegmentRecord, topK int, opts ...RankOption) ([]*core.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, topK)
	}

	var params rankParams
	for _, opt := range opts {
		opt(&params)
	}

	results := make([]*core.SearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		if params.scope != nil && !params.scope(candidate) {
			continue
		}

		similarity, err := core.CosineSimilarity(query, candidate.Embedding)
		if err != nil {
			return nil, err
		}
		if similarity < params.minSimilarity {
			continue
		}
		results = append(results, &core.SearchResult{
			Record:     candidate,
			Similarity: similarity,
		})
	}

	// Stable sort on similarity alone preserves input order for ties.
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Merge combines several already-ranked result lists into one descending
// sequence of at most topK entries. Duplicate records keep their first
// occurrence, so a record's earliest source position decides its tie-break
// order.
func (r *Ranker) Merge(topK int, sources ...[]*core.SearchResult) ([]*core.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, topK)
	}

	seen := make(map[core.ID]bool)
	var merged []*core.SearchResult
	for _, source := range sources {
		for _, result := range source {
			if result == nil || result.Record == nil || seen[result.Record.Id] {
				continue
			}
			seen[result.Record.Id] = true
			merged = append(merged, result)
		}
	}

	slices.SortStableFunc(merged, func(a, b *core.SearchResult) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}
