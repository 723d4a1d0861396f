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


package reembed

import (
	"context"

	"github.com/poiesic/websift/core"
	"github.com/poiesic/websift/storage"
)

const (
	// DefaultBatchSize is the default number of segments to process in each batch
	DefaultBatchSize = 100
)

// SegmentIterator walks every stored segment in batches.
type SegmentIterator struct {
	repo      storage.SegmentRepository
	batchSize int
}

// NewSegmentIterator creates a new segment iterator.
// batchSize: number of segments to hand to fn in each batch (must be > 0)
func NewSegmentIterator(repo storage.SegmentRepository, batchSize int) *SegmentIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &SegmentIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach streams all segments, calling fn for each full batch and once for
// the final partial batch. Iteration stops on the first error from fn.
// Context cancellation is checked by the underlying store scan.
func (it *SegmentIterator) ForEach(ctx context.Context, fn func([]*core.SegmentRecord) error) error {
	batch := make([]*core.SegmentRecord, 0, it.batchSize)

	err := it.repo.IterateSegments(ctx, func(record *core.SegmentRecord) error {
		batch = append(batch, record)
		if len(batch) < it.batchSize {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	})
	if err != nil {
		return err
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
