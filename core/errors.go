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


package core

import "errors"

// Pipeline and query error kinds. Per-segment kinds are recorded on the
// segment's result and never abort sibling segments; document-level kinds
// leave the document in a retryable state.
var (
	// ErrSegmentationFailed indicates the tokenizer or segmenter failed on
	// the document's text. Applies to the whole document.
	ErrSegmentationFailed = errors.New("segmentation failed")

	// ErrEmbeddingFailed indicates embedding generation failed for a
	// segment. Terminal for that segment only.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrMetadataGenerationFailed indicates summary or retrieval-context
	// generation failed. Non-terminal: the field is left empty.
	ErrMetadataGenerationFailed = errors.New("metadata generation failed")

	// ErrDimensionMismatch indicates a query vector and a stored embedding
	// have different dimensions. Fatal for the whole query.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrSinkWriteFailed indicates the batch commit to storage failed.
	// The document is left pending and may be re-processed.
	ErrSinkWriteFailed = errors.New("sink write failed")
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidCollection indicates a Collection failed validation.
	ErrInvalidCollection = errors.New("invalid collection")

	// ErrInvalidSegment indicates a Segment failed validation.
	ErrInvalidSegment = errors.New("invalid segment")

	// ErrEmptyURL indicates the document URL field is empty.
	ErrEmptyURL = errors.New("url cannot be empty")

	// ErrEmptyCollectionName indicates the collection Name field is empty.
	ErrEmptyCollectionName = errors.New("collection name cannot be empty")

	// ErrInvalidCapacity indicates a non-positive segment capacity.
	ErrInvalidCapacity = errors.New("capacity must be positive")

	// ErrInvalidOverlap indicates an overlap outside [0, capacity).
	ErrInvalidOverlap = errors.New("overlap must be in [0, capacity)")

	// ErrInvalidStatus indicates an invalid DocumentStatus value.
	ErrInvalidStatus = errors.New("invalid document status")
)
