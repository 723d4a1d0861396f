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

import "fmt"

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - URL must not be empty
//   - Status must be a known status value
//
// NOT validated (populated by the pipeline):
//   - CleanText (may be empty until fetched)
//   - Title, WordCount, ErrorMessage
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.URL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyURL)
	}

	if err := ValidateDocumentStatus(doc.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return nil
}

// ValidateCollection validates a Collection according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - Capacity must be positive
//   - Overlap must be in [0, Capacity)
func ValidateCollection(c *Collection) error {
	if c == nil {
		return fmt.Errorf("%w: collection is nil", ErrInvalidCollection)
	}

	if c.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCollection, ErrEmptyCollectionName)
	}

	if c.Capacity <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCollection, ErrInvalidCapacity)
	}

	if c.Overlap < 0 || c.Overlap >= c.Capacity {
		return fmt.Errorf("%w: %w", ErrInvalidCollection, ErrInvalidOverlap)
	}

	return nil
}

// ValidateSegment validates a Segment according to domain rules.
//
// Validation rules:
//   - Index must not be negative
//   - Text must not be empty
//   - TokenCount must be positive
func ValidateSegment(seg *Segment) error {
	if seg == nil {
		return fmt.Errorf("%w: segment is nil", ErrInvalidSegment)
	}

	if seg.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidSegment, seg.Index)
	}

	if seg.Text == "" {
		return fmt.Errorf("%w: empty text at index %d", ErrInvalidSegment, seg.Index)
	}

	if seg.TokenCount <= 0 {
		return fmt.Errorf("%w: token count %d at index %d", ErrInvalidSegment, seg.TokenCount, seg.Index)
	}

	return nil
}

// ValidateDocumentStatus validates that a DocumentStatus has a valid value.
func ValidateDocumentStatus(status DocumentStatus) error {
	switch status {
	case StatusPending, StatusProcessing, StatusProcessed, StatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidStatus, status)
	}
}
