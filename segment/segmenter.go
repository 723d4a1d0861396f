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


package segment

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/poiesic/websift/core"
)

// Segmenter splits normalized document text into an ordered sequence of
// bounded-size, token-aware segments with configurable overlap.
//
// Segmentation is a pure function of (text, capacity, overlap): the same
// input always produces the same segments.
type Segmenter struct {
	tokenizer Tokenizer
	logger    *slog.Logger
}

// Option configures a Segmenter.
type Option func(*Segmenter) error

// WithTokenizer sets the tokenizer used for counting and splitting.
// Default is the cl100k_base BPE tokenizer.
func WithTokenizer(tokenizer Tokenizer) Option {
	return func(s *Segmenter) error {
		if tokenizer == nil {
			return fmt.Errorf("%w: tokenizer is nil", core.ErrSegmentationFailed)
		}
		s.tokenizer = tokenizer
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Segmenter) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a Segmenter. Without options it uses the cl100k_base
// tokenizer, which matches OpenAI's text-embedding-3 models.
func New(opts ...Option) (*Segmenter, error) {
	s := &Segmenter{
		logger: slog.Default().With("component", "segmenter"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.tokenizer == nil {
		tokenizer, err := NewTiktokenTokenizer()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrSegmentationFailed, err)
		}
		s.tokenizer = tokenizer
	}

	return s, nil
}

// sentenceSplitter matches sentence-like runs ending in terminal punctuation.
var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]+)`)

// Segment splits text into segments of at most capacity tokens. Each
// segment after the first begins with the final overlap tokens of its
// predecessor so downstream enrichment sees lexical continuity across
// boundaries.
//
// Constraints: capacity > 0 and 0 <= overlap < capacity. Empty or
// whitespace-only text yields a nil sequence and no error. Tokenizer
// failures are reported as core.ErrSegmentationFailed.
func (s *Segmenter) Segment(text string, capacity, overlap int) ([]core.Segment, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", core.ErrInvalidCapacity, capacity)
	}
	if overlap < 0 || overlap >= capacity {
		return nil, fmt.Errorf("%w: overlap must be in [0, capacity), got %d", core.ErrInvalidOverlap, overlap)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	units := splitUnits(text)

	var segments []core.Segment
	var current []int

	// flush emits the current token run as a segment and seeds the next
	// run with the trailing overlap tokens.
	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		decoded, err := s.tokenizer.Decode(current)
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrSegmentationFailed, err)
		}
		segments = append(segments, core.Segment{
			Index:      len(segments),
			Text:       strings.TrimSpace(decoded),
			TokenCount: len(current),
		})

		if overlap > 0 {
			n := min(overlap, len(current))
			current = slices.Clone(current[len(current)-n:])
		} else {
			current = nil
		}
		return nil
	}

	for _, unit := range units {
		// A leading space makes the BPE merge the unit boundary the
		// same way it would inside continuous text.
		encodeText := unit
		if len(current) > 0 {
			encodeText = " " + unit
		}
		tokens, err := s.tokenizer.Encode(encodeText)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrSegmentationFailed, err)
		}

		// Prefer breaking at the unit boundary when the whole unit fits
		// in a fresh segment.
		if len(current) > 0 && len(current)+len(tokens) > capacity && len(tokens) <= capacity-overlap {
			if err := flush(); err != nil {
				return nil, err
			}
		}

		// Oversized units are split at the token level.
		for len(current)+len(tokens) > capacity {
			room := capacity - len(current)
			current = append(current, tokens[:room]...)
			tokens = tokens[room:]
			if err := flush(); err != nil {
				return nil, err
			}
		}
		current = append(current, tokens...)
	}

	// Trailing overlap tokens alone are not a segment: they already
	// appeared at the end of the previous one.
	if len(segments) == 0 || len(current) > overlap {
		if len(current) > 0 {
			decoded, err := s.tokenizer.Decode(current)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", core.ErrSegmentationFailed, err)
			}
			segments = append(segments, core.Segment{
				Index:      len(segments),
				Text:       strings.TrimSpace(decoded),
				TokenCount: len(current),
			})
		}
	}

	s.logger.Debug("segmented text",
		"units", len(units),
		"segments", len(segments),
		"capacity", capacity,
		"overlap", overlap)

	return segments, nil
}

// splitUnits breaks text into paragraph-bounded sentences, the semantic
// units the packer fills segments with. Text without terminal punctuation
// is kept as a single unit per paragraph.
func splitUnits(text string) []string {
	var units []string
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		matches := sentenceSplitter.FindAllStringIndex(paragraph, -1)
		consumed := 0
		for _, m := range matches {
			sentence := strings.TrimSpace(paragraph[m[0]:m[1]])
			if sentence != "" {
				units = append(units, sentence)
			}
			consumed = m[1]
		}

		// Keep any trailing run without terminal punctuation.
		if tail := strings.TrimSpace(paragraph[consumed:]); tail != "" {
			units = append(units, tail)
		}
	}
	return units
}
