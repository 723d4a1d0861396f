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


package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Result is the outcome of fetching and extracting one web page.
type Result struct {
	// CleanText is the page's readable text with markup, scripts, and
	// navigation chrome removed and whitespace collapsed.
	CleanText string

	// Title is the page title, if one was present.
	Title string

	// WordCount is the number of whitespace-separated words in CleanText.
	WordCount int
}

// Fetcher downloads web pages and extracts their readable text.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher) error

// WithHTTPClient sets a custom HTTP client.
// Default is a client with a 30 second timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) error {
		if client == nil {
			return fmt.Errorf("%w: nil http client", ErrRequestFailed)
		}
		f.client = client
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(userAgent string) Option {
	return func(f *Fetcher) error {
		f.userAgent = userAgent
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// NewFetcher creates a Fetcher with the given options.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: "websift/1.0",
		logger:    slog.Default().With("component", "fetcher"),
	}

	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// contentSelectors are tried in document order before falling back to the
// whole body. Matching the article container avoids pulling in sidebars
// and comment sections.
const contentSelectors = "article, main, .content, #content, .post, .entry-content, .post-content, #main-content, .article-body"

// strippedSelectors never contain readable prose.
const strippedSelectors = "script, style, noscript, nav, header, footer, aside, iframe, form"

// blockSelectors are the elements emitted as separate paragraphs.
const blockSelectors = "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre"

var whitespace = regexp.MustCompile(`\s+`)

// FetchAndExtract downloads the page at url and extracts its readable text.
// Non-200 responses and unparseable bodies are errors; a page whose
// extracted text is empty yields ErrEmptyContent.
func (f *Fetcher) FetchAndExtract(ctx context.Context, url string) (*Result, error) {
	f.logger.Debug("fetching page", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(strippedSelectors).Remove()

	// Prefer the main content container; fall back to the whole body.
	content := doc.Find(contentSelectors)
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	cleanText := extractBlocks(content)
	if cleanText == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, url)
	}

	result := &Result{
		CleanText: cleanText,
		Title:     title,
		WordCount: len(strings.Fields(cleanText)),
	}

	f.logger.Debug("extracted page",
		"url", url,
		"title", title,
		"words", result.WordCount)

	return result, nil
}

// extractBlocks renders the selection's block elements as paragraphs
// separated by blank lines, so downstream segmentation can prefer the
// page's own boundaries. Whitespace inside each paragraph is collapsed.
// A selection without block elements collapses to a single paragraph.
func extractBlocks(content *goquery.Selection) string {
	var paragraphs []string
	content.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		// Skip containers whose matched children will be emitted on
		// their own, otherwise nested text appears twice.
		if s.Find(blockSelectors).Length() > 0 {
			return
		}
		if p := strings.TrimSpace(whitespace.ReplaceAllString(s.Text(), " ")); p != "" {
			paragraphs = append(paragraphs, p)
		}
	})

	if len(paragraphs) == 0 {
		return strings.TrimSpace(whitespace.ReplaceAllString(content.Text(), " "))
	}
	return strings.Join(paragraphs, "\n\n")
}
