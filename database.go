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


package websift

import (
	"io"
	"log/slog"

	"github.com/poiesic/websift/ai"
	"github.com/poiesic/websift/ai/openai"
	"github.com/poiesic/websift/fetch"
	"github.com/poiesic/websift/ingest"
	"github.com/poiesic/websift/reembed"
	"github.com/poiesic/websift/search"
	"github.com/poiesic/websift/segment"
	"github.com/poiesic/websift/storage"
	"github.com/poiesic/websift/storage/badger"
)

// Database bundles the storage backend, its repositories, and the AI
// provider behind one handle, and builds the package-level workers
// (pipeline, searcher, reembedder) wired to them.
type Database struct {
	backend        *badger.Backend
	collectionRepo storage.CollectionRepository
	documentRepo   storage.DocumentRepository
	segmentRepo    storage.SegmentRepository
	provider       ai.Provider
	aiConfig       *ai.Config
	segmenter      *segment.Segmenter
	logger         *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig  *ai.Config
	provider  ai.Provider
	segmenter *segment.Segmenter
	inMemory  bool
}

// WithAIConfig sets the AI service configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithAIProvider sets a custom AI provider instead of the OpenAI one built
// from the config. Useful for tests.
func WithAIProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithSegmenter sets a custom segmenter instead of the default
// tiktoken-backed one.
func WithSegmenter(segmenter *segment.Segmenter) DatabaseOption {
	return func(o *databaseOptions) {
		o.segmenter = segmenter
	}
}

// WithInMemoryStorage keeps all data in memory, discarded on Close.
func WithInMemoryStorage() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// NewDatabase opens (or creates) a websift database at filePath.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	collectionRepo, err := badger.NewCollectionRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	documentRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	segmentRepo, err := badger.NewSegmentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	segmenter := options.segmenter
	if segmenter == nil {
		segmenter, err = segment.New()
		if err != nil {
			provider.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:        backend,
		collectionRepo: collectionRepo,
		documentRepo:   documentRepo,
		segmentRepo:    segmentRepo,
		provider:       provider,
		aiConfig:       options.aiConfig,
		segmenter:      segmenter,
		logger:         slog.Default(),
	}, nil
}

func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.collectionRepo.Close(); err != nil {
		db.logger.Error("error closing collection repository", "err", err)
		return err
	}
	if err := db.documentRepo.Close(); err != nil {
		db.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := db.segmentRepo.Close(); err != nil {
		db.logger.Error("error closing segment repository", "err", err)
		return err
	}

	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) CollectionRepository() storage.CollectionRepository {
	return db.collectionRepo
}

func (db *Database) DocumentRepository() storage.DocumentRepository {
	return db.documentRepo
}

func (db *Database) SegmentRepository() storage.SegmentRepository {
	return db.segmentRepo
}

// NewPipeline builds a processing pipeline wired to this database's
// repositories and AI provider.
func (db *Database) NewPipeline(opts ...ingest.Option) (*ingest.Pipeline, error) {
	enricher, err := ingest.NewEnricher(db.provider, db.aiConfig, db.logger)
	if err != nil {
		return nil, err
	}
	return ingest.NewPipeline(db.documentRepo, db.segmentRepo, db.segmenter, enricher, opts...)
}

// NewSearcher builds a searcher over this database's segments.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.documentRepo, db.segmentRepo, db.provider, db.aiConfig, opts...)
}

// NewReembedder builds a reembedder over this database's segments.
// progress: where to write progress output (typically os.Stderr)
func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(db.segmentRepo, db.provider.Embedder(), config, progress)
}

// NewFetcher builds a page fetcher. It holds no database state; the method
// exists so callers depend on one handle for the whole workflow.
func (db *Database) NewFetcher(opts ...fetch.Option) (*fetch.Fetcher, error) {
	return fetch.NewFetcher(opts...)
}
