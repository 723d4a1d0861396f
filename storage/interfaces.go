package storage

import (
	"context"

	"github.com/poiesic/websift/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// CollectionRepository provides operations for managing collections.
type CollectionRepository interface {
	Repository

	// AddCollection adds a collection to storage.
	// Generates a UUID for collections with an empty Id.
	// Sets InsertedAt if not already set.
	// Returns ErrDuplicateKey if a collection with the same name exists.
	AddCollection(ctx context.Context, collection *core.Collection) (*core.Collection, error)

	// GetCollection retrieves a collection by ID.
	// Returns ErrNotFound if the collection doesn't exist.
	GetCollection(ctx context.Context, id string) (*core.Collection, error)

	// FindCollectionByName finds a collection by its unique name.
	// Returns ErrNotFound if no matching collection exists.
	FindCollectionByName(ctx context.Context, name string) (*core.Collection, error)

	// ListCollections retrieves all collections ordered by insertion time.
	ListCollections(ctx context.Context) ([]*core.Collection, error)

	// DeleteCollection removes a collection, its documents, and their
	// segments. Returns ErrNotFound if the collection doesn't exist.
	DeleteCollection(ctx context.Context, id string) error
}

// DocumentRepository provides operations for managing documents.
type DocumentRepository interface {
	Repository

	// PutDocument inserts or overwrites a document. Document IDs derive
	// from the URL, so re-adding the same URL overwrites the prior entry.
	// Sets InsertedAt on first write and UpdatedAt always.
	PutDocument(ctx context.Context, document *core.Document) (*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// ListDocuments retrieves all documents in a collection, ordered by
	// insertion time.
	ListDocuments(ctx context.Context, collectionID string) ([]*core.Document, error)

	// ListDocumentsByStatus retrieves a collection's documents with the
	// given status, ordered by insertion time.
	ListDocumentsByStatus(ctx context.Context, collectionID string, status core.DocumentStatus) ([]*core.Document, error)

	// SetDocumentStatus updates a document's status and error message.
	// Returns ErrNotFound if the document doesn't exist.
	SetDocumentStatus(ctx context.Context, id core.ID, status core.DocumentStatus, errorMessage string) error

	// DeleteDocument removes a document and its segments.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID) error
}

// SegmentRepository provides operations for managing enriched segments.
type SegmentRepository interface {
	Repository

	// ReplaceSegments atomically replaces all segments of a document with
	// the given batch and marks the document processed. Prior segments are
	// removed in the same transaction, so a reader never observes a mix of
	// old and new segments.
	ReplaceSegments(ctx context.Context, documentID core.ID, segments []*core.SegmentRecord) error

	// GetSegment retrieves a single segment record by ID.
	// Returns ErrNotFound if the segment doesn't exist.
	GetSegment(ctx context.Context, id core.ID) (*core.SegmentRecord, error)

	// GetSegmentsByDocument retrieves all segments of a document ordered
	// by segment index.
	GetSegmentsByDocument(ctx context.Context, documentID core.ID) ([]*core.SegmentRecord, error)

	// FindSimilar finds segments similar to the given query vector within
	// a collection. An empty collectionID searches all collections.
	// Returns segments with similarity >= minSimilarity, up to limit
	// results, ordered by similarity score (highest first) with ties
	// broken by insertion order. Returns core.ErrDimensionMismatch if any
	// stored embedding's dimension differs from the query's.
	FindSimilar(ctx context.Context, vector []float32, collectionID string, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// IterateSegments calls fn for every stored segment in key order.
	// Iteration stops on the first error, which is returned.
	IterateSegments(ctx context.Context, fn func(record *core.SegmentRecord) error) error

	// UpdateSegmentEmbeddings rewrites the embeddings of existing
	// segments. Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any segment doesn't exist.
	UpdateSegmentEmbeddings(ctx context.Context, records ...*core.SegmentRecord) error

	// CountSegments returns the total number of stored segments.
	CountSegments(ctx context.Context) (int, error)
}
