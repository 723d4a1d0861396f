package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/websift/core"
	"github.com/poiesic/websift/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{backend: backend}, nil
}

// Close implements storage.Repository. The shared backend is closed by its
// owner, not per repository.
func (r *DocumentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// PutDocument inserts or overwrites a document. IDs derive from the URL,
// so re-adding a URL overwrites the prior entry in place.
func (r *DocumentRepository) PutDocument(ctx context.Context, document *core.Document) (*core.Document, error) {
	if document.Id == 0 {
		document.Id = core.DocumentIDFromURL(document.URL)
	}
	if err := core.ValidateDocument(document); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(document.Id)

		old, err := readDocument(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if old != nil {
			// Keep the original insertion time so the collection index
			// key stays stable across overwrites.
			document.InsertedAt = old.InsertedAt
		} else if document.InsertedAt.IsZero() {
			document.InsertedAt = now
		}
		document.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalDocument(document)); err != nil {
			return err
		}

		if old == nil {
			colKey := makeDocumentColKey(document.CollectionId, document.InsertedAt, document.Id)
			if err := tx.Set(colKey, storage.MarshalID(document.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return document, nil
}

// GetDocument retrieves a document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListDocuments retrieves all documents in a collection ordered by
// insertion time. The collection index keys already sort that way.
func (r *DocumentRepository) ListDocuments(ctx context.Context, collectionID string) ([]*core.Document, error) {
	return r.listDocuments(collectionID, func(*core.Document) bool { return true })
}

// ListDocumentsByStatus retrieves a collection's documents with the given
// status, ordered by insertion time.
func (r *DocumentRepository) ListDocumentsByStatus(ctx context.Context, collectionID string, status core.DocumentStatus) ([]*core.Document, error) {
	if err := core.ValidateDocumentStatus(status); err != nil {
		return nil, err
	}
	return r.listDocuments(collectionID, func(d *core.Document) bool { return d.Status == status })
}

func (r *DocumentRepository) listDocuments(collectionID string, keep func(*core.Document) bool) ([]*core.Document, error) {
	var results []*core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialDocumentColKey(collectionID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			document, err := readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if document != nil && keep(document) {
				results = append(results, document)
			}
		}
		return nil
	}, false)
	return results, err
}

// SetDocumentStatus updates a document's status and error message.
func (r *DocumentRepository) SetDocumentStatus(ctx context.Context, id core.ID, status core.DocumentStatus, errorMessage string) error {
	if err := core.ValidateDocumentStatus(status); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		document, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if document == nil {
			return storage.ErrNotFound
		}

		document.Status = status
		document.ErrorMessage = errorMessage
		document.UpdatedAt = time.Now().UTC()

		if err := tx.Set(key, storage.MarshalDocument(document)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteDocument removes a document and its segments.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		document, err := readDocument(tx, key)
		if err != nil {
			return err
		}
		if document == nil {
			return storage.ErrNotFound
		}

		if err := deleteDocumentSegments(tx, id); err != nil {
			return err
		}

		colKey := makeDocumentColKey(document.CollectionId, document.InsertedAt, document.Id)
		if err := tx.Delete(colKey); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readDocument reads a document from the transaction.
func readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var document *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		document, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return document, err
}
