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


package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/websift/core"
	"github.com/poiesic/websift/storage"
)

// CollectionRepository implements storage.CollectionRepository for BadgerDB.
type CollectionRepository struct {
	backend *Backend
}

var _ storage.CollectionRepository = (*CollectionRepository)(nil)

// NewCollectionRepository creates a new CollectionRepository.
func NewCollectionRepository(backend *Backend) (*CollectionRepository, error) {
	return &CollectionRepository{backend: backend}, nil
}

// Close implements storage.Repository. The shared backend is closed by its
// owner, not per repository.
func (r *CollectionRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *CollectionRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddCollection adds a collection to storage.
func (r *CollectionRepository) AddCollection(ctx context.Context, collection *core.Collection) (*core.Collection, error) {
	if err := core.ValidateCollection(collection); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Name uniqueness via the name index
		nameKey := makeCollectionNameKey(collection.Name)
		if _, err := tx.Get(nameKey); err == nil {
			return storage.ErrDuplicateKey
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if collection.Id == "" {
			collection.Id = uuid.NewString()
		}
		if collection.InsertedAt.IsZero() {
			collection.InsertedAt = time.Now().UTC()
		}

		key := makeCollectionKey(collection.Id)
		if err := tx.Set(key, storage.MarshalCollection(collection)); err != nil {
			return err
		}
		if err := tx.Set(nameKey, []byte(collection.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return nil, err
	}
	return collection, nil
}

// GetCollection retrieves a collection by ID.
func (r *CollectionRepository) GetCollection(ctx context.Context, id string) (*core.Collection, error) {
	var result *core.Collection
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readCollection(tx, makeCollectionKey(id))
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

// FindCollectionByName finds a collection by its unique name.
func (r *CollectionRepository) FindCollectionByName(ctx context.Context, name string) (*core.Collection, error) {
	var result *core.Collection
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCollectionNameKey(name))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}

		result, err = readCollection(tx, makeCollectionKey(id))
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

// ListCollections retrieves all collections ordered by insertion time.
func (r *CollectionRepository) ListCollections(ctx context.Context) ([]*core.Collection, error) {
	var results []*core.Collection
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(collectionPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var collection *core.Collection
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				collection, err = storage.UnmarshalCollection(val)
				return err
			}); err != nil {
				return err
			}
			if collection != nil {
				results = append(results, collection)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.Collection) int {
		return a.InsertedAt.Compare(b.InsertedAt)
	})
	return results, nil
}

// DeleteCollection removes a collection, its documents, and their segments.
func (r *CollectionRepository) DeleteCollection(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		collection, err := readCollection(tx, makeCollectionKey(id))
		if err != nil {
			return err
		}
		if collection == nil {
			return storage.ErrNotFound
		}

		// Remove documents and their segments via the collection index
		prefix := makePartialDocumentColKey(id)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)

		var indexKeys [][]byte
		var docIDs []core.ID
		for iter.Rewind(); iter.Valid(); iter.Next() {
			indexKeys = append(indexKeys, iter.Item().KeyCopy(nil))
			var docID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				docID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				iter.Close()
				return err
			}
			docIDs = append(docIDs, docID)
		}
		iter.Close()

		for _, docID := range docIDs {
			if err := deleteDocumentSegments(tx, docID); err != nil {
				return err
			}
			if err := tx.Delete(makeDocumentKey(docID)); err != nil {
				return err
			}
		}
		for _, key := range indexKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}

		if err := tx.Delete(makeCollectionNameKey(collection.Name)); err != nil {
			return err
		}
		if err := tx.Delete(makeCollectionKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readCollection reads a collection from the transaction.
func readCollection(tx *badger.Txn, key []byte) (*core.Collection, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var collection *core.Collection
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		collection, unmarshalErr = storage.UnmarshalCollection(val)
		return unmarshalErr
	})
	return collection, err
}
