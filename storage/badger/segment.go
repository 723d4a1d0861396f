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
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/websift/core"
	"github.com/poiesic/websift/storage"
)

// SegmentRepository implements storage.SegmentRepository for BadgerDB.
type SegmentRepository struct {
	backend *Backend
}

var _ storage.SegmentRepository = (*SegmentRepository)(nil)

// NewSegmentRepository creates a new SegmentRepository.
func NewSegmentRepository(backend *Backend) (*SegmentRepository, error) {
	return &SegmentRepository{backend: backend}, nil
}

// Close implements storage.Repository. The shared backend is closed by its
// owner, not per repository.
func (r *SegmentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *SegmentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// FindSimilar delegates to the backend's vector scan.
func (r *SegmentRepository) FindSimilar(ctx context.Context, vector []float32, collectionID string, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, collectionID, minSimilarity, limit)
}

// ReplaceSegments atomically replaces all segments of a document and marks
// the document processed. One transaction removes the prior segments,
// writes the batch, and updates the document row, so readers never observe
// a partially written document.
func (r *SegmentRepository) ReplaceSegments(ctx context.Context, documentID core.ID, segments []*core.SegmentRecord) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		docKey := makeDocumentKey(documentID)
		document, err := readDocument(tx, docKey)
		if err != nil {
			return err
		}
		if document == nil {
			return storage.ErrNotFound
		}

		if err := deleteDocumentSegments(tx, documentID); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, record := range segments {
			if record.Id == 0 {
				record.Id = core.SegmentRecordID(documentID, record.Index)
			}
			record.DocumentId = documentID
			if record.InsertedAt.IsZero() {
				record.InsertedAt = now
			}
			if record.UpdatedAt.IsZero() {
				record.UpdatedAt = record.InsertedAt
			}

			if err := tx.Set(makeSegmentKey(record.Id), storage.MarshalSegmentRecord(record)); err != nil {
				return err
			}
			idxKey := makeSegmentDocKey(documentID, record.Index)
			if err := tx.Set(idxKey, storage.MarshalID(record.Id)); err != nil {
				return err
			}
		}

		document.Status = core.StatusProcessed
		document.ErrorMessage = ""
		document.UpdatedAt = now
		if err := tx.Set(docKey, storage.MarshalDocument(document)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)
}

// GetSegment retrieves a single segment record by ID.
func (r *SegmentRepository) GetSegment(ctx context.Context, id core.ID) (*core.SegmentRecord, error) {
	var result *core.SegmentRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readSegmentRecord(tx, makeSegmentKey(id))
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

// GetSegmentsByDocument retrieves all segments of a document ordered by
// segment index. The index keys encode the segment index in BigEndian, so
// plain iteration order is index order.
func (r *SegmentRepository) GetSegmentsByDocument(ctx context.Context, documentID core.ID) ([]*core.SegmentRecord, error) {
	var results []*core.SegmentRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialSegmentDocKey(documentID)
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

			record, err := readSegmentRecord(tx, makeSegmentKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)
	return results, err
}

// IterateSegments calls fn for every stored segment in key order.
func (r *SegmentRepository) IterateSegments(ctx context.Context, fn func(record *core.SegmentRecord) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(segmentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var record *core.SegmentRecord
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalSegmentRecord(val)
				return err
			}); err != nil {
				return err
			}
			if record == nil {
				continue
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// UpdateSegmentEmbeddings rewrites the embeddings of existing segments.
func (r *SegmentRepository) UpdateSegmentEmbeddings(ctx context.Context, records ...*core.SegmentRecord) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, record := range records {
			key := makeSegmentKey(record.Id)
			stored, err := readSegmentRecord(tx, key)
			if err != nil {
				return err
			}
			if stored == nil {
				return storage.ErrNotFound
			}

			stored.Embedding = record.Embedding
			stored.UpdatedAt = now
			record.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalSegmentRecord(stored)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// CountSegments returns the total number of stored segments.
func (r *SegmentRepository) CountSegments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(segmentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// deleteDocumentSegments removes a document's segment records and index
// entries inside an open transaction.
func deleteDocumentSegments(tx *badger.Txn, documentID core.ID) error {
	prefix := makePartialSegmentDocKey(documentID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)

	var indexKeys [][]byte
	var segmentIDs []core.ID
	for iter.Rewind(); iter.Valid(); iter.Next() {
		indexKeys = append(indexKeys, iter.Item().KeyCopy(nil))
		var id core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			iter.Close()
			return err
		}
		segmentIDs = append(segmentIDs, id)
	}
	iter.Close()

	for _, id := range segmentIDs {
		if err := tx.Delete(makeSegmentKey(id)); err != nil {
			return err
		}
	}
	for _, key := range indexKeys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// readSegmentRecord reads a segment record from the transaction.
func readSegmentRecord(tx *badger.Txn, key []byte) (*core.SegmentRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.SegmentRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalSegmentRecord(val)
		return unmarshalErr
	})
	return record, err
}
