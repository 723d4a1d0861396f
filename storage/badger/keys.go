package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/websift/core"
)

// Key prefixes for different data types
const (
	collectionPrefix     = "colrec"
	collectionNamePrefix = "colna"
	documentPrefix       = "docrec"
	documentColPrefix    = "doccol"
	segmentPrefix        = "segrec"
	segmentDocPrefix     = "segdoc"
)

// makeCollectionKey generates a key for a collection by ID.
func makeCollectionKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", collectionPrefix, id))
}

// makeCollectionNameKey generates a key for the collection name index.
func makeCollectionNameKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", collectionNamePrefix, name))
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeDocumentColKey generates a composite key for the collection index.
// Format: prefix:collectionID:timestamp:id
func makeDocumentColKey(collectionID string, insertedAt time.Time, id core.ID) []byte {
	prefix := fmt.Sprintf("%s:%s:", documentColPrefix, collectionID)
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(insertedAt.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialDocumentColKey generates the index prefix for one collection.
func makePartialDocumentColKey(collectionID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentColPrefix, collectionID))
}

// makeSegmentKey generates a key for a segment record by ID.
func makeSegmentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", segmentPrefix, id))
}

// makeSegmentDocKey generates a composite key for the document index.
// Format: prefix:documentID:index. BigEndian keeps the iteration order
// equal to the segment index order.
func makeSegmentDocKey(documentID core.ID, index int) []byte {
	prefix := segmentDocPrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(index))
	return buf
}

// makePartialSegmentDocKey generates the index prefix for one document.
func makePartialSegmentDocKey(documentID core.ID) []byte {
	prefix := segmentDocPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	return buf
}
