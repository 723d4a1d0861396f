package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is derived from entity content so that re-ingesting the same input
// produces the same identity (overwrite-by-id semantics).
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentIDFromURL derives a document's ID from its URL.
// Processing the same URL twice overwrites the earlier document.
func DocumentIDFromURL(url string) ID {
	return IDFromContent(url)
}

// SegmentRecordID derives a segment record's ID from its parent document
// and its position within that document.
func SegmentRecordID(documentID ID, index int) ID {
	return IDFromContent(strconv.FormatUint(uint64(documentID), 16) + ":" + strconv.Itoa(index))
}

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus int

const (
	// StatusPending means the document has not been processed, or a
	// previous processing run was interrupted before committing.
	StatusPending DocumentStatus = iota + 1
	// StatusProcessing means an ingestion run currently owns the document.
	StatusProcessing
	// StatusProcessed means at least one segment was enriched and committed.
	StatusProcessed
	// StatusFailed means no segment could be enriched, or the document
	// yielded no segments at all.
	StatusFailed
)

// String returns the lowercase status name used in logs and CLI output.
func (s DocumentStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusProcessed:
		return "processed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseDocumentStatus returns the status named by s, the inverse of
// DocumentStatus.String.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "processing":
		return StatusProcessing, nil
	case "processed":
		return StatusProcessed, nil
	case "failed":
		return StatusFailed, nil
	default:
		return 0, fmt.Errorf("%w: unknown name %q", ErrInvalidStatus, s)
	}
}

// Collection groups documents that share segmentation parameters and
// form one search scope.
type Collection struct {
	Id          string // UUID
	Name        string
	Description string
	Capacity    int // segment capacity in tokens
	Overlap     int // segment overlap in tokens
	InsertedAt  time.Time
}

// Document represents a single web page ingested into a collection.
type Document struct {
	Id           ID
	CollectionId string
	URL          string
	Title        string
	CleanText    string
	WordCount    int
	Status       DocumentStatus
	ErrorMessage string
	InsertedAt   time.Time
	UpdatedAt    time.Time
}

// Segment is a bounded-size slice of a document's text, produced by the
// segmenter. Index is its 0-based position in the source document and is
// never reassigned; it determines the ordering of all downstream results.
type Segment struct {
	Index      int
	Text       string
	TokenCount int
}

// SegmentRecord is an enriched segment as persisted by the sink.
// Summary and RetrievalContext are best-effort and may be empty.
type SegmentRecord struct {
	Id               ID
	DocumentId       ID
	Index            int
	Text             string
	TokenCount       int
	Summary          string
	RetrievalContext string
	Embedding        []float32
	InsertedAt       time.Time
	UpdatedAt        time.Time
}

// SearchResult pairs a stored segment with its similarity to a query
// vector. Produced by the storage layer's native similarity scan.
type SearchResult struct {
	Record     *SegmentRecord
	Similarity float32
}

// RankedMatch is a similarity search hit: the stored segment together
// with its source document fields and the similarity score. Score is the
// relevance used for ordering and may exceed Similarity when a verbatim
// keyword boost applies.
type RankedMatch struct {
	Record     *SegmentRecord
	URL        string
	Title      string
	Similarity float32
	Score      float32
}
