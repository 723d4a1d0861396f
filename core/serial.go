package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the entities persisted by the storage layer.
// Timestamps are stored as microsecond unix values.

var embeddingMUS = ord.NewSliceSer[float32](raw.Float32)

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

// IDMUS serializes IDs with varint encoding.
var IDMUS = idMUS{}

type idMUS struct{}

func (idMUS) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idMUS) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

// DocumentStatusMUS serializes DocumentStatus values.
var DocumentStatusMUS = documentStatusMUS{}

type documentStatusMUS struct{}

func (documentStatusMUS) Marshal(s DocumentStatus, bs []byte) int {
	return varint.Int.Marshal(int(s), bs)
}

func (documentStatusMUS) Unmarshal(bs []byte) (DocumentStatus, int, error) {
	v, n, err := varint.Int.Unmarshal(bs)
	return DocumentStatus(v), n, err
}

func (documentStatusMUS) Size(s DocumentStatus) int {
	return varint.Int.Size(int(s))
}

// CollectionMUS serializes Collection values.
var CollectionMUS = collectionMUS{}

type collectionMUS struct{}

func (collectionMUS) Marshal(c Collection, bs []byte) (n int) {
	n = ord.String.Marshal(c.Id, bs)
	n += ord.String.Marshal(c.Name, bs[n:])
	n += ord.String.Marshal(c.Description, bs[n:])
	n += varint.Int.Marshal(c.Capacity, bs[n:])
	n += varint.Int.Marshal(c.Overlap, bs[n:])
	n += marshalTime(c.InsertedAt, bs[n:])
	return n
}

func (collectionMUS) Unmarshal(bs []byte) (c Collection, n int, err error) {
	var m int
	if c.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if c.Name, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.Description, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.Capacity, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.Overlap, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	if c.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return c, n + m, err
	}
	n += m
	return c, n, nil
}

func (collectionMUS) Size(c Collection) (size int) {
	size = ord.String.Size(c.Id)
	size += ord.String.Size(c.Name)
	size += ord.String.Size(c.Description)
	size += varint.Int.Size(c.Capacity)
	size += varint.Int.Size(c.Overlap)
	size += sizeTime(c.InsertedAt)
	return size
}

// DocumentMUS serializes Document values.
var DocumentMUS = documentMUS{}

type documentMUS struct{}

func (documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = IDMUS.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.CollectionId, bs[n:])
	n += ord.String.Marshal(d.URL, bs[n:])
	n += ord.String.Marshal(d.Title, bs[n:])
	n += ord.String.Marshal(d.CleanText, bs[n:])
	n += varint.Int.Marshal(d.WordCount, bs[n:])
	n += DocumentStatusMUS.Marshal(d.Status, bs[n:])
	n += ord.String.Marshal(d.ErrorMessage, bs[n:])
	n += marshalTime(d.InsertedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	return n
}

func (documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var m int
	if d.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if d.CollectionId, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.URL, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.Title, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.CleanText, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.WordCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.Status, m, err = DocumentStatusMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.ErrorMessage, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	if d.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + m, err
	}
	n += m
	return d, n, nil
}

func (documentMUS) Size(d Document) (size int) {
	size = IDMUS.Size(d.Id)
	size += ord.String.Size(d.CollectionId)
	size += ord.String.Size(d.URL)
	size += ord.String.Size(d.Title)
	size += ord.String.Size(d.CleanText)
	size += varint.Int.Size(d.WordCount)
	size += DocumentStatusMUS.Size(d.Status)
	size += ord.String.Size(d.ErrorMessage)
	size += sizeTime(d.InsertedAt)
	size += sizeTime(d.UpdatedAt)
	return size
}

// SegmentRecordMUS serializes SegmentRecord values.
var SegmentRecordMUS = segmentRecordMUS{}

type segmentRecordMUS struct{}

func (segmentRecordMUS) Marshal(r SegmentRecord, bs []byte) (n int) {
	n = IDMUS.Marshal(r.Id, bs)
	n += IDMUS.Marshal(r.DocumentId, bs[n:])
	n += varint.Int.Marshal(r.Index, bs[n:])
	n += ord.String.Marshal(r.Text, bs[n:])
	n += varint.Int.Marshal(r.TokenCount, bs[n:])
	n += ord.String.Marshal(r.Summary, bs[n:])
	n += ord.String.Marshal(r.RetrievalContext, bs[n:])
	n += embeddingMUS.Marshal(r.Embedding, bs[n:])
	n += marshalTime(r.InsertedAt, bs[n:])
	n += marshalTime(r.UpdatedAt, bs[n:])
	return n
}

func (segmentRecordMUS) Unmarshal(bs []byte) (r SegmentRecord, n int, err error) {
	var m int
	if r.Id, n, err = IDMUS.Unmarshal(bs); err != nil {
		return
	}
	if r.DocumentId, m, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Index, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Text, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.TokenCount, m, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Summary, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.RetrievalContext, m, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.Embedding, m, err = embeddingMUS.Unmarshal(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.InsertedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	if r.UpdatedAt, m, err = unmarshalTime(bs[n:]); err != nil {
		return r, n + m, err
	}
	n += m
	return r, n, nil
}

func (segmentRecordMUS) Size(r SegmentRecord) (size int) {
	size = IDMUS.Size(r.Id)
	size += IDMUS.Size(r.DocumentId)
	size += varint.Int.Size(r.Index)
	size += ord.String.Size(r.Text)
	size += varint.Int.Size(r.TokenCount)
	size += ord.String.Size(r.Summary)
	size += ord.String.Size(r.RetrievalContext)
	size += embeddingMUS.Size(r.Embedding)
	size += sizeTime(r.InsertedAt)
	size += sizeTime(r.UpdatedAt)
	return size
}
