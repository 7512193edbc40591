package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/boardgamescores/scorestore/schema"
	"github.com/buger/jsonparser"
)

// Index keys are laid out as <tag><value>0x00<primary key> so that a cursor
// over an index bucket visits records ordered by field value, then by
// primary key. Numbers sort before strings.
const (
	tagNumber byte = 0x01
	tagString byte = 0x02

	indexSeparator byte = 0x00
)

// IndexBucket returns the name of the bucket holding the index of field in
// collection, in the form <collection>by<field>.
// For example: collection = scoreEvents, field = playerId -> scoreEventsbyplayerId
func IndexBucket(collection, field string) []byte {
	return []byte(fmt.Sprintf("%sby%s", collection, field))
}

// EncodeIndexValue returns the order preserving encoding of v.
// Supported values are strings and Go numeric types.
func EncodeIndexValue(v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case string:
		return encodeString(v)
	case int:
		return encodeNumber(float64(v)), nil
	case int64:
		return encodeNumber(float64(v)), nil
	case float64:
		return encodeNumber(v), nil
	default:
		return nil, fmt.Errorf("%T: %w", v, ErrInvalidIndexValue)
	}
}

func encodeString(s string) ([]byte, error) {
	if bytes.IndexByte([]byte(s), indexSeparator) >= 0 {
		return nil, fmt.Errorf("string contains NUL: %w", ErrInvalidIndexValue)
	}
	buf := make([]byte, 0, len(s)+1)
	buf = append(buf, tagString)
	return append(buf, s...), nil
}

// encodeNumber flips the sign bit of positive numbers and every bit of
// negative numbers so that big endian byte order matches numeric order.
func encodeNumber(f float64) []byte {
	bits := math.Float64bits(f)
	if f >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	buf := make([]byte, 9)
	buf[0] = tagNumber
	binary.BigEndian.PutUint64(buf[1:], bits)
	return buf
}

// indexValue extracts and encodes field from a JSON record. The boolean is
// false when the record does not carry an indexable value for field: the
// field is missing, null, a boolean, an object or an array.
func indexValue(record []byte, field string) ([]byte, bool, error) {
	raw, typ, _, err := jsonparser.Get(record, field)
	if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, false, err
	}

	switch typ {
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return nil, false, err
		}
		enc, err := encodeString(s)
		if err != nil {
			return nil, false, err
		}
		return enc, true, nil
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(raw)
		if err != nil {
			return nil, false, err
		}
		return encodeNumber(f), true, nil
	default:
		return nil, false, nil
	}
}

// primaryKey extracts the primary key of a JSON record.
func primaryKey(record []byte, field string) (string, error) {
	raw, typ, _, err := jsonparser.Get(record, field)
	if err != nil || typ != jsonparser.String {
		return "", fmt.Errorf("field %q: %w", field, ErrMissingKey)
	}
	id, err := jsonparser.ParseString(raw)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("field %q: %w", field, ErrMissingKey)
	}
	return id, nil
}

func indexKey(encoded []byte, pk string) []byte {
	key := make([]byte, 0, len(encoded)+1+len(pk))
	key = append(key, encoded...)
	key = append(key, indexSeparator)
	return append(key, pk...)
}

func insertIndex(bkt Bucket, field string, record []byte, pk string) error {
	enc, ok, err := indexValue(record, field)
	if err != nil {
		return fmt.Errorf("index %q: %w", field, err)
	}
	if !ok {
		return nil
	}
	return bkt.Put(indexKey(enc, pk), []byte(pk))
}

func removeIndex(bkt Bucket, field string, record []byte, pk string) error {
	enc, ok, err := indexValue(record, field)
	if err != nil || !ok {
		// nothing could have been indexed for this record
		return nil
	}
	return bkt.Delete(indexKey(enc, pk))
}

// CreateIndex creates the index bucket for field of an existing collection and
// populates it from every record already stored.
func CreateIndex(ctx context.Context, tx Tx, c schema.Collection, field string) (int, error) {
	records, err := tx.Bucket([]byte(c.Name))
	if err != nil {
		return 0, UnexpectedCollectionError(c.Name, err)
	}
	idx, err := tx.CreateBucket(IndexBucket(c.Name, field))
	if err != nil {
		return 0, UnexpectedCollectionError(c.Name, err)
	}

	cursor, err := records.Cursor()
	if err != nil {
		return 0, UnexpectedCollectionError(c.Name, err)
	}

	type entry struct {
		pk     string
		record []byte
	}
	var entries []entry
	if err := WalkCursor(ctx, cursor, func(k, v []byte) (bool, error) {
		entries = append(entries, entry{pk: string(k), record: append([]byte(nil), v...)})
		return true, nil
	}); err != nil {
		return 0, err
	}

	for _, e := range entries {
		if err := insertIndex(idx, field, e.record, e.pk); err != nil {
			return 0, InvalidRecordError(c.Name, err)
		}
	}
	return len(entries), nil
}

// DropIndex removes the index bucket for field of collection.
func DropIndex(tx Tx, collection, field string) error {
	if err := tx.DeleteBucket(IndexBucket(collection, field)); err != nil && !errors.Is(err, ErrBucketNotFound) {
		return UnexpectedCollectionError(collection, err)
	}
	return nil
}
