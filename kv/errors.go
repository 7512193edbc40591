package kv

import (
	"errors"
	"fmt"

	errors2 "github.com/boardgamescores/scorestore/kit/platform/errors"
)

var (
	// ErrMissingKey is returned when a record has no usable primary key.
	ErrMissingKey = errors.New("record has no string primary key")
	// ErrInvalidIndexValue is returned when a field value cannot be stored in an index.
	ErrInvalidIndexValue = errors.New("value cannot be indexed")
	// ErrNotIndexed is returned when walking a field that has no index.
	ErrNotIndexed = errors.New("field is not indexed")
)

// UnexpectedCollectionError is used when the error comes from the underlying
// buckets of a collection.
func UnexpectedCollectionError(collection string, err error) *errors2.Error {
	return &errors2.Error{
		Code: errors2.EInternal,
		Msg:  fmt.Sprintf("unexpected error in collection %q", collection),
		Op:   "kv/collection",
		Err:  err,
	}
}

// InvalidRecordError is returned when a record cannot be stored.
func InvalidRecordError(collection string, err error) *errors2.Error {
	return &errors2.Error{
		Code: errors2.EInvalid,
		Msg:  fmt.Sprintf("invalid record for collection %q", collection),
		Op:   "kv/collection",
		Err:  err,
	}
}
