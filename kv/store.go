package kv

import (
	"bytes"
	"context"
	"errors"
	"io"
)

var (
	// ErrKeyNotFound is the error returned when the key requested is not found.
	ErrKeyNotFound = errors.New("key not found")
	// ErrBucketNotFound is the error returned when a bucket has not been created.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrTxNotWritable is the error returned when an mutable operation is called during
	// a non-writable transaction.
	ErrTxNotWritable = errors.New("transaction is not writable")
)

// IsNotFound returns a boolean indicating whether the error is known to report that a key
// was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// Store is an interface for a generic key value store. It is modeled after
// the boltdb database struct.
type Store interface {
	// View opens up a transaction that will not write to any data. Implementing interfaces
	// should take care to ensure that all view transactions do not mutate any data.
	View(ctx context.Context, fn func(Tx) error) error
	// Update opens up a transaction that will mutate data. If fn returns an error
	// every write made through the transaction is discarded.
	Update(ctx context.Context, fn func(Tx) error) error
}

// Backupper is implemented by stores which can write a consistent copy of
// their entire contents.
type Backupper interface {
	Backup(ctx context.Context, w io.Writer) error
}

// Tx is a transaction in the store.
type Tx interface {
	// Bucket returns the named bucket or ErrBucketNotFound.
	Bucket(name []byte) (Bucket, error)
	// CreateBucket creates the named bucket if it does not exist and returns it.
	CreateBucket(name []byte) (Bucket, error)
	// DeleteBucket removes the named bucket and everything in it.
	// Deleting a missing bucket returns ErrBucketNotFound.
	DeleteBucket(name []byte) error
	Context() context.Context
	WithContext(ctx context.Context)
}

// Bucket is the abstraction used to perform get/put/delete/get-many operations
// in a key value store.
type Bucket interface {
	// Get returns the value at key or ErrKeyNotFound.
	// The returned slice is only valid for the life of the transaction.
	Get(key []byte) ([]byte, error)
	Cursor() (Cursor, error)
	// Put should error if the transaction it was called in is not writable.
	Put(key, value []byte) error
	// Delete should error if the transaction it was called in is not writable.
	Delete(key []byte) error
}

// Cursor is an abstraction for iterating/ranging through data. Keys are
// visited in byte order. A nil key marks the end of the iteration.
type Cursor interface {
	Seek(prefix []byte) (k []byte, v []byte)
	First() (k []byte, v []byte)
	Last() (k []byte, v []byte)
	Next() (k []byte, v []byte)
	Prev() (k []byte, v []byte)
}

// WalkCursor consumes the cursor from its first key, calling fn for each
// key value pair until fn returns false, fn returns an error or the context
// is done.
func WalkCursor(ctx context.Context, cursor Cursor, fn func(k, v []byte) (bool, error)) error {
	return walk(ctx, cursor, nil, fn)
}

// WalkPrefix is like WalkCursor but visits only the keys starting with prefix.
func WalkPrefix(ctx context.Context, cursor Cursor, prefix []byte, fn func(k, v []byte) (bool, error)) error {
	return walk(ctx, cursor, prefix, fn)
}

func walk(ctx context.Context, cursor Cursor, prefix []byte, fn func(k, v []byte) (bool, error)) error {
	var k, v []byte
	if prefix == nil {
		k, v = cursor.First()
	} else {
		k, v = cursor.Seek(prefix)
	}

	for ; k != nil; k, v = cursor.Next() {
		if prefix != nil && !bytes.HasPrefix(k, prefix) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		next, err := fn(k, v)
		if err != nil {
			return err
		}
		if !next {
			return nil
		}
	}
	return nil
}
