package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/boardgamescores/scorestore/schema"
)

// Collection is a named group of JSON records stored in a bucket keyed by
// primary key, plus one index bucket per indexed field. Every write through a
// Collection keeps its indexes in step with the records.
//
// A Collection is bound to the transaction it was opened in.
type Collection struct {
	spec    schema.Collection
	records Bucket
	indexes map[string]Bucket
}

// OpenCollection opens an existing collection in tx. It fails when the record
// bucket or any declared index bucket has not been materialized.
func OpenCollection(tx Tx, spec schema.Collection) (*Collection, error) {
	records, err := tx.Bucket([]byte(spec.Name))
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", spec.Name, err)
	}

	c := &Collection{
		spec:    spec,
		records: records,
		indexes: make(map[string]Bucket, len(spec.Indexes)),
	}
	for _, field := range spec.Indexes {
		bkt, err := tx.Bucket(IndexBucket(spec.Name, field))
		if err != nil {
			return nil, fmt.Errorf("collection %q index %q: %w", spec.Name, field, err)
		}
		c.indexes[field] = bkt
	}
	return c, nil
}

// CreateCollection creates the record and index buckets of spec if they are
// missing and opens the collection.
func CreateCollection(tx Tx, spec schema.Collection) (*Collection, error) {
	if _, err := tx.CreateBucket([]byte(spec.Name)); err != nil {
		return nil, UnexpectedCollectionError(spec.Name, err)
	}
	for _, field := range spec.Indexes {
		if _, err := tx.CreateBucket(IndexBucket(spec.Name, field)); err != nil {
			return nil, UnexpectedCollectionError(spec.Name, err)
		}
	}
	return OpenCollection(tx, spec)
}

// DropCollection deletes the record and index buckets of spec.
func DropCollection(tx Tx, spec schema.Collection) error {
	for _, field := range spec.Indexes {
		if err := DropIndex(tx, spec.Name, field); err != nil {
			return err
		}
	}
	if err := tx.DeleteBucket([]byte(spec.Name)); err != nil && !errors.Is(err, ErrBucketNotFound) {
		return UnexpectedCollectionError(spec.Name, err)
	}
	return nil
}

// Spec returns the declaration the collection was opened with.
func (c *Collection) Spec() schema.Collection {
	return c.spec
}

// Get returns a copy of the record stored under id, or ErrKeyNotFound.
func (c *Collection) Get(id string) ([]byte, error) {
	v, err := c.records.Get([]byte(id))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), v...), nil
}

// Put stores record under the primary key it carries, replacing any previous
// record with that key, and returns the key.
func (c *Collection) Put(record []byte) (string, error) {
	id, err := primaryKey(record, c.spec.PrimaryKey)
	if err != nil {
		return "", InvalidRecordError(c.spec.Name, err)
	}

	// validate every index value before touching any bucket
	for _, field := range c.spec.Indexes {
		if _, _, err := indexValue(record, field); err != nil {
			return "", InvalidRecordError(c.spec.Name, fmt.Errorf("field %q: %w", field, err))
		}
	}

	if err := c.unindex(id); err != nil {
		return "", err
	}
	if err := c.records.Put([]byte(id), record); err != nil {
		return "", UnexpectedCollectionError(c.spec.Name, err)
	}
	for _, field := range c.spec.Indexes {
		if err := insertIndex(c.indexes[field], field, record, id); err != nil {
			return "", UnexpectedCollectionError(c.spec.Name, err)
		}
	}
	return id, nil
}

// Delete removes the record stored under id. Deleting a missing record is not an error.
func (c *Collection) Delete(id string) error {
	if err := c.unindex(id); err != nil {
		return err
	}
	if err := c.records.Delete([]byte(id)); err != nil {
		return UnexpectedCollectionError(c.spec.Name, err)
	}
	return nil
}

// unindex removes the index entries of the record currently stored under id.
func (c *Collection) unindex(id string) error {
	old, err := c.records.Get([]byte(id))
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return UnexpectedCollectionError(c.spec.Name, err)
	}
	old = append([]byte(nil), old...)

	for _, field := range c.spec.Indexes {
		if err := removeIndex(c.indexes[field], field, old, id); err != nil {
			return UnexpectedCollectionError(c.spec.Name, err)
		}
	}
	return nil
}

// Walk calls fn for every record in primary key order until fn returns false.
// fn must not write to the collection.
func (c *Collection) Walk(ctx context.Context, fn func(id string, record []byte) (bool, error)) error {
	cursor, err := c.records.Cursor()
	if err != nil {
		return UnexpectedCollectionError(c.spec.Name, err)
	}
	return WalkCursor(ctx, cursor, func(k, v []byte) (bool, error) {
		return fn(string(k), v)
	})
}

// WalkIndex calls fn for every record carrying an indexable value for field,
// ordered by that value and then by primary key.
// fn must not write to the collection.
func (c *Collection) WalkIndex(ctx context.Context, field string, fn func(id string, record []byte) (bool, error)) error {
	return c.walkIndex(ctx, field, nil, fn)
}

// WalkIndexValue calls fn for every record whose field equals value.
// fn must not write to the collection.
func (c *Collection) WalkIndexValue(ctx context.Context, field string, value interface{}, fn func(id string, record []byte) (bool, error)) error {
	enc, err := EncodeIndexValue(value)
	if err != nil {
		return err
	}
	return c.walkIndex(ctx, field, append(enc, indexSeparator), fn)
}

func (c *Collection) walkIndex(ctx context.Context, field string, prefix []byte, fn func(id string, record []byte) (bool, error)) error {
	idx, ok := c.indexes[field]
	if !ok {
		return fmt.Errorf("collection %q field %q: %w", c.spec.Name, field, ErrNotIndexed)
	}
	cursor, err := idx.Cursor()
	if err != nil {
		return UnexpectedCollectionError(c.spec.Name, err)
	}

	return walk(ctx, cursor, prefix, func(_, pk []byte) (bool, error) {
		record, err := c.records.Get(pk)
		if err != nil {
			return false, UnexpectedCollectionError(c.spec.Name, fmt.Errorf("index %q points at %q: %w", field, pk, err))
		}
		return fn(string(pk), record)
	})
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	n := 0
	err := c.Walk(ctx, func(string, []byte) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

// IsEmpty reports whether the collection holds no record.
func (c *Collection) IsEmpty() (bool, error) {
	cursor, err := c.records.Cursor()
	if err != nil {
		return false, UnexpectedCollectionError(c.spec.Name, err)
	}
	k, _ := cursor.First()
	return k == nil, nil
}
