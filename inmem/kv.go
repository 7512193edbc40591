package inmem

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/boardgamescores/scorestore/kv"
	"github.com/google/btree"
)

const btreeDegree = 32

var _ kv.Store = (*KVStore)(nil)

// KVStore is an in memory btree backed kv.Store.
//
// Update transactions work on lazily cloned copies of every bucket and only
// replace the live buckets when the transaction function succeeds, so a
// failed update leaves no trace.
type KVStore struct {
	mu      sync.RWMutex
	buckets map[string]*btree.BTreeG[item]
}

// NewKVStore creates an instance of a KVStore.
func NewKVStore() *KVStore {
	return &KVStore{
		buckets: map[string]*btree.BTreeG[item]{},
	}
}

// View opens up a transaction with a read lock.
func (s *KVStore) View(ctx context.Context, fn func(kv.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&Tx{
		buckets:  s.buckets,
		writable: false,
		ctx:      ctx,
	})
}

// Update opens up a transaction with a write lock.
func (s *KVStore) Update(ctx context.Context, fn func(kv.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]*btree.BTreeG[item], len(s.buckets))
	for name, t := range s.buckets {
		next[name] = t.Clone()
	}

	if err := fn(&Tx{
		buckets:  next,
		writable: true,
		ctx:      ctx,
	}); err != nil {
		return err
	}

	s.buckets = next
	return nil
}

// Buckets returns the name and key count of every bucket, sorted by name.
func (s *KVStore) Buckets() []BucketStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]BucketStats, 0, len(s.buckets))
	for name, t := range s.buckets {
		stats = append(stats, BucketStats{Name: name, Keys: t.Len()})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Close is a no-op; it lets the store stand in wherever a closable store is expected.
func (s *KVStore) Close() error {
	return nil
}

// BucketStats describes a single bucket.
type BucketStats struct {
	Name string
	Keys int
}

// Tx is an in memory transaction.
type Tx struct {
	buckets  map[string]*btree.BTreeG[item]
	writable bool
	ctx      context.Context
}

// Context returns the context for the transaction.
func (t *Tx) Context() context.Context {
	return t.ctx
}

// WithContext sets the context for the transaction.
func (t *Tx) WithContext(ctx context.Context) {
	t.ctx = ctx
}

// Bucket retrieves the bucket named b.
func (t *Tx) Bucket(b []byte) (kv.Bucket, error) {
	tree, ok := t.buckets[string(b)]
	if !ok {
		return nil, kv.ErrBucketNotFound
	}
	return &Bucket{tree: tree, writable: t.writable}, nil
}

// CreateBucket creates a btree bucket at the provided key if it does not exist.
func (t *Tx) CreateBucket(b []byte) (kv.Bucket, error) {
	if !t.writable {
		return nil, kv.ErrTxNotWritable
	}
	tree, ok := t.buckets[string(b)]
	if !ok {
		tree = btree.NewG[item](btreeDegree, less)
		t.buckets[string(b)] = tree
	}
	return &Bucket{tree: tree, writable: true}, nil
}

// DeleteBucket removes the bucket named b.
func (t *Tx) DeleteBucket(b []byte) error {
	if !t.writable {
		return kv.ErrTxNotWritable
	}
	if _, ok := t.buckets[string(b)]; !ok {
		return kv.ErrBucketNotFound
	}
	delete(t.buckets, string(b))
	return nil
}

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Bucket is a btree that implements kv.Bucket.
type Bucket struct {
	tree     *btree.BTreeG[item]
	writable bool
}

// Get retrieves the value at the provided key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	i, ok := b.tree.Get(item{key: key})
	if !ok {
		return nil, kv.ErrKeyNotFound
	}
	return i.value, nil
}

// Put sets the key value pair provided.
func (b *Bucket) Put(key []byte, value []byte) error {
	if !b.writable {
		return kv.ErrTxNotWritable
	}
	b.tree.ReplaceOrInsert(item{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
	return nil
}

// Delete removes the key provided.
func (b *Bucket) Delete(key []byte) error {
	if !b.writable {
		return kv.ErrTxNotWritable
	}
	b.tree.Delete(item{key: key})
	return nil
}

// Cursor returns a cursor which walks the btree with Ascend and Descend,
// re-seeking from the last visited key on every step.
func (b *Bucket) Cursor() (kv.Cursor, error) {
	return &Cursor{tree: b.tree}, nil
}

// Cursor is a kv.Cursor over a btree bucket.
type Cursor struct {
	tree *btree.BTreeG[item]
	key  []byte
}

func (c *Cursor) set(i item, ok bool) ([]byte, []byte) {
	if !ok {
		c.key = nil
		return nil, nil
	}
	c.key = i.key
	return i.key, i.value
}

// Seek moves the cursor to the first key greater than or equal to prefix.
func (c *Cursor) Seek(prefix []byte) ([]byte, []byte) {
	var found item
	var ok bool
	c.tree.AscendGreaterOrEqual(item{key: prefix}, func(i item) bool {
		found, ok = i, true
		return false
	})
	return c.set(found, ok)
}

// First moves the cursor to the first key in the bucket.
func (c *Cursor) First() ([]byte, []byte) {
	found, ok := c.tree.Min()
	return c.set(found, ok)
}

// Last moves the cursor to the last key in the bucket.
func (c *Cursor) Last() ([]byte, []byte) {
	found, ok := c.tree.Max()
	return c.set(found, ok)
}

// Next moves the cursor to the key following the current one.
func (c *Cursor) Next() ([]byte, []byte) {
	if c.key == nil {
		return nil, nil
	}
	var found item
	var ok bool
	c.tree.AscendGreaterOrEqual(item{key: c.key}, func(i item) bool {
		if bytes.Equal(i.key, c.key) {
			return true
		}
		found, ok = i, true
		return false
	})
	return c.set(found, ok)
}

// Prev moves the cursor to the key preceding the current one.
func (c *Cursor) Prev() ([]byte, []byte) {
	if c.key == nil {
		return nil, nil
	}
	var found item
	var ok bool
	c.tree.DescendLessOrEqual(item{key: c.key}, func(i item) bool {
		if bytes.Equal(i.key, c.key) {
			return true
		}
		found, ok = i, true
		return false
	})
	return c.set(found, ok)
}
