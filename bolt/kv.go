package bolt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/boardgamescores/scorestore/kv"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// DefaultFilename is the default file name of the store inside its directory.
const DefaultFilename = "boardgame_scores.bolt"

// DefaultTimeout bounds how long Open waits for the file lock held by
// another process.
const DefaultTimeout = time.Second

var (
	_ kv.Store     = (*KVStore)(nil)
	_ kv.Backupper = (*KVStore)(nil)
)

// OpenError is returned when the bolt file cannot be opened, for example
// because another running instance holds its lock.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("unable to open boltdb file %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Locked reports whether the open failed because the file lock is held elsewhere.
func (e *OpenError) Locked() bool {
	return errors.Is(e.Err, bolt.ErrTimeout)
}

// KVStore is a kv.Store backed by boltdb.
type KVStore struct {
	path     string
	db       *bolt.DB
	log      *zap.Logger
	noSync   bool
	readOnly bool
	timeout  time.Duration
}

// KVOption is a functional option for configuring a KVStore.
type KVOption func(*KVStore)

// WithNoSync WARNING: this is useful for tests only
// this skips fsyncing on every commit to improve
// write performance in exchange for no guarantees
// that the db will persist.
func WithNoSync(s *KVStore) {
	s.noSync = true
}

// WithReadOnly opens the file with a shared lock and rejects writes.
func WithReadOnly(s *KVStore) {
	s.readOnly = true
}

// WithTimeout sets how long Open waits for the file lock.
func WithTimeout(d time.Duration) KVOption {
	return func(s *KVStore) {
		s.timeout = d
	}
}

// NewKVStore returns an instance of KVStore with the file at
// the provided path.
func NewKVStore(log *zap.Logger, path string, opts ...KVOption) *KVStore {
	s := &KVStore{
		path:    path,
		log:     log,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the path of the bolt file.
func (s *KVStore) Path() string {
	return s.path
}

// Open creates boltDB file it doesn't exists and opens it otherwise.
func (s *KVStore) Open(ctx context.Context) error {
	// Ensure the required directory structure exists.
	if !s.readOnly {
		if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
			return &OpenError{Path: s.path, Err: fmt.Errorf("unable to create directory: %w", err)}
		}
	}

	if _, err := os.Stat(s.path); err != nil && !(os.IsNotExist(err) && !s.readOnly) {
		return &OpenError{Path: s.path, Err: err}
	}

	db, err := bolt.Open(s.path, 0600, &bolt.Options{
		Timeout:  s.timeout,
		NoSync:   s.noSync,
		ReadOnly: s.readOnly,
	})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			s.log.Error("Store is locked; is another instance running?", zap.String("path", s.path))
		}
		return &OpenError{Path: s.path, Err: err}
	}
	s.db = db

	s.log.Info("Resources opened", zap.String("path", s.path), zap.Bool("read_only", s.readOnly))
	return nil
}

// Close the connection to the bolt database
func (s *KVStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// View opens up a view transaction against the store.
func (s *KVStore) View(ctx context.Context, fn func(tx kv.Tx) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&Tx{
			tx:  tx,
			ctx: ctx,
		})
	})
}

// Update opens up an update transaction against the store.
func (s *KVStore) Update(ctx context.Context, fn func(tx kv.Tx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{
			tx:  tx,
			ctx: ctx,
		})
	})
}

// Backup writes a consistent copy of the whole database to w.
func (s *KVStore) Backup(ctx context.Context, w io.Writer) error {
	return s.db.View(func(tx *bolt.Tx) error {
		_, err := tx.WriteTo(w)
		return err
	})
}

// BucketStats describes a single top-level bucket.
type BucketStats struct {
	Name string `json:"name" yaml:"name"`
	Keys int    `json:"keys" yaml:"keys"`
}

// Buckets returns the name and key count of every top-level bucket, sorted by name.
func (s *KVStore) Buckets() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			stats = append(stats, BucketStats{Name: string(name), Keys: b.Stats().KeyN})
			return nil
		})
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats, err
}

// Tx is a light wrapper around a boltdb transaction. It implements kv.Tx.
type Tx struct {
	tx  *bolt.Tx
	ctx context.Context
}

// Context returns the context for the transaction.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// WithContext sets the context for the transaction.
func (tx *Tx) WithContext(ctx context.Context) {
	tx.ctx = ctx
}

// Bucket retrieves the bucket named b.
func (tx *Tx) Bucket(b []byte) (kv.Bucket, error) {
	bkt := tx.tx.Bucket(b)
	if bkt == nil {
		return nil, kv.ErrBucketNotFound
	}
	return &Bucket{
		bucket: bkt,
	}, nil
}

// CreateBucket creates a bucket with the provided byte slice if it does not exist.
func (tx *Tx) CreateBucket(b []byte) (kv.Bucket, error) {
	bkt, err := tx.tx.CreateBucketIfNotExists(b)
	if err != nil {
		return nil, translate(err)
	}
	return &Bucket{
		bucket: bkt,
	}, nil
}

// DeleteBucket removes the bucket named b.
func (tx *Tx) DeleteBucket(b []byte) error {
	if err := tx.tx.DeleteBucket(b); err != nil {
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return kv.ErrBucketNotFound
		}
		return translate(err)
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, bolt.ErrTxNotWritable) || errors.Is(err, bolt.ErrDatabaseReadOnly) {
		return kv.ErrTxNotWritable
	}
	return err
}

// Bucket implements kv.Bucket.
type Bucket struct {
	bucket *bolt.Bucket
}

// Get retrieves the value at the provided key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	val := b.bucket.Get(key)
	if val == nil {
		return nil, kv.ErrKeyNotFound
	}

	return val, nil
}

// Put sets the value at the provided key.
func (b *Bucket) Put(key []byte, value []byte) error {
	return translate(b.bucket.Put(key, value))
}

// Delete removes the provided key.
func (b *Bucket) Delete(key []byte) error {
	return translate(b.bucket.Delete(key))
}

// Cursor retrieves a cursor for iterating through the entries
// in the key value store.
func (b *Bucket) Cursor() (kv.Cursor, error) {
	return &Cursor{
		cursor: b.bucket.Cursor(),
	}, nil
}

// Cursor is a struct for iterating through the entries
// in the key value store.
type Cursor struct {
	cursor *bolt.Cursor
}

// Seek seeks for the first key that matches the prefix provided.
func (c *Cursor) Seek(prefix []byte) ([]byte, []byte) {
	return c.pair(c.cursor.Seek(prefix))
}

// First retrieves the first key value pair in the bucket.
func (c *Cursor) First() ([]byte, []byte) {
	return c.pair(c.cursor.First())
}

// Last retrieves the last key value pair in the bucket.
func (c *Cursor) Last() ([]byte, []byte) {
	return c.pair(c.cursor.Last())
}

// Next retrieves the next key in the bucket.
func (c *Cursor) Next() ([]byte, []byte) {
	return c.pair(c.cursor.Next())
}

// Prev retrieves the previous key in the bucket.
func (c *Cursor) Prev() ([]byte, []byte) {
	return c.pair(c.cursor.Prev())
}

func (c *Cursor) pair(k, v []byte) ([]byte, []byte) {
	if len(k) == 0 && len(v) == 0 {
		return nil, nil
	}
	return k, v
}
