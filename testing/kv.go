package testing

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory returns a fresh, empty store. Implementations register their
// own cleanup with t.Cleanup.
type StoreFactory func(t *testing.T) kv.Store

// KVStore tests a kv.Store implementation.
func KVStore(t *testing.T, newStore StoreFactory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(*testing.T, kv.Store)
	}{
		{name: "buckets", fn: kvBuckets},
		{name: "rollback", fn: kvRollback},
		{name: "read only view", fn: kvReadOnlyView},
		{name: "cursor", fn: kvCursor},
		{name: "collection", fn: kvCollection},
		{name: "collection index order", fn: kvCollectionIndexOrder},
		{name: "collection index changes", fn: kvCollectionIndexChanges},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func kvBuckets(t *testing.T, s kv.Store) {
	ctx := context.Background()

	err := s.View(ctx, func(tx kv.Tx) error {
		_, err := tx.Bucket([]byte("players"))
		return err
	})
	require.True(t, errors.Is(err, kv.ErrBucketNotFound), "got %v", err)

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.CreateBucket([]byte("players"))
		if err != nil {
			return err
		}
		// creating twice is fine
		if _, err := tx.CreateBucket([]byte("players")); err != nil {
			return err
		}
		return b.Put([]byte("p1"), []byte(`{"id":"p1"}`))
	}))

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("players"))
		require.NoError(t, err)

		v, err := b.Get([]byte("p1"))
		require.NoError(t, err)
		assert.Equal(t, `{"id":"p1"}`, string(v))

		_, err = b.Get([]byte("missing"))
		assert.True(t, kv.IsNotFound(err))
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("players"))
		require.NoError(t, err)
		require.NoError(t, b.Delete([]byte("p1")))
		_, err = b.Get([]byte("p1"))
		assert.True(t, kv.IsNotFound(err))

		require.NoError(t, tx.DeleteBucket([]byte("players")))
		assert.True(t, errors.Is(tx.DeleteBucket([]byte("players")), kv.ErrBucketNotFound))
		return nil
	}))
}

func kvRollback(t *testing.T, s kv.Store) {
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.CreateBucket([]byte("players"))
		if err != nil {
			return err
		}
		return b.Put([]byte("p1"), []byte("before"))
	}))

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("players"))
		if err != nil {
			return err
		}
		if err := b.Put([]byte("p1"), []byte("after")); err != nil {
			return err
		}
		if err := b.Put([]byte("p2"), []byte("new")); err != nil {
			return err
		}
		if _, err := tx.CreateBucket([]byte("settings")); err != nil {
			return err
		}
		return boom
	})
	require.True(t, errors.Is(err, boom))

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("players"))
		require.NoError(t, err)

		v, err := b.Get([]byte("p1"))
		require.NoError(t, err)
		assert.Equal(t, "before", string(v))

		_, err = b.Get([]byte("p2"))
		assert.True(t, kv.IsNotFound(err))

		_, err = tx.Bucket([]byte("settings"))
		assert.True(t, errors.Is(err, kv.ErrBucketNotFound))
		return nil
	}))
}

func kvReadOnlyView(t *testing.T, s kv.Store) {
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		_, err := tx.CreateBucket([]byte("players"))
		return err
	}))

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("players"))
		require.NoError(t, err)
		assert.True(t, errors.Is(b.Put([]byte("k"), []byte("v")), kv.ErrTxNotWritable))
		return nil
	}))
}

func kvCursor(t *testing.T, s kv.Store) {
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.CreateBucket([]byte("letters"))
		if err != nil {
			return err
		}
		for _, k := range []string{"c", "a", "bb", "ba", "d"} {
			if err := b.Put([]byte(k), []byte("v"+k)); err != nil {
				return err
			}
		}
		_, err = tx.CreateBucket([]byte("empty"))
		return err
	}))

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("letters"))
		require.NoError(t, err)
		c, err := b.Cursor()
		require.NoError(t, err)

		var keys []string
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		assert.Equal(t, []string{"a", "ba", "bb", "c", "d"}, keys)

		k, v := c.Seek([]byte("b"))
		assert.Equal(t, "ba", string(k))
		assert.Equal(t, "vba", string(v))

		k, _ = c.Prev()
		assert.Equal(t, "a", string(k))
		k, _ = c.Prev()
		assert.Nil(t, k)

		k, _ = c.Last()
		assert.Equal(t, "d", string(k))
		k, _ = c.Next()
		assert.Nil(t, k)

		var prefixed []string
		require.NoError(t, kv.WalkPrefix(ctx, c, []byte("b"), func(k, _ []byte) (bool, error) {
			prefixed = append(prefixed, string(k))
			return true, nil
		}))
		assert.Equal(t, []string{"ba", "bb"}, prefixed)

		e, err := tx.Bucket([]byte("empty"))
		require.NoError(t, err)
		ec, err := e.Cursor()
		require.NoError(t, err)
		k, _ = ec.First()
		assert.Nil(t, k)
		return nil
	}))
}

var scoreEventsSpec = schema.MustParse("scoreEvents", "id, playerId, createdAt")

func kvCollection(t *testing.T, s kv.Store) {
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		c, err := kv.CreateCollection(tx, scoreEventsSpec)
		require.NoError(t, err)

		empty, err := c.IsEmpty()
		require.NoError(t, err)
		assert.True(t, empty)

		for _, rec := range []string{
			`{"id":"e1","playerId":"alice","delta":5,"createdAt":300}`,
			`{"id":"e2","playerId":"bob","delta":-2,"createdAt":100}`,
			`{"id":"e3","playerId":"alice","delta":1,"createdAt":200}`,
		} {
			_, err := c.Put([]byte(rec))
			require.NoError(t, err)
		}

		// move e1 from alice to bob: the old index entry must disappear
		id, err := c.Put([]byte(`{"id":"e1","playerId":"bob","delta":5,"createdAt":300}`))
		require.NoError(t, err)
		assert.Equal(t, "e1", id)

		_, err = c.Put([]byte(`{"playerId":"bob"}`))
		assert.True(t, errors.Is(err, kv.ErrMissingKey), "got %v", err)
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		c, err := kv.OpenCollection(tx, scoreEventsSpec)
		require.NoError(t, err)

		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		assert.Equal(t, []string{"e3"}, walkValue(t, ctx, c, "playerId", "alice"))
		assert.Equal(t, []string{"e1", "e2"}, walkValue(t, ctx, c, "playerId", "bob"))
		assert.Empty(t, walkValue(t, ctx, c, "playerId", "carol"))

		rec, err := c.Get("e2")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"e2","playerId":"bob","delta":-2,"createdAt":100}`, string(rec))

		err = c.WalkIndex(ctx, "delta", func(string, []byte) (bool, error) { return true, nil })
		assert.True(t, errors.Is(err, kv.ErrNotIndexed))
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		c, err := kv.OpenCollection(tx, scoreEventsSpec)
		require.NoError(t, err)
		require.NoError(t, c.Delete("e2"))
		require.NoError(t, c.Delete("never-existed"))
		assert.Equal(t, []string{"e1"}, walkValue(t, ctx, c, "playerId", "bob"))
		return nil
	}))
}

func kvCollectionIndexOrder(t *testing.T, s kv.Store) {
	ctx := context.Background()
	spec := schema.MustParse("tabularRows", "id, createdAt, order")

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		c, err := kv.CreateCollection(tx, spec)
		require.NoError(t, err)
		for _, rec := range []string{
			`{"id":"r1","createdAt":1000,"order":10}`,
			`{"id":"r2","createdAt":-5,"order":2}`,
			`{"id":"r3","createdAt":3.5,"order":2}`,
			`{"id":"r4","createdAt":0}`,
			`{"id":"r5","createdAt":"late","order":null}`,
		} {
			_, err := c.Put([]byte(rec))
			require.NoError(t, err)
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		c, err := kv.OpenCollection(tx, spec)
		require.NoError(t, err)

		// ties on order fall back to primary key; missing and null values are not indexed
		assert.Equal(t, []string{"r2", "r3", "r1"}, walkIndex(t, ctx, c, "order"))
		// numbers sort numerically, before strings
		assert.Equal(t, []string{"r2", "r4", "r3", "r1", "r5"}, walkIndex(t, ctx, c, "createdAt"))
		assert.Equal(t, []string{"r3"}, walkValue(t, ctx, c, "createdAt", 3.5))
		assert.Equal(t, []string{"r1"}, walkValue(t, ctx, c, "createdAt", 1000))
		return nil
	}))
}

func kvCollectionIndexChanges(t *testing.T, s kv.Store) {
	ctx := context.Background()
	v1 := schema.MustParse("tabularRows", "id, createdAt")
	v2 := schema.MustParse("tabularRows", "id, order")

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		c, err := kv.CreateCollection(tx, v1)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			rec := fmt.Sprintf(`{"id":"r%d","createdAt":%d,"order":%d}`, i, i, 2-i)
			_, err := c.Put([]byte(rec))
			require.NoError(t, err)
		}
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		n, err := kv.CreateIndex(ctx, tx, v2, "order")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		require.NoError(t, kv.DropIndex(tx, v1.Name, "createdAt"))
		// dropping twice is tolerated
		require.NoError(t, kv.DropIndex(tx, v1.Name, "createdAt"))
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		_, err := kv.OpenCollection(tx, v1)
		assert.True(t, errors.Is(err, kv.ErrBucketNotFound), "got %v", err)

		c, err := kv.OpenCollection(tx, v2)
		require.NoError(t, err)
		assert.Equal(t, []string{"r2", "r1", "r0"}, walkIndex(t, ctx, c, "order"))
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		return kv.DropCollection(tx, v2)
	}))
	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		_, err := tx.Bucket([]byte(v2.Name))
		assert.True(t, errors.Is(err, kv.ErrBucketNotFound))
		_, err = tx.Bucket(kv.IndexBucket(v2.Name, "order"))
		assert.True(t, errors.Is(err, kv.ErrBucketNotFound))
		return nil
	}))
}

func walkIndex(t *testing.T, ctx context.Context, c *kv.Collection, field string) []string {
	t.Helper()
	var ids []string
	require.NoError(t, c.WalkIndex(ctx, field, func(id string, _ []byte) (bool, error) {
		ids = append(ids, id)
		return true, nil
	}))
	return ids
}

func walkValue(t *testing.T, ctx context.Context, c *kv.Collection, field string, value interface{}) []string {
	t.Helper()
	var ids []string
	require.NoError(t, c.WalkIndexValue(ctx, field, value, func(id string, _ []byte) (bool, error) {
		ids = append(ids, id)
		return true, nil
	}))
	return ids
}
