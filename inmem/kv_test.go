package inmem_test

import (
	"context"
	"testing"

	"github.com/boardgamescores/scorestore/inmem"
	"github.com/boardgamescores/scorestore/kv"
	scoretesting "github.com/boardgamescores/scorestore/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore(t *testing.T) {
	scoretesting.KVStore(t, func(t *testing.T) kv.Store {
		return inmem.NewKVStore()
	})
}

func TestKVStore_Buckets(t *testing.T) {
	ctx := context.Background()
	s := inmem.NewKVStore()

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.CreateBucket([]byte("players"))
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucket([]byte("settings")); err != nil {
			return err
		}
		return b.Put([]byte("p1"), []byte("{}"))
	}))

	assert.Equal(t, []inmem.BucketStats{
		{Name: "players", Keys: 1},
		{Name: "settings", Keys: 0},
	}, s.Buckets())
}

func TestKVStore_CursorObservesWrites(t *testing.T) {
	ctx := context.Background()
	s := inmem.NewKVStore()

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.CreateBucket([]byte("players"))
		if err != nil {
			return err
		}
		return b.Put([]byte("p1"), []byte("v1"))
	}))

	// the cursor re-seeks on every step, so it sees keys written after it was opened
	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("players"))
		require.NoError(t, err)
		c, err := b.Cursor()
		require.NoError(t, err)

		k, _ := c.First()
		require.Equal(t, "p1", string(k))
		require.NoError(t, b.Put([]byte("p2"), []byte("v2")))
		k, _ = c.Next()
		assert.Equal(t, "p2", string(k))
		return nil
	}))
}
