package bolt_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boardgamescores/scorestore/bolt"
	"github.com/boardgamescores/scorestore/kv"
	scoretesting "github.com/boardgamescores/scorestore/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestKVStore(t *testing.T) {
	scoretesting.KVStore(t, func(t *testing.T) kv.Store {
		return NewTestKVStore(t)
	})
}

func TestKVStore_OpenLocked(t *testing.T) {
	s := NewTestKVStore(t)

	other := bolt.NewKVStore(zaptest.NewLogger(t), s.Path(), bolt.WithTimeout(50*time.Millisecond))
	err := other.Open(context.Background())
	require.Error(t, err)

	var openErr *bolt.OpenError
	require.True(t, errors.As(err, &openErr), "got %T", err)
	assert.True(t, openErr.Locked())
	assert.Equal(t, s.Path(), openErr.Path)
}

func TestKVStore_ReadOnlyMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.bolt")
	s := bolt.NewKVStore(zaptest.NewLogger(t), path, bolt.WithReadOnly)

	err := s.Open(context.Background())
	var openErr *bolt.OpenError
	require.True(t, errors.As(err, &openErr), "got %v", err)
	assert.False(t, openErr.Locked())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "read only open must not create the file")
}

func TestKVStore_Backup(t *testing.T) {
	ctx := context.Background()
	s := NewTestKVStore(t)

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.CreateBucket([]byte("players"))
		if err != nil {
			return err
		}
		return b.Put([]byte("p1"), []byte(`{"id":"p1"}`))
	}))

	var buf bytes.Buffer
	require.NoError(t, s.Backup(ctx, &buf))

	path := filepath.Join(t.TempDir(), "backup.bolt")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))

	restored := bolt.NewKVStore(zaptest.NewLogger(t), path, bolt.WithReadOnly)
	require.NoError(t, restored.Open(ctx))
	defer restored.Close()

	require.NoError(t, restored.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("players"))
		require.NoError(t, err)
		v, err := b.Get([]byte("p1"))
		require.NoError(t, err)
		assert.Equal(t, `{"id":"p1"}`, string(v))
		return nil
	}))

	err := restored.Update(ctx, func(tx kv.Tx) error {
		_, err := tx.CreateBucket([]byte("settings"))
		return err
	})
	assert.Error(t, err)
}

func TestKVStore_Buckets(t *testing.T) {
	ctx := context.Background()
	s := NewTestKVStore(t)

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		for _, name := range []string{"settings", "players"} {
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		b, err := tx.Bucket([]byte("players"))
		if err != nil {
			return err
		}
		return b.Put([]byte("p1"), []byte("{}"))
	}))

	stats, err := s.Buckets()
	require.NoError(t, err)
	assert.Equal(t, []bolt.BucketStats{
		{Name: "players", Keys: 1},
		{Name: "settings", Keys: 0},
	}, stats)
}
