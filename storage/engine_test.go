package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/bolt"
	errors2 "github.com/boardgamescores/scorestore/kit/platform/errors"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/kv/migration/all"
	"github.com/boardgamescores/scorestore/schema"
	"github.com/boardgamescores/scorestore/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestConfig(t *testing.T) storage.Config {
	t.Helper()

	c := storage.NewConfig()
	c.Path = filepath.Join(t.TempDir(), bolt.DefaultFilename)
	c.NoSync = true
	c.Timeout = 100 * time.Millisecond
	return c
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t)

	e, err := storage.Open(ctx, zaptest.NewLogger(t), c)
	require.NoError(t, err)

	version, err := e.Migrator().Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(all.Migrations), version)

	settings, err := e.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, scorestore.SimpleScoring, settings.ScoringMode)
	assert.Equal(t, settings.CreatedAt, settings.UpdatedAt)
	assert.False(t, settings.SessionStarted)

	require.NoError(t, e.CreatePlayer(ctx, &scorestore.Player{Name: "Ada"}))
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	// data and version survive a reopen
	e, err = storage.Open(ctx, zaptest.NewLogger(t), c)
	require.NoError(t, err)
	defer e.Close()

	players, err := e.ListPlayers(ctx)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Ada", players[0].Name)

	pending, err := e.Migrator().Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOpen_InMemory(t *testing.T) {
	ctx := context.Background()
	c := storage.NewConfig()
	c.InMemory = true

	e, err := storage.Open(ctx, zaptest.NewLogger(t), c)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.GetSettings(ctx)
	require.NoError(t, err)
}

func TestOpen_Locked(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t)

	first, err := storage.Open(ctx, zaptest.NewLogger(t), c)
	require.NoError(t, err)
	defer first.Close()

	_, err = storage.Open(ctx, zaptest.NewLogger(t), c)
	require.Error(t, err)
	assert.Equal(t, errors2.EUnavailable, errors2.ErrorCode(err))
	assert.Equal(t, "data store unavailable", errors2.ErrorMessage(err))

	var openErr *bolt.OpenError
	require.True(t, errors.As(err, &openErr), "got %v", err)
	assert.True(t, openErr.Locked())
}

func TestOpen_NewerStore(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t)

	// a later build added a version this one does not know
	s := bolt.NewKVStore(zaptest.NewLogger(t), c.Path, bolt.WithNoSync)
	require.NoError(t, s.Open(ctx))
	next := all.Latest()
	next.Version++
	specs := append(all.Migrations[:], migration.Spec{Name: "from the future", Descriptor: next})
	m, err := migration.NewMigrator(zaptest.NewLogger(t), s, specs...)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))
	require.NoError(t, s.Close())

	_, err = storage.Open(ctx, zaptest.NewLogger(t), c)
	require.Error(t, err)
	assert.Equal(t, errors2.EUnavailable, errors2.ErrorCode(err))

	var merr *migration.MigrationError
	require.True(t, errors.As(err, &merr), "got %v", err)
	assert.Equal(t, len(all.Migrations)+1, merr.Version)
	assert.True(t, errors.Is(err, schema.ErrUnknownVersion))

	// the failed open released the file
	s = bolt.NewKVStore(zaptest.NewLogger(t), c.Path, bolt.WithTimeout(100*time.Millisecond))
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Close())
}

func TestOpen_Backup(t *testing.T) {
	ctx := context.Background()
	c := newTestConfig(t)

	// a store stopped at version 3
	s := bolt.NewKVStore(zaptest.NewLogger(t), c.Path, bolt.WithNoSync)
	require.NoError(t, s.Open(ctx))
	m, err := migration.NewMigrator(zaptest.NewLogger(t), s, all.Migrations[:3]...)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))
	require.NoError(t, s.Close())

	c.BackupPath = filepath.Join(t.TempDir(), "pre-migration.bolt")
	e, err := storage.Open(ctx, zaptest.NewLogger(t), c)
	require.NoError(t, err)
	defer e.Close()

	backup := bolt.NewKVStore(zaptest.NewLogger(t), c.BackupPath, bolt.WithReadOnly)
	require.NoError(t, backup.Open(ctx))
	defer backup.Close()
	old, err := all.NewMigrator(zaptest.NewLogger(t), backup)
	require.NoError(t, err)
	version, err := old.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestEngine_PrometheusCollectors(t *testing.T) {
	ctx := context.Background()
	e, err := storage.Open(ctx, zaptest.NewLogger(t), newTestConfig(t))
	require.NoError(t, err)
	defer e.Close()

	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(e.PrometheusCollectors()...)

	n, err := testutil.GatherAndCount(reg, "scorestore_schema_version", "scorestore_bucket_keys")
	require.NoError(t, err)
	assert.Greater(t, n, 1)
}
