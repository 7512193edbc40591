package all

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/boardgamescores/scorestore/bolt"
	"github.com/boardgamescores/scorestore/inmem"
	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/buger/jsonparser"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	firstOpen  = time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC)
	secondOpen = time.Date(2024, 9, 14, 18, 30, 0, 0, time.UTC)
)

// forEachStore runs fn against a fresh store of every implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s kv.Store)) {
	t.Run("inmem", func(t *testing.T) {
		fn(t, inmem.NewKVStore())
	})
	t.Run("bolt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), bolt.DefaultFilename)
		s := bolt.NewKVStore(zaptest.NewLogger(t), path, bolt.WithNoSync)
		require.NoError(t, s.Open(context.Background()))
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

// migrateTo brings s up to version at the time now.
func migrateTo(t *testing.T, s kv.Store, version int, now time.Time) {
	t.Helper()

	mock := clock.NewMock()
	mock.Set(now)

	m, err := migration.NewMigrator(zaptest.NewLogger(t), s, Migrations[:version]...)
	require.NoError(t, err)
	m.SetClock(mock)
	require.NoError(t, m.Up(context.Background()))
}

func schemaVersion(t *testing.T, s kv.Store) int {
	t.Helper()

	m, err := NewMigrator(zaptest.NewLogger(t), s)
	require.NoError(t, err)
	v, err := m.Version(context.Background())
	require.NoError(t, err)
	return v
}

// putRecords writes records into collection as declared at version.
func putRecords(t *testing.T, s kv.Store, version int, collection string, records ...string) {
	t.Helper()

	spec, ok := Migrations[version-1].Descriptor.Collection(collection)
	require.True(t, ok, "collection %q at version %d", collection, version)

	require.NoError(t, s.Update(context.Background(), func(tx kv.Tx) error {
		c, err := kv.OpenCollection(tx, spec)
		if err != nil {
			return err
		}
		for _, r := range records {
			if _, err := c.Put([]byte(r)); err != nil {
				return err
			}
		}
		return nil
	}))
}

// allRecords returns every record of collection as declared at version, by id.
func allRecords(t *testing.T, s kv.Store, version int, collection string) map[string][]byte {
	t.Helper()

	spec, ok := Migrations[version-1].Descriptor.Collection(collection)
	require.True(t, ok, "collection %q at version %d", collection, version)

	records := map[string][]byte{}
	require.NoError(t, s.View(context.Background(), func(tx kv.Tx) error {
		c, err := kv.OpenCollection(tx, spec)
		if err != nil {
			return err
		}
		return c.Walk(context.Background(), func(id string, record []byte) (bool, error) {
			records[id] = append([]byte(nil), record...)
			return true, nil
		})
	}))
	return records
}

func settingsRecord(t *testing.T, s kv.Store) []byte {
	t.Helper()

	records := allRecords(t, s, len(Migrations), "settings")
	require.Len(t, records, 1)
	record, ok := records["app"]
	require.True(t, ok)
	return record
}

func rowOrders(t *testing.T, s kv.Store, version int) map[string]int64 {
	t.Helper()

	orders := map[string]int64{}
	for id, record := range allRecords(t, s, version, "tabularRows") {
		order, err := jsonparser.GetInt(record, "order")
		if err != nil {
			continue
		}
		orders[id] = order
	}
	return orders
}
