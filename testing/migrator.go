package testing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

// CountingStore wraps a kv.Store and counts the update transactions opened
// through it.
type CountingStore struct {
	kv.Store

	mu      sync.Mutex
	updates int
}

// Update counts the call and delegates to the wrapped store.
func (s *CountingStore) Update(ctx context.Context, fn func(kv.Tx) error) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	return s.Store.Update(ctx, fn)
}

// Updates returns the number of update transactions opened so far.
func (s *CountingStore) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// NewTestMigrator returns a migrator over store whose clock is mock.
func NewTestMigrator(t *testing.T, store kv.Store, mock clock.Clock, specs ...migration.Spec) *migration.Migrator {
	t.Helper()

	m, err := migration.NewMigrator(zaptest.NewLogger(t), store, specs...)
	require.NoError(t, err)
	m.SetClock(mock)
	return m
}

// Migrator tests the migration executor against a kv.Store implementation.
func Migrator(t *testing.T, newStore StoreFactory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(*testing.T, kv.Store)
	}{
		{name: "applies every version in order", fn: migratorAppliesInOrder},
		{name: "idempotent at latest version", fn: migratorIdempotent},
		{name: "rolls back a failed version", fn: migratorRollsBack},
		{name: "resumes after a failed version", fn: migratorResumes},
		{name: "redefines indexes", fn: migratorRedefinesIndexes},
		{name: "drops collections", fn: migratorDropsCollections},
		{name: "undeclared collection", fn: migratorUndeclaredCollection},
		{name: "refuses to downgrade", fn: migratorRefusesDowngrade},
		{name: "stops between versions when canceled", fn: migratorCanceled},
		{name: "serializes concurrent runs", fn: migratorSerializes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func playersV1() schema.Descriptor {
	return schema.MustDescriptor(1, map[string]string{"players": "id, createdAt"})
}

func playersV2() schema.Descriptor {
	return schema.MustDescriptor(2, map[string]string{
		"players":     "id, createdAt",
		"scoreEvents": "id, playerId, createdAt",
	})
}

func putRecord(name string, record string) migration.UpgradeFunc {
	return func(ctx context.Context, tx *migration.Tx) error {
		c, err := tx.Collection(name)
		if err != nil {
			return err
		}
		_, err = c.Put([]byte(record))
		return err
	}
}

func collectionIDs(t *testing.T, s kv.Store, spec schema.Collection) []string {
	t.Helper()

	var ids []string
	require.NoError(t, s.View(context.Background(), func(tx kv.Tx) error {
		c, err := kv.OpenCollection(tx, spec)
		if err != nil {
			return err
		}
		return c.Walk(context.Background(), func(id string, _ []byte) (bool, error) {
			ids = append(ids, id)
			return true, nil
		})
	}))
	return ids
}

func bucketExists(t *testing.T, s kv.Store, name []byte) bool {
	t.Helper()

	var exists bool
	require.NoError(t, s.View(context.Background(), func(tx kv.Tx) error {
		_, err := tx.Bucket(name)
		if errors.Is(err, kv.ErrBucketNotFound) {
			return nil
		}
		exists = err == nil
		return err
	}))
	return exists
}

func migratorAppliesInOrder(t *testing.T, s kv.Store) {
	ctx := context.Background()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC))

	var order []int
	record := func(ctx context.Context, tx *migration.Tx) error {
		order = append(order, tx.Version())
		assert.Equal(t, mock.Now().UTC(), tx.Now())
		return nil
	}

	m := NewTestMigrator(t, s, mock,
		migration.Spec{Name: "initial collections", Descriptor: playersV1(), Up: record},
		migration.Spec{Name: "add score events", Descriptor: playersV2(), Up: record},
	)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, m.Up(ctx))
	assert.Equal(t, []int{1, 2}, order)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	migrations, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	for i, mig := range migrations {
		assert.Equal(t, i+1, mig.Version)
		assert.Equal(t, migration.UpMigrationState, mig.State)
		require.NotNil(t, mig.StartedAt)
		require.NotNil(t, mig.FinishedAt)
		assert.True(t, mig.StartedAt.Equal(mock.Now()))
	}
	assert.Equal(t, "add score events", migrations[1].Name)

	pending, err = m.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		d, ok, err := migration.ReadDescriptor(tx)
		if err != nil {
			return err
		}
		require.True(t, ok)
		assert.Equal(t, playersV2(), d)
		return nil
	}))
	assert.True(t, bucketExists(t, s, kv.IndexBucket("scoreEvents", "playerId")))
}

func migratorIdempotent(t *testing.T, s kv.Store) {
	ctx := context.Background()
	calls := 0
	count := func(context.Context, *migration.Tx) error {
		calls++
		return nil
	}
	specs := []migration.Spec{
		{Name: "initial collections", Descriptor: playersV1(), Up: count},
		{Name: "add score events", Descriptor: playersV2(), Up: count},
	}

	require.NoError(t, NewTestMigrator(t, s, clock.NewMock(), specs...).Up(ctx))
	require.Equal(t, 2, calls)

	counting := &CountingStore{Store: s}
	m := NewTestMigrator(t, counting, clock.NewMock(), specs...)
	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx))

	assert.Equal(t, 2, calls)
	assert.Zero(t, counting.Updates())
}

func migratorRollsBack(t *testing.T, s kv.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	m := NewTestMigrator(t, s, clock.NewMock(),
		migration.Spec{Name: "initial collections", Descriptor: playersV1(), Up: putRecord("players", `{"id":"p1","createdAt":1}`)},
		migration.Spec{Name: "add score events", Descriptor: playersV2(), Up: func(ctx context.Context, tx *migration.Tx) error {
			players, err := tx.Collection("players")
			if err != nil {
				return err
			}
			if _, err := players.Put([]byte(`{"id":"p1","createdAt":2,"name":"changed"}`)); err != nil {
				return err
			}
			events, err := tx.Collection("scoreEvents")
			if err != nil {
				return err
			}
			if _, err := events.Put([]byte(`{"id":"e1","playerId":"p1","createdAt":2}`)); err != nil {
				return err
			}
			return boom
		}},
	)

	err := m.Up(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	var merr *migration.MigrationError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, 2, merr.Version)
	assert.Equal(t, "add score events", merr.Name)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// neither the record write nor the new collection survived
	assert.False(t, bucketExists(t, s, []byte("scoreEvents")))
	assert.False(t, bucketExists(t, s, kv.IndexBucket("scoreEvents", "playerId")))
	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		players, err := kv.OpenCollection(tx, playersV1().Collections[0])
		if err != nil {
			return err
		}
		v, err := players.Get("p1")
		if err != nil {
			return err
		}
		assert.JSONEq(t, `{"id":"p1","createdAt":1}`, string(v))
		return nil
	}))

	migrations, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, migration.UpMigrationState, migrations[0].State)
	assert.Equal(t, migration.DownMigrationState, migrations[1].State)
}

func migratorResumes(t *testing.T, s kv.Store) {
	ctx := context.Background()
	fail := true
	attempts := 0

	specs := []migration.Spec{
		{Name: "initial collections", Descriptor: playersV1()},
		{Name: "add score events", Descriptor: playersV2(), Up: func(ctx context.Context, tx *migration.Tx) error {
			attempts++
			if err := putRecord("scoreEvents", `{"id":"e1","playerId":"p1","createdAt":2}`)(ctx, tx); err != nil {
				return err
			}
			if fail {
				return errors.New("disk full")
			}
			return nil
		}},
	}

	require.Error(t, NewTestMigrator(t, s, clock.NewMock(), specs...).Up(ctx))

	fail = false
	m := NewTestMigrator(t, s, clock.NewMock(), specs...)
	require.NoError(t, m.Up(ctx))
	assert.Equal(t, 2, attempts)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	events, _ := playersV2().Collection("scoreEvents")
	assert.Equal(t, []string{"e1"}, collectionIDs(t, s, events))
}

func migratorRedefinesIndexes(t *testing.T, s kv.Store) {
	ctx := context.Background()
	v1 := schema.MustDescriptor(1, map[string]string{"rows": "id, createdAt"})
	v2 := schema.MustDescriptor(2, map[string]string{"rows": "id, createdAt, order"})
	v3 := schema.MustDescriptor(3, map[string]string{"rows": "id, order"})

	seed := func(ctx context.Context, tx *migration.Tx) error {
		c, err := tx.Collection("rows")
		if err != nil {
			return err
		}
		for _, r := range []string{
			`{"id":"a","createdAt":1,"order":2}`,
			`{"id":"b","createdAt":2,"order":0}`,
			`{"id":"c","createdAt":3}`,
			`{"id":"d","createdAt":4,"order":1}`,
		} {
			if _, err := c.Put([]byte(r)); err != nil {
				return err
			}
		}
		return nil
	}

	m := NewTestMigrator(t, s, clock.NewMock(),
		migration.Spec{Name: "rows", Descriptor: v1, Up: seed},
		migration.Spec{Name: "index order", Descriptor: v2},
		migration.Spec{Name: "drop createdAt index", Descriptor: v3},
	)
	require.NoError(t, m.Up(ctx))

	var ids []string
	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		rows, _ := v3.Collection("rows")
		c, err := kv.OpenCollection(tx, rows)
		if err != nil {
			return err
		}
		return c.WalkIndex(ctx, "order", func(id string, _ []byte) (bool, error) {
			ids = append(ids, id)
			return true, nil
		})
	}))
	// c carries no order and stays out of the index
	assert.Equal(t, []string{"b", "d", "a"}, ids)
	assert.False(t, bucketExists(t, s, kv.IndexBucket("rows", "createdAt")))
}

func migratorDropsCollections(t *testing.T, s kv.Store) {
	ctx := context.Background()
	v2 := schema.MustDescriptor(2, map[string]string{"scoreEvents": "id, playerId, createdAt"})

	m := NewTestMigrator(t, s, clock.NewMock(),
		migration.Spec{Name: "initial collections", Descriptor: playersV1(), Up: putRecord("players", `{"id":"p1","createdAt":1}`)},
		migration.Spec{Name: "drop players", Descriptor: v2},
	)
	require.NoError(t, m.Up(ctx))

	assert.False(t, bucketExists(t, s, []byte("players")))
	assert.False(t, bucketExists(t, s, kv.IndexBucket("players", "createdAt")))
	assert.True(t, bucketExists(t, s, []byte("scoreEvents")))
}

func migratorUndeclaredCollection(t *testing.T, s kv.Store) {
	ctx := context.Background()

	m := NewTestMigrator(t, s, clock.NewMock(),
		migration.Spec{Name: "initial collections", Descriptor: playersV1(), Up: putRecord("settings", `{"id":"app"}`)},
	)

	err := m.Up(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, migration.ErrUndeclaredCollection), "got %v", err)

	version, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func migratorRefusesDowngrade(t *testing.T, s kv.Store) {
	ctx := context.Background()
	v1 := migration.Spec{Name: "initial collections", Descriptor: playersV1()}
	v2 := migration.Spec{Name: "add score events", Descriptor: playersV2()}

	require.NoError(t, NewTestMigrator(t, s, clock.NewMock(), v1, v2).Up(ctx))

	older := NewTestMigrator(t, s, clock.NewMock(), v1)
	err := older.Up(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrUnknownVersion), "got %v", err)

	var merr *migration.MigrationError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, 2, merr.Version)

	version, err := older.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	_, err = older.List(ctx)
	assert.True(t, errors.Is(err, migration.ErrMigrationSpecNotFound), "got %v", err)
}

func migratorCanceled(t *testing.T, s kv.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewTestMigrator(t, s, clock.NewMock(),
		migration.Spec{Name: "initial collections", Descriptor: playersV1(), Up: func(context.Context, *migration.Tx) error {
			cancel()
			return nil
		}},
		migration.Spec{Name: "add score events", Descriptor: playersV2()},
	)

	err := m.Up(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	version, err := m.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func migratorSerializes(t *testing.T, s kv.Store) {
	ctx := context.Background()

	var mu sync.Mutex
	calls := map[int]int{}
	count := func(ctx context.Context, tx *migration.Tx) error {
		mu.Lock()
		defer mu.Unlock()
		calls[tx.Version()]++
		return nil
	}

	m := NewTestMigrator(t, s, clock.NewMock(),
		migration.Spec{Name: "initial collections", Descriptor: playersV1(), Up: count},
		migration.Spec{Name: "add score events", Descriptor: playersV2(), Up: count},
	)

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			return m.Up(ctx)
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, map[int]int{1: 1, 2: 1}, calls)
}
