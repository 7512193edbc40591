package migration

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/logger"
	"github.com/boardgamescores/scorestore/schema"
	"go.uber.org/zap"
)

var (
	schemaBucket    = []byte("schemav1")
	migrationBucket = []byte("migrationsv1")

	versionKey    = []byte("version")
	descriptorKey = []byte("descriptor")
)

var (
	// ErrMigrationSpecNotFound is returned when a migration specification is missing
	// for an already applied migration.
	ErrMigrationSpecNotFound = errors.New("migration specification not found")
	// ErrConcurrentMigration is returned when the persisted version moved while
	// a version was being applied.
	ErrConcurrentMigration = errors.New("store was migrated concurrently")
	// ErrUndeclaredCollection is returned when an upgrade procedure opens a
	// collection its version does not declare.
	ErrUndeclaredCollection = errors.New("collection is not declared at this version")
)

// MigrationState is a type for describing the state of a migration.
type MigrationState uint

const (
	// DownMigrationState is for a migration not yet applied.
	DownMigrationState MigrationState = iota
	// UpMigrationState is for a migration which has been applied.
	UpMigrationState
)

// String returns a string representation for a migration state.
func (s MigrationState) String() string {
	switch s {
	case DownMigrationState:
		return "down"
	case UpMigrationState:
		return "up"
	default:
		return "unknown"
	}
}

// Migration is a record of a particular migration.
type Migration struct {
	Version    int            `json:"version" yaml:"version"`
	Name       string         `json:"name" yaml:"name"`
	State      MigrationState `json:"-" yaml:"-"`
	StartedAt  *time.Time     `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// UpgradeFunc transforms the data of a store that has just been
// materialized to a new version.
//
// It runs inside the transaction of its version and may run again after a
// failed attempt, so it must produce the same result from the same pre-state.
type UpgradeFunc func(ctx context.Context, tx *Tx) error

// Spec is a specification for a particular schema version.
// The version number of a Spec is its position in the list handed to
// NewMigrator, starting at 1.
type Spec struct {
	Name       string
	Descriptor schema.Descriptor
	// Up is optional.
	Up UpgradeFunc
}

// MigrationError reports the version whose unit failed. The store is left at
// the version before it.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("migration %d: %v", e.Version, e.Err)
	}
	return fmt.Sprintf("migration %d (%s): %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Migrator is a type which manages migrations.
// It takes an ordered list of migration specifications and applies the
// outstanding ones, one transaction per version. It records the state of the
// world in the store under the schema and migrations buckets.
type Migrator struct {
	logger   *zap.Logger
	store    kv.Store
	registry *schema.Registry
	metrics  *metrics

	Specs []Spec

	clock      clock.Clock
	backupPath string

	mu sync.Mutex
}

// NewMigrator constructs and configures a new Migrator.
func NewMigrator(logger *zap.Logger, store kv.Store, ms ...Spec) (*Migrator, error) {
	descriptors := make([]schema.Descriptor, 0, len(ms))
	for i, spec := range ms {
		if spec.Name == "" {
			return nil, fmt.Errorf("migration %d has no name", i+1)
		}
		descriptors = append(descriptors, spec.Descriptor)
	}

	registry, err := schema.NewRegistry(descriptors...)
	if err != nil {
		return nil, err
	}

	return &Migrator{
		logger:   logger,
		store:    store,
		registry: registry,
		metrics:  newMetrics(),
		Specs:    ms,
		clock:    clock.New(),
	}, nil
}

// SetBackupPath sets the path of the file the store is copied to before any
// pending migration runs. The copy is only taken when the store implements
// kv.Backupper and already holds a schema version.
func (m *Migrator) SetBackupPath(path string) {
	m.backupPath = path
}

// SetClock replaces the clock used for migration timestamps.
func (m *Migrator) SetClock(c clock.Clock) {
	m.clock = c
}

// Registry returns the schema registry built from the specs.
func (m *Migrator) Registry() *schema.Registry {
	return m.registry
}

// Version returns the persisted schema version, 0 for a store never migrated.
func (m *Migrator) Version(ctx context.Context) (version int, err error) {
	err = m.store.View(ctx, func(tx kv.Tx) error {
		version, err = readVersion(tx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// List returns a list of migrations and their states within the provided store.
func (m *Migrator) List(ctx context.Context) (migrations []Migration, _ error) {
	applied := map[int]Migration{}
	if err := m.walk(ctx, func(mig Migration) {
		applied[mig.Version] = mig
	}); err != nil {
		return nil, err
	}

	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	if current > len(m.Specs) {
		return nil, fmt.Errorf("store at version %d: %w", current, ErrMigrationSpecNotFound)
	}

	for idx, spec := range m.Specs {
		version := idx + 1
		if mig, ok := applied[version]; ok && version <= current {
			mig.State = UpMigrationState
			migrations = append(migrations, mig)
			continue
		}
		migrations = append(migrations, Migration{Version: version, Name: spec.Name})
	}
	return migrations, nil
}

// Pending returns the migrations Up would apply.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mig := range all {
		if mig.State == DownMigrationState {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies each outstanding migration in order.
// Migrations are applied in order from the version following the persisted
// one up to the latest.
//
// For example, given:
// 0001 initial collections | (up)
// 0002 add settings        | (down)
// 0003 add tabular scoring | (down)
//
// Up would apply migration 0002 and then 0003. Each version is applied in
// its own transaction and Up stops at the first failure, leaving the store
// at the last version that committed.
func (m *Migrator) Up(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.Version(ctx)
	if err != nil {
		return err
	}

	latest := m.registry.LatestVersion()
	if current > latest {
		return &MigrationError{
			Version: current,
			Err:     fmt.Errorf("store is at version %d, latest known is %d: %w", current, latest, schema.ErrUnknownVersion),
		}
	}
	m.metrics.version.Set(float64(current))

	migrationsToDo := latest - current
	if migrationsToDo == 0 {
		m.logger.Debug("Metadata is up to date", zap.Int("schema_version", current))
		return nil
	}
	m.logger.Info("Bringing up metadata migrations", zap.Int("migration_count", migrationsToDo))

	if err := m.backup(ctx, current); err != nil {
		return &MigrationError{Version: current + 1, Name: m.Specs[current].Name, Err: err}
	}

	// every upgrade procedure of this run sees the same time
	now := m.clock.Now().UTC()

	for version := current + 1; version <= latest; version++ {
		spec := m.Specs[version-1]
		if err := ctx.Err(); err != nil {
			return &MigrationError{Version: version, Name: spec.Name, Err: err}
		}

		if err := m.apply(ctx, version, now); err != nil {
			m.metrics.migrations.WithLabelValues("failed").Inc()
			return &MigrationError{Version: version, Name: spec.Name, Err: err}
		}
		m.metrics.migrations.WithLabelValues("success").Inc()
		m.metrics.version.Set(float64(version))
	}

	return nil
}

func (m *Migrator) apply(ctx context.Context, version int, now time.Time) error {
	spec := m.Specs[version-1]
	prev, err := m.registry.DescriptorFor(version - 1)
	if err != nil {
		return err
	}

	startedAt := m.clock.Now().UTC()
	migration := Migration{
		Version:   version,
		Name:      spec.Name,
		StartedAt: &startedAt,
	}
	m.logMigrationEvent(UpMigrationState, migration, "started")

	log := m.logger.With(zap.Int("schema_version", version), zap.String("migration_name", spec.Name))
	ctx = logger.NewContextWithLogger(ctx, log)

	err = m.store.Update(ctx, func(tx kv.Tx) error {
		persisted, err := readVersion(tx)
		if err != nil {
			return err
		}
		if persisted != version-1 {
			return fmt.Errorf("expected version %d, found %d: %w", version-1, persisted, ErrConcurrentMigration)
		}

		if err := materialize(ctx, tx, prev, spec.Descriptor); err != nil {
			return fmt.Errorf("materializing collections: %w", err)
		}

		if spec.Up != nil {
			if err := spec.Up(ctx, &Tx{tx: tx, descriptor: spec.Descriptor, now: now}); err != nil {
				return err
			}
		}

		finishedAt := m.clock.Now().UTC()
		migration.FinishedAt = &finishedAt
		return putVersion(tx, migration, spec.Descriptor)
	})
	if err != nil {
		return err
	}

	migration.State = UpMigrationState
	m.metrics.duration.Observe(migration.FinishedAt.Sub(startedAt).Seconds())
	m.logMigrationEvent(UpMigrationState, migration, "completed")
	return nil
}

func (m *Migrator) backup(ctx context.Context, current int) error {
	if m.backupPath == "" || current == 0 {
		return nil
	}
	b, ok := m.store.(kv.Backupper)
	if !ok {
		m.logger.Warn("Store does not support backups, migrating without one")
		return nil
	}

	m.logger.Info("Backing up pre-migration metadata", zap.String("backup_path", m.backupPath))
	if err := os.MkdirAll(filepath.Dir(m.backupPath), 0700); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}

	f, err := os.Create(m.backupPath)
	if err != nil {
		return fmt.Errorf("creating backup file: %w", err)
	}
	if err := b.Backup(ctx, f); err != nil {
		f.Close()
		return fmt.Errorf("writing backup: %w", err)
	}
	return f.Close()
}

func (m *Migrator) logMigrationEvent(state MigrationState, mig Migration, event string) {
	m.logger.Debug(
		"Executing metadata migration",
		zap.Int("schema_version", mig.Version),
		zap.String("migration_name", mig.Name),
		zap.String("target_state", state.String()),
		zap.String("migration_event", event),
	)
}

func (m *Migrator) walk(ctx context.Context, fn func(m Migration)) error {
	if err := m.store.View(ctx, func(tx kv.Tx) error {
		bkt, err := tx.Bucket(migrationBucket)
		if errors.Is(err, kv.ErrBucketNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		cursor, err := bkt.Cursor()
		if err != nil {
			return err
		}

		return kv.WalkCursor(ctx, cursor, func(k, v []byte) (bool, error) {
			var migration Migration
			if err := json.Unmarshal(v, &migration); err != nil {
				return false, err
			}

			idx := migration.Version - 1
			if idx < 0 || idx >= len(m.Specs) {
				return false, fmt.Errorf("migration %q: %w", migration.Name, ErrMigrationSpecNotFound)
			}

			if spec := m.Specs[idx]; spec.Name != migration.Name {
				return false, fmt.Errorf("expected migration %q, found %q", spec.Name, migration.Name)
			}

			fn(migration)
			return true, nil
		})
	}); err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	return nil
}

func encodeVersion(v int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func readVersion(tx kv.Tx) (int, error) {
	bkt, err := tx.Bucket(schemaBucket)
	if errors.Is(err, kv.ErrBucketNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	v, err := bkt.Get(versionKey)
	if kv.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("malformed schema version of %d bytes", len(v))
	}
	return int(binary.BigEndian.Uint64(v)), nil
}

// ReadDescriptor returns the descriptor recorded by the last applied
// migration, or false when the store was never migrated.
func ReadDescriptor(tx kv.Tx) (schema.Descriptor, bool, error) {
	bkt, err := tx.Bucket(schemaBucket)
	if errors.Is(err, kv.ErrBucketNotFound) {
		return schema.Descriptor{}, false, nil
	}
	if err != nil {
		return schema.Descriptor{}, false, err
	}

	v, err := bkt.Get(descriptorKey)
	if kv.IsNotFound(err) {
		return schema.Descriptor{}, false, nil
	}
	if err != nil {
		return schema.Descriptor{}, false, err
	}

	var d schema.Descriptor
	if err := json.Unmarshal(v, &d); err != nil {
		return schema.Descriptor{}, false, fmt.Errorf("decoding schema descriptor: %w", err)
	}
	return d, true, nil
}

func putVersion(tx kv.Tx, migration Migration, d schema.Descriptor) error {
	migrations, err := tx.CreateBucket(migrationBucket)
	if err != nil {
		return err
	}
	data, err := json.Marshal(migration)
	if err != nil {
		return err
	}
	if err := migrations.Put(encodeVersion(migration.Version), data); err != nil {
		return err
	}

	meta, err := tx.CreateBucket(schemaBucket)
	if err != nil {
		return err
	}
	desc, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if err := meta.Put(descriptorKey, desc); err != nil {
		return err
	}
	return meta.Put(versionKey, encodeVersion(migration.Version))
}
