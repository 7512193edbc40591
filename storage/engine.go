// Package storage opens the score store, brings its schema up to date and
// hands out the services that read and write it.
package storage

import (
	"context"
	"io"

	"github.com/boardgamescores/scorestore/bolt"
	"github.com/boardgamescores/scorestore/inmem"
	"github.com/boardgamescores/scorestore/kit/platform/errors"
	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/kv/migration/all"
	"github.com/boardgamescores/scorestore/scoring"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Engine is an open, fully migrated store. It is created once at startup
// with Open and released with Close.
type Engine struct {
	*scoring.Service

	log      *zap.Logger
	store    kv.Store
	migrator *migration.Migrator
	closers  []io.Closer
}

// Open opens the store described by c and applies every pending migration.
// Any failure is returned as an EUnavailable error; the underlying
// *bolt.OpenError or *migration.MigrationError can be retrieved with errors.As.
func Open(ctx context.Context, log *zap.Logger, c Config) (*Engine, error) {
	e := &Engine{log: log}

	if c.InMemory {
		s := inmem.NewKVStore()
		e.store = s
		e.closers = append(e.closers, s)
	} else {
		opts := []bolt.KVOption{bolt.WithTimeout(c.Timeout)}
		if c.NoSync {
			opts = append(opts, bolt.WithNoSync)
		}
		s := bolt.NewKVStore(log.With(zap.String("service", "bolt")), c.Path, opts...)
		if err := s.Open(ctx); err != nil {
			return nil, unavailable(err)
		}
		e.store = s
		e.closers = append(e.closers, s)
	}

	m, err := all.NewMigrator(log.With(zap.String("service", "migrations")), e.store)
	if err != nil {
		return nil, multierr.Append(unavailable(err), e.Close())
	}
	if c.BackupPath != "" {
		m.SetBackupPath(c.BackupPath)
	}
	if err := m.Up(ctx); err != nil {
		log.Error("Failed to apply migrations", zap.Error(err))
		return nil, multierr.Append(unavailable(err), e.Close())
	}
	e.migrator = m

	e.Service = scoring.NewService(log.With(zap.String("service", "scoring")), e.store, all.Latest())
	return e, nil
}

func unavailable(err error) error {
	return errors.Unavailable("storage/Open", "data store unavailable", err)
}

// Store returns the underlying key value store.
func (e *Engine) Store() kv.Store {
	return e.store
}

// Migrator returns the migrator that brought the store up to date.
func (e *Engine) Migrator() *migration.Migrator {
	return e.migrator
}

// PrometheusCollectors returns the metrics of the store and its migrations.
func (e *Engine) PrometheusCollectors() []prometheus.Collector {
	var cs []prometheus.Collector
	if c, ok := e.store.(prometheus.Collector); ok {
		cs = append(cs, c)
	}
	if e.migrator != nil {
		cs = append(cs, e.migrator.PrometheusCollectors()...)
	}
	return cs
}

// Close releases the store. It is safe to call more than once.
func (e *Engine) Close() error {
	var err error
	for i := len(e.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, e.closers[i].Close())
	}
	e.closers = nil
	return err
}
