package all

import (
	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/schema"
	"go.uber.org/zap"
)

// Migrations contains all the migrations required for the entire of the
// store currently.
var Migrations = [...]migration.Spec{
	// players and score events
	Migration0001_InitialCollections,
	// settings record with its defaults
	Migration0002_AddSettings,
	// tabular rows and scores
	Migration0003_AddTabularScoring,
	// index tabular rows by order and backfill it
	Migration0004_OrderTabularRows,
	// add sessionName to settings
	Migration0005_AddSessionName,
	// add sessionStarted to settings and infer it from existing data
	Migration0006_AddSessionStarted,
}

// NewMigrator returns a migrator over store loaded with every migration.
func NewMigrator(log *zap.Logger, store kv.Store) (*migration.Migrator, error) {
	return migration.NewMigrator(log, store, Migrations[:]...)
}

// Latest returns the descriptor of the latest schema version.
func Latest() schema.Descriptor {
	return Migrations[len(Migrations)-1].Descriptor
}
