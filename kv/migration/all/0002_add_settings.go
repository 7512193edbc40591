package all

import (
	"context"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/pkg/backfill"
	"github.com/boardgamescores/scorestore/schema"
)

// Migration0002_AddSettings creates the settings collection and seeds the
// settings record.
var Migration0002_AddSettings = migration.Spec{
	Name: "add settings",
	Descriptor: schema.MustDescriptor(2, map[string]string{
		"players":     "id, createdAt",
		"scoreEvents": "id, playerId, createdAt",
		"settings":    "id",
	}),
	Up: func(ctx context.Context, tx *migration.Tx) error {
		return ensureSettings(ctx, tx, backfill.Record{
			"scoringMode": string(scorestore.SimpleScoring),
		})
	},
}
