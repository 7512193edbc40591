package all

import (
	"context"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/pkg/backfill"
	"github.com/boardgamescores/scorestore/schema"
)

// Migration0005_AddSessionName adds an empty session name to the settings record.
var Migration0005_AddSessionName = migration.Spec{
	Name: "add session name",
	Descriptor: schema.MustDescriptor(5, map[string]string{
		"players":       "id, createdAt",
		"scoreEvents":   "id, playerId, createdAt",
		"settings":      "id",
		"tabularRows":   "id, createdAt, order",
		"tabularScores": "id, rowId, playerId",
	}),
	Up: func(ctx context.Context, tx *migration.Tx) error {
		return ensureSettings(ctx, tx, backfill.Record{
			"scoringMode": string(scorestore.SimpleScoring),
			"sessionName": "",
		})
	},
}
