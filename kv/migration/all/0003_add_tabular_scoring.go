package all

import (
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/schema"
)

// Migration0003_AddTabularScoring creates the tabular rows and scores collections.
var Migration0003_AddTabularScoring = migration.Spec{
	Name: "add tabular scoring",
	Descriptor: schema.MustDescriptor(3, map[string]string{
		"players":       "id, createdAt",
		"scoreEvents":   "id, playerId, createdAt",
		"settings":      "id",
		"tabularRows":   "id, createdAt",
		"tabularScores": "id, rowId, playerId",
	}),
}
