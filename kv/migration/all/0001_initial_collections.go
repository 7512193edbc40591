package all

import (
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/schema"
)

// Migration0001_InitialCollections creates the players and score events collections.
var Migration0001_InitialCollections = migration.Spec{
	Name: "initial collections",
	Descriptor: schema.MustDescriptor(1, map[string]string{
		"players":     "id, createdAt",
		"scoreEvents": "id, playerId, createdAt",
	}),
}
