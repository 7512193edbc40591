// Package scorestore holds the domain types persisted by the score tracking
// store. Storage, schema evolution and the CRUD services live in subpackages.
package scorestore

// StoreName identifies the single store instance on disk.
const StoreName = "boardgame_scores"

// Collection names as they exist in the final schema version.
const (
	PlayersCollection       = "players"
	ScoreEventsCollection   = "scoreEvents"
	SettingsCollection      = "settings"
	TabularRowsCollection   = "tabularRows"
	TabularScoresCollection = "tabularScores"
)

// ContentCollections are the collections whose records count as scoring data
// when deciding whether a session has started.
var ContentCollections = []string{
	PlayersCollection,
	ScoreEventsCollection,
	TabularRowsCollection,
	TabularScoresCollection,
}
