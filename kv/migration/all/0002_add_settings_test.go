package all

import (
	"fmt"
	"testing"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/kv"
	"github.com/stretchr/testify/assert"
)

func TestMigration_DefaultSettings(t *testing.T) {
	forEachStore(t, func(t *testing.T, s kv.Store) {
		migrateTo(t, s, len(Migrations), firstOpen)

		ts := scorestore.NewTimestamp(firstOpen)
		assert.JSONEq(t, fmt.Sprintf(`{
			"id": "app",
			"scoringMode": "simple",
			"sessionName": "",
			"sessionStarted": false,
			"createdAt": %[1]d,
			"updatedAt": %[1]d
		}`, ts), string(settingsRecord(t, s)))
	})
}

func TestMigration0002_SeedsPartialTemplate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s kv.Store) {
		migrateTo(t, s, 2, firstOpen)

		records := allRecords(t, s, 2, "settings")
		ts := scorestore.NewTimestamp(firstOpen)
		assert.JSONEq(t, fmt.Sprintf(`{"id":"app","scoringMode":"simple","createdAt":%[1]d,"updatedAt":%[1]d}`, ts),
			string(records["app"]))
	})
}
