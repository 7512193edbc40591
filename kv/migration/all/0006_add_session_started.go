package all

import (
	"context"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/logger"
	"github.com/boardgamescores/scorestore/pkg/backfill"
	"github.com/boardgamescores/scorestore/schema"
	"github.com/buger/jsonparser"
	"go.uber.org/zap"
)

// Migration0006_AddSessionStarted adds the sessionStarted flag to the
// settings record. A store that already holds scoring data has evidently
// started a session, so the flag is raised for it.
var Migration0006_AddSessionStarted = migration.Spec{
	Name: "add session started",
	Descriptor: schema.MustDescriptor(6, map[string]string{
		"players":       "id, createdAt",
		"scoreEvents":   "id, playerId, createdAt",
		"settings":      "id",
		"tabularRows":   "id, createdAt, order",
		"tabularScores": "id, rowId, playerId",
	}),
	Up: func(ctx context.Context, tx *migration.Tx) error {
		if err := ensureSettings(ctx, tx, backfill.Record{
			"scoringMode":    string(scorestore.SimpleScoring),
			"sessionName":    "",
			"sessionStarted": false,
		}); err != nil {
			return err
		}
		return inferSessionStarted(ctx, tx)
	},
}

func inferSessionStarted(ctx context.Context, tx *migration.Tx) error {
	settings, err := tx.Collection(scorestore.SettingsCollection)
	if err != nil {
		return err
	}
	record, err := settings.Get(scorestore.SettingsKey)
	if err != nil {
		return err
	}

	if started, err := jsonparser.GetBoolean(record, "sessionStarted"); err == nil && started {
		return nil
	}

	var source string
	for _, name := range scorestore.ContentCollections {
		c, err := tx.Collection(name)
		if err != nil {
			return err
		}
		empty, err := c.IsEmpty()
		if err != nil {
			return err
		}
		if !empty {
			source = name
			break
		}
	}
	if source == "" {
		return nil
	}

	if record, err = jsonparser.Set(record, []byte("true"), "sessionStarted"); err != nil {
		return err
	}
	if record, err = touch(record, scorestore.NewTimestamp(tx.Now())); err != nil {
		return err
	}

	logger.FromContext(ctx).Debug("Inferred started session", zap.String("collection", source))

	_, err = settings.Put(record)
	return err
}
