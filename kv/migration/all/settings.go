package all

import (
	"context"
	"strconv"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/logger"
	"github.com/boardgamescores/scorestore/pkg/backfill"
	"github.com/buger/jsonparser"
	"go.uber.org/zap"
)

// ensureSettings stores the settings record with every field of defaults
// that it does not define yet. A missing record is created with both
// timestamps set to the migration time; an existing record that gains a
// field has its updatedAt refreshed.
func ensureSettings(ctx context.Context, tx *migration.Tx, defaults backfill.Record) error {
	settings, err := tx.Collection(scorestore.SettingsCollection)
	if err != nil {
		return err
	}

	existing, err := settings.Get(scorestore.SettingsKey)
	if err != nil && !kv.IsNotFound(err) {
		return err
	}

	now := scorestore.NewTimestamp(tx.Now())
	template := backfill.Record{
		"id":        scorestore.SettingsKey,
		"createdAt": now,
		"updatedAt": now,
	}
	for k, v := range defaults {
		template[k] = v
	}

	record, filled, err := backfill.MergeJSON(existing, template)
	if err != nil {
		return err
	}
	if len(filled) == 0 {
		return nil
	}
	if existing != nil {
		if record, err = touch(record, now); err != nil {
			return err
		}
	}

	logger.FromContext(ctx).Debug("Backfilled settings",
		zap.Strings("fields", filled), zap.Bool("created", existing == nil))

	_, err = settings.Put(record)
	return err
}

// touch sets the updatedAt field of a JSON record.
func touch(record []byte, now scorestore.Timestamp) ([]byte, error) {
	return jsonparser.Set(record, []byte(strconv.FormatInt(int64(now), 10)), "updatedAt")
}
