package migration

import (
	"context"

	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/logger"
	"github.com/boardgamescores/scorestore/schema"
	"go.uber.org/zap"
)

// materialize creates, drops and re-indexes buckets so that tx holds exactly
// the collections of to, assuming it held those of from.
func materialize(ctx context.Context, tx kv.Tx, from, to schema.Descriptor) error {
	changes, err := schema.Diff(from, to)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)

	for _, ch := range changes {
		switch ch.Kind {
		case schema.DropCollection:
			if err := kv.DropCollection(tx, ch.Collection); err != nil {
				return err
			}
		case schema.CreateCollection:
			if _, err := kv.CreateCollection(tx, ch.Collection); err != nil {
				return err
			}
		case schema.AlterCollection:
			for _, field := range ch.DroppedIndexes {
				if err := kv.DropIndex(tx, ch.Collection.Name, field); err != nil {
					return err
				}
			}
			for _, field := range ch.AddedIndexes {
				n, err := kv.CreateIndex(ctx, tx, ch.Collection, field)
				if err != nil {
					return err
				}
				log.Debug("Populated index",
					zap.String("collection", ch.Collection.Name),
					zap.String("field", field),
					zap.Int("records", n))
			}
		}
		log.Debug("Materialized collection",
			zap.String("collection", ch.Collection.Name),
			zap.Stringer("change", ch.Kind))
	}
	return nil
}
