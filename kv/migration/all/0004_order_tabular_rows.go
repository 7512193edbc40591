package all

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/kv/migration"
	"github.com/boardgamescores/scorestore/logger"
	"github.com/boardgamescores/scorestore/schema"
	"github.com/buger/jsonparser"
	"go.uber.org/zap"
)

// Migration0004_OrderTabularRows indexes tabular rows by order and gives
// every row without one an order following creation time.
var Migration0004_OrderTabularRows = migration.Spec{
	Name: "order tabular rows",
	Descriptor: schema.MustDescriptor(4, map[string]string{
		"players":       "id, createdAt",
		"scoreEvents":   "id, playerId, createdAt",
		"settings":      "id",
		"tabularRows":   "id, createdAt, order",
		"tabularScores": "id, rowId, playerId",
	}),
	Up: backfillRowOrder,
}

type unorderedRow struct {
	id        string
	createdAt float64
	record    []byte
}

// backfillRowOrder numbers the rows lacking an order 0, 1, 2... by ascending
// createdAt, breaking ties by id. A row without a numeric createdAt sorts
// first. Rows that have an order keep it.
func backfillRowOrder(ctx context.Context, tx *migration.Tx) error {
	rows, err := tx.Collection(scorestore.TabularRowsCollection)
	if err != nil {
		return err
	}

	var unordered []unorderedRow
	if err := rows.Walk(ctx, func(id string, record []byte) (bool, error) {
		_, typ, _, err := jsonparser.Get(record, "order")
		switch {
		case errors.Is(err, jsonparser.KeyPathNotFoundError):
		case err != nil:
			return false, fmt.Errorf("tabular row %q: %w", id, err)
		case typ != jsonparser.Null:
			return true, nil
		}

		createdAt, err := jsonparser.GetFloat(record, "createdAt")
		if err != nil {
			createdAt = 0
		}
		unordered = append(unordered, unorderedRow{
			id:        id,
			createdAt: createdAt,
			record:    append([]byte(nil), record...),
		})
		return true, nil
	}); err != nil {
		return err
	}

	sort.Slice(unordered, func(i, j int) bool {
		if unordered[i].createdAt != unordered[j].createdAt {
			return unordered[i].createdAt < unordered[j].createdAt
		}
		return unordered[i].id < unordered[j].id
	})

	for i, row := range unordered {
		record, err := jsonparser.Set(row.record, []byte(strconv.Itoa(i)), "order")
		if err != nil {
			return fmt.Errorf("tabular row %q: %w", row.id, err)
		}
		if _, err := rows.Put(record); err != nil {
			return err
		}
	}

	if len(unordered) > 0 {
		logger.FromContext(ctx).Debug("Backfilled tabular row order", zap.Int("rows", len(unordered)))
	}
	return nil
}
