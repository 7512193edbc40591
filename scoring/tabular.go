package scoring

import (
	"context"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/kit/platform/errors"
	"github.com/boardgamescores/scorestore/kv"
)

// CreateTabularRow appends r after the last row of the table.
func (s *Service) CreateTabularRow(ctx context.Context, r *scorestore.TabularRow) error {
	if err := r.Validate(); err != nil {
		return wrap("CreateTabularRow", err)
	}

	return wrap("CreateTabularRow", s.kv.Update(ctx, func(tx kv.Tx) error {
		rows, err := s.collection(tx, scorestore.TabularRowsCollection)
		if err != nil {
			return err
		}

		next := 0
		if err := rows.WalkIndex(ctx, "order", func(_ string, v []byte) (bool, error) {
			var row scorestore.TabularRow
			if err := decode(v, &row); err != nil {
				return false, err
			}
			if row.Order >= next {
				next = row.Order + 1
			}
			return true, nil
		}); err != nil {
			return err
		}

		created := *r
		created.ID = s.IDGenerator()
		created.Order = next
		created.CreatedAt = s.now()
		if err := put(rows, &created); err != nil {
			return err
		}
		if err := s.markSessionStarted(tx); err != nil {
			return err
		}

		*r = created
		return nil
	}))
}

// ListTabularRows returns every row in display order.
func (s *Service) ListTabularRows(ctx context.Context) ([]*scorestore.TabularRow, error) {
	var rs []*scorestore.TabularRow
	err := s.kv.View(ctx, func(tx kv.Tx) error {
		rows, err := s.collection(tx, scorestore.TabularRowsCollection)
		if err != nil {
			return err
		}
		return rows.WalkIndex(ctx, "order", func(_ string, v []byte) (bool, error) {
			var r scorestore.TabularRow
			if err := decode(v, &r); err != nil {
				return false, err
			}
			rs = append(rs, &r)
			return true, nil
		})
	})
	if err != nil {
		return nil, wrap("ListTabularRows", err)
	}
	return rs, nil
}

// DeleteTabularRow removes a row together with its scores.
func (s *Service) DeleteTabularRow(ctx context.Context, id string) error {
	return wrap("DeleteTabularRow", s.kv.Update(ctx, func(tx kv.Tx) error {
		rows, err := s.collection(tx, scorestore.TabularRowsCollection)
		if err != nil {
			return err
		}
		if _, err := rows.Get(id); err != nil {
			if kv.IsNotFound(err) {
				return scorestore.ErrTabularRowNotFound
			}
			return err
		}

		if err := s.deleteWhere(ctx, tx, scorestore.TabularScoresCollection, "rowId", id); err != nil {
			return err
		}
		return rows.Delete(id)
	}))
}

// PutTabularScore creates or replaces the score of a player in a row.
func (s *Service) PutTabularScore(ctx context.Context, ts *scorestore.TabularScore) error {
	if ts.RowID == "" || ts.PlayerID == "" {
		return wrap("PutTabularScore", &errors.Error{
			Code: errors.EEmptyValue,
			Msg:  "tabular score row id and player id are required",
		})
	}

	return wrap("PutTabularScore", s.kv.Update(ctx, func(tx kv.Tx) error {
		rows, err := s.collection(tx, scorestore.TabularRowsCollection)
		if err != nil {
			return err
		}
		if _, err := rows.Get(ts.RowID); err != nil {
			if kv.IsNotFound(err) {
				return scorestore.ErrTabularRowNotFound
			}
			return err
		}
		if _, err := s.findPlayerByID(tx, ts.PlayerID); err != nil {
			return err
		}

		scores, err := s.collection(tx, scorestore.TabularScoresCollection)
		if err != nil {
			return err
		}

		stored := *ts
		stored.ID = ""
		if err := scores.WalkIndexValue(ctx, "rowId", ts.RowID, func(id string, v []byte) (bool, error) {
			var existing scorestore.TabularScore
			if err := decode(v, &existing); err != nil {
				return false, err
			}
			if existing.PlayerID == ts.PlayerID {
				stored.ID = id
				return false, nil
			}
			return true, nil
		}); err != nil {
			return err
		}
		if stored.ID == "" {
			stored.ID = s.IDGenerator()
		}

		if err := put(scores, &stored); err != nil {
			return err
		}
		if err := s.markSessionStarted(tx); err != nil {
			return err
		}

		*ts = stored
		return nil
	}))
}

// ListTabularScores returns the scores recorded in a row, ordered by id.
func (s *Service) ListTabularScores(ctx context.Context, rowID string) ([]*scorestore.TabularScore, error) {
	var ss []*scorestore.TabularScore
	err := s.kv.View(ctx, func(tx kv.Tx) error {
		scores, err := s.collection(tx, scorestore.TabularScoresCollection)
		if err != nil {
			return err
		}
		return scores.WalkIndexValue(ctx, "rowId", rowID, func(_ string, v []byte) (bool, error) {
			var ts scorestore.TabularScore
			if err := decode(v, &ts); err != nil {
				return false, err
			}
			ss = append(ss, &ts)
			return true, nil
		})
	})
	if err != nil {
		return nil, wrap("ListTabularScores", err)
	}
	return ss, nil
}
