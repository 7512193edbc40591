package scoring

import (
	"context"
	"sort"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/kv"
)

// CreatePlayer assigns an ID and creation time and persists p.
func (s *Service) CreatePlayer(ctx context.Context, p *scorestore.Player) error {
	if err := p.Validate(); err != nil {
		return wrap("CreatePlayer", err)
	}

	return wrap("CreatePlayer", s.kv.Update(ctx, func(tx kv.Tx) error {
		players, err := s.collection(tx, scorestore.PlayersCollection)
		if err != nil {
			return err
		}

		created := *p
		created.ID = s.IDGenerator()
		created.CreatedAt = s.now()
		if err := put(players, &created); err != nil {
			return err
		}
		if err := s.markSessionStarted(tx); err != nil {
			return err
		}

		*p = created
		return nil
	}))
}

// FindPlayerByID returns a single player by ID.
func (s *Service) FindPlayerByID(ctx context.Context, id string) (*scorestore.Player, error) {
	var p *scorestore.Player
	err := s.kv.View(ctx, func(tx kv.Tx) error {
		var err error
		p, err = s.findPlayerByID(tx, id)
		return err
	})
	if err != nil {
		return nil, wrap("FindPlayerByID", err)
	}
	return p, nil
}

func (s *Service) findPlayerByID(tx kv.Tx, id string) (*scorestore.Player, error) {
	players, err := s.collection(tx, scorestore.PlayersCollection)
	if err != nil {
		return nil, err
	}
	v, err := players.Get(id)
	if kv.IsNotFound(err) {
		return nil, scorestore.ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}

	var p scorestore.Player
	if err := decode(v, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlayers returns every player in creation order.
func (s *Service) ListPlayers(ctx context.Context) ([]*scorestore.Player, error) {
	var ps []*scorestore.Player
	err := s.kv.View(ctx, func(tx kv.Tx) error {
		players, err := s.collection(tx, scorestore.PlayersCollection)
		if err != nil {
			return err
		}
		return players.WalkIndex(ctx, "createdAt", func(_ string, v []byte) (bool, error) {
			var p scorestore.Player
			if err := decode(v, &p); err != nil {
				return false, err
			}
			ps = append(ps, &p)
			return true, nil
		})
	})
	if err != nil {
		return nil, wrap("ListPlayers", err)
	}
	return ps, nil
}

// DeletePlayer removes a player together with its score events and tabular scores.
func (s *Service) DeletePlayer(ctx context.Context, id string) error {
	return wrap("DeletePlayer", s.kv.Update(ctx, func(tx kv.Tx) error {
		if _, err := s.findPlayerByID(tx, id); err != nil {
			return err
		}

		for _, name := range []string{scorestore.ScoreEventsCollection, scorestore.TabularScoresCollection} {
			if err := s.deleteWhere(ctx, tx, name, "playerId", id); err != nil {
				return err
			}
		}

		players, err := s.collection(tx, scorestore.PlayersCollection)
		if err != nil {
			return err
		}
		return players.Delete(id)
	}))
}

// deleteWhere deletes every record of collection whose field equals value.
func (s *Service) deleteWhere(ctx context.Context, tx kv.Tx, collection, field, value string) error {
	c, err := s.collection(tx, collection)
	if err != nil {
		return err
	}

	var ids []string
	if err := c.WalkIndexValue(ctx, field, value, func(id string, _ []byte) (bool, error) {
		ids = append(ids, id)
		return true, nil
	}); err != nil {
		return err
	}

	for _, id := range ids {
		if err := c.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

// AddScoreEvent assigns an ID and creation time to e and persists it.
func (s *Service) AddScoreEvent(ctx context.Context, e *scorestore.ScoreEvent) error {
	if err := e.Validate(); err != nil {
		return wrap("AddScoreEvent", err)
	}

	return wrap("AddScoreEvent", s.kv.Update(ctx, func(tx kv.Tx) error {
		if _, err := s.findPlayerByID(tx, e.PlayerID); err != nil {
			return err
		}
		events, err := s.collection(tx, scorestore.ScoreEventsCollection)
		if err != nil {
			return err
		}

		created := *e
		created.ID = s.IDGenerator()
		created.CreatedAt = s.now()
		if err := put(events, &created); err != nil {
			return err
		}
		if err := s.markSessionStarted(tx); err != nil {
			return err
		}

		*e = created
		return nil
	}))
}

// ListScoreEvents returns the score events of a player in creation order.
func (s *Service) ListScoreEvents(ctx context.Context, playerID string) ([]*scorestore.ScoreEvent, error) {
	var es []*scorestore.ScoreEvent
	err := s.kv.View(ctx, func(tx kv.Tx) error {
		events, err := s.collection(tx, scorestore.ScoreEventsCollection)
		if err != nil {
			return err
		}
		return events.WalkIndexValue(ctx, "playerId", playerID, func(_ string, v []byte) (bool, error) {
			var e scorestore.ScoreEvent
			if err := decode(v, &e); err != nil {
				return false, err
			}
			es = append(es, &e)
			return true, nil
		})
	})
	if err != nil {
		return nil, wrap("ListScoreEvents", err)
	}

	sort.SliceStable(es, func(i, j int) bool {
		if es[i].CreatedAt != es[j].CreatedAt {
			return es[i].CreatedAt < es[j].CreatedAt
		}
		return es[i].ID < es[j].ID
	})
	return es, nil
}
