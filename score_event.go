package scorestore

import (
	"context"

	"github.com/boardgamescores/scorestore/kit/platform/errors"
)

// ScoreEvent is a single change to a player's score.
type ScoreEvent struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"playerId"`
	Delta     int       `json:"delta"`
	CreatedAt Timestamp `json:"createdAt"`
}

// Validate returns an error if the score event is invalid.
func (e *ScoreEvent) Validate() error {
	if e.PlayerID == "" {
		return &errors.Error{
			Code: errors.EEmptyValue,
			Msg:  "score event player id is required",
		}
	}
	return nil
}

// ScoreEventService records score changes.
type ScoreEventService interface {
	AddScoreEvent(ctx context.Context, e *ScoreEvent) error
	ListScoreEvents(ctx context.Context, playerID string) ([]*ScoreEvent, error)
}
