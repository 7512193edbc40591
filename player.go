package scorestore

import (
	"context"
	"strings"

	"github.com/boardgamescores/scorestore/kit/platform/errors"
)

// ErrPlayerNotFound is returned when a player does not exist.
var ErrPlayerNotFound = &errors.Error{
	Code: errors.ENotFound,
	Msg:  "player not found",
}

// Player is a participant whose score is tracked.
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt Timestamp `json:"createdAt"`
}

// Validate returns an error if the player is invalid.
func (p *Player) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &errors.Error{
			Code: errors.EEmptyValue,
			Msg:  "player name is required",
		}
	}
	return nil
}

// PlayerService manages players.
type PlayerService interface {
	// CreatePlayer assigns an ID and creation time and persists p.
	CreatePlayer(ctx context.Context, p *Player) error

	// FindPlayerByID returns a single player by ID.
	FindPlayerByID(ctx context.Context, id string) (*Player, error)

	// ListPlayers returns every player in creation order.
	ListPlayers(ctx context.Context) ([]*Player, error)

	// DeletePlayer removes a player together with its score events and tabular scores.
	DeletePlayer(ctx context.Context, id string) error
}
