package scorestore

import (
	"context"
	"strings"

	"github.com/boardgamescores/scorestore/kit/platform/errors"
)

// ErrTabularRowNotFound is returned when a tabular row does not exist.
var ErrTabularRowNotFound = &errors.Error{
	Code: errors.ENotFound,
	Msg:  "tabular row not found",
}

// TabularRow is a named row of the score table, such as a round or category.
// Order defines the display sequence.
type TabularRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	CreatedAt Timestamp `json:"createdAt"`
}

// Validate returns an error if the row is invalid.
func (r *TabularRow) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &errors.Error{
			Code: errors.EEmptyValue,
			Msg:  "tabular row name is required",
		}
	}
	return nil
}

// TabularScore is the value a player scored in a row.
type TabularScore struct {
	ID       string `json:"id"`
	RowID    string `json:"rowId"`
	PlayerID string `json:"playerId"`
	Value    int    `json:"value"`
}

// TabularService manages the rows and cells of the score table.
type TabularService interface {
	CreateTabularRow(ctx context.Context, r *TabularRow) error
	ListTabularRows(ctx context.Context) ([]*TabularRow, error)
	DeleteTabularRow(ctx context.Context, id string) error

	// PutTabularScore creates or replaces the score of a player in a row.
	PutTabularScore(ctx context.Context, s *TabularScore) error
	ListTabularScores(ctx context.Context, rowID string) ([]*TabularScore, error)
}
