package scorestore

import (
	"context"
	"fmt"

	"github.com/boardgamescores/scorestore/kit/platform/errors"
)

// SettingsKey is the fixed key of the single settings record.
const SettingsKey = "app"

// ScoringMode selects how scores are entered.
type ScoringMode string

const (
	// SimpleScoring keeps a running total per player.
	SimpleScoring ScoringMode = "simple"
	// TabularScoring records one value per player and row.
	TabularScoring ScoringMode = "tabular"
)

// Valid reports whether m is a known scoring mode.
func (m ScoringMode) Valid() bool {
	return m == SimpleScoring || m == TabularScoring
}

// AppSettings is the singleton settings record.
type AppSettings struct {
	ID             string      `json:"id"`
	ScoringMode    ScoringMode `json:"scoringMode"`
	SessionName    string      `json:"sessionName"`
	SessionStarted bool        `json:"sessionStarted"`
	CreatedAt      Timestamp   `json:"createdAt"`
	UpdatedAt      Timestamp   `json:"updatedAt"`
}

// SettingsUpdate is a partial update of AppSettings. Nil fields are left as they are.
type SettingsUpdate struct {
	ScoringMode    *ScoringMode
	SessionName    *string
	SessionStarted *bool
}

// Apply validates the update and applies it to s.
func (u SettingsUpdate) Apply(s *AppSettings) error {
	if u.ScoringMode != nil {
		if !u.ScoringMode.Valid() {
			return &errors.Error{
				Code: errors.EInvalid,
				Msg:  fmt.Sprintf("unknown scoring mode %q", *u.ScoringMode),
			}
		}
		s.ScoringMode = *u.ScoringMode
	}
	if u.SessionName != nil {
		s.SessionName = *u.SessionName
	}
	if u.SessionStarted != nil {
		if s.SessionStarted && !*u.SessionStarted {
			return &errors.Error{
				Code: errors.EConflict,
				Msg:  "a started session cannot be reset",
			}
		}
		s.SessionStarted = *u.SessionStarted
	}
	return nil
}

// SettingsService reads and updates the settings record.
type SettingsService interface {
	GetSettings(ctx context.Context) (*AppSettings, error)
	UpdateSettings(ctx context.Context, upd SettingsUpdate) (*AppSettings, error)
}
