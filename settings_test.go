package scorestore_test

import (
	"testing"
	"time"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/kit/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsUpdate_Apply(t *testing.T) {
	tabular := scorestore.TabularScoring
	bogus := scorestore.ScoringMode("bogus")
	name := "Game Night"
	yes, no := true, false

	t.Run("applies set fields only", func(t *testing.T) {
		s := &scorestore.AppSettings{ID: scorestore.SettingsKey, ScoringMode: scorestore.SimpleScoring}
		require.NoError(t, scorestore.SettingsUpdate{ScoringMode: &tabular, SessionName: &name}.Apply(s))
		assert.Equal(t, scorestore.TabularScoring, s.ScoringMode)
		assert.Equal(t, "Game Night", s.SessionName)
		assert.False(t, s.SessionStarted)
	})

	t.Run("rejects unknown scoring mode", func(t *testing.T) {
		s := &scorestore.AppSettings{ScoringMode: scorestore.SimpleScoring}
		err := scorestore.SettingsUpdate{ScoringMode: &bogus}.Apply(s)
		assert.Equal(t, errors.EInvalid, errors.ErrorCode(err))
		assert.Equal(t, scorestore.SimpleScoring, s.ScoringMode)
	})

	t.Run("session started is monotonic", func(t *testing.T) {
		s := &scorestore.AppSettings{}
		require.NoError(t, scorestore.SettingsUpdate{SessionStarted: &yes}.Apply(s))
		assert.True(t, s.SessionStarted)

		err := scorestore.SettingsUpdate{SessionStarted: &no}.Apply(s)
		assert.Equal(t, errors.EConflict, errors.ErrorCode(err))
		assert.True(t, s.SessionStarted)
	})
}

func TestTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 1, 20, 15, 0, 0, time.UTC)
	ts := scorestore.NewTimestamp(now)
	assert.Equal(t, scorestore.Timestamp(now.UnixMilli()), ts)
	assert.True(t, ts.Time().Equal(now))
}
