package scoring

import (
	"context"

	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/kv"
)

// GetSettings returns the settings record.
func (s *Service) GetSettings(ctx context.Context) (*scorestore.AppSettings, error) {
	var settings *scorestore.AppSettings
	err := s.kv.View(ctx, func(tx kv.Tx) error {
		var err error
		settings, err = s.getSettings(tx)
		return err
	})
	return settings, wrap("GetSettings", err)
}

// UpdateSettings applies upd to the settings record and refreshes its updatedAt.
func (s *Service) UpdateSettings(ctx context.Context, upd scorestore.SettingsUpdate) (*scorestore.AppSettings, error) {
	var settings *scorestore.AppSettings
	err := s.kv.Update(ctx, func(tx kv.Tx) error {
		var err error
		settings, err = s.getSettings(tx)
		if err != nil {
			return err
		}
		if err := upd.Apply(settings); err != nil {
			return err
		}
		settings.UpdatedAt = s.now()
		return s.putSettings(tx, settings)
	})
	if err != nil {
		return nil, wrap("UpdateSettings", err)
	}
	return settings, nil
}

func (s *Service) getSettings(tx kv.Tx) (*scorestore.AppSettings, error) {
	c, err := s.collection(tx, scorestore.SettingsCollection)
	if err != nil {
		return nil, err
	}
	v, err := c.Get(scorestore.SettingsKey)
	if kv.IsNotFound(err) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}

	var settings scorestore.AppSettings
	if err := decode(v, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Service) putSettings(tx kv.Tx, settings *scorestore.AppSettings) error {
	c, err := s.collection(tx, scorestore.SettingsCollection)
	if err != nil {
		return err
	}
	return put(c, settings)
}

// markSessionStarted raises the sessionStarted flag. It is called in the
// transaction of every write that adds scoring data.
func (s *Service) markSessionStarted(tx kv.Tx) error {
	settings, err := s.getSettings(tx)
	if err != nil {
		return err
	}
	if settings.SessionStarted {
		return nil
	}
	settings.SessionStarted = true
	settings.UpdatedAt = s.now()
	s.log.Debug("Session started")
	return s.putSettings(tx, settings)
}
