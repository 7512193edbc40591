// Package scoring implements the scorestore services on top of a migrated kv.Store.
package scoring

import (
	"encoding/json"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/boardgamescores/scorestore"
	"github.com/boardgamescores/scorestore/kit/platform/errors"
	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	_ scorestore.PlayerService     = (*Service)(nil)
	_ scorestore.ScoreEventService = (*Service)(nil)
	_ scorestore.SettingsService   = (*Service)(nil)
	_ scorestore.TabularService    = (*Service)(nil)
)

// OpPrefix is the prefix for scoring errors.
const OpPrefix = "scoring/"

// ErrSettingsNotFound is returned when the settings record is missing, which
// only happens on a store that was not migrated.
var ErrSettingsNotFound = &errors.Error{
	Code: errors.EInternal,
	Msg:  "settings record not found; has the store been migrated?",
}

// IDGenerator returns a new unique record id.
type IDGenerator func() string

// Service is the struct the scorestore services are implemented on.
type Service struct {
	kv     kv.Store
	schema schema.Descriptor
	log    *zap.Logger

	IDGenerator IDGenerator
	Clock       clock.Clock
}

// NewService returns a Service over a store migrated to the schema described
// by latest.
func NewService(log *zap.Logger, store kv.Store, latest schema.Descriptor) *Service {
	return &Service{
		kv:     store,
		schema: latest,
		log:    log,
		IDGenerator: func() string {
			return uuid.NewString()
		},
		Clock: clock.New(),
	}
}

func (s *Service) now() scorestore.Timestamp {
	return scorestore.NewTimestamp(s.Clock.Now())
}

func (s *Service) collection(tx kv.Tx, name string) (*kv.Collection, error) {
	spec, ok := s.schema.Collection(name)
	if !ok {
		return nil, &errors.Error{
			Code: errors.EInternal,
			Msg:  fmt.Sprintf("collection %q is not part of schema version %d", name, s.schema.Version),
		}
	}
	c, err := kv.OpenCollection(tx, spec)
	if err != nil {
		return nil, &errors.Error{
			Code: errors.EUnavailable,
			Msg:  "data store unavailable",
			Err:  err,
		}
	}
	return c, nil
}

func put(c *kv.Collection, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return &errors.Error{Code: errors.EInternal, Err: err}
	}
	_, err = c.Put(b)
	return err
}

func decode(b []byte, v interface{}) error {
	if err := json.Unmarshal(b, v); err != nil {
		return &errors.Error{Code: errors.EInternal, Msg: "corrupt record", Err: err}
	}
	return nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &errors.Error{Op: OpPrefix + op, Err: err}
}
