package migration

import (
	"fmt"
	"time"

	"github.com/boardgamescores/scorestore/kv"
	"github.com/boardgamescores/scorestore/schema"
)

// Tx is the view of the store handed to an upgrade procedure. Every write
// made through it commits or rolls back together with the version bump.
type Tx struct {
	tx         kv.Tx
	descriptor schema.Descriptor
	now        time.Time
}

// Version returns the version being applied.
func (t *Tx) Version() int {
	return t.descriptor.Version
}

// Descriptor returns the descriptor of the version being applied.
func (t *Tx) Descriptor() schema.Descriptor {
	return t.descriptor
}

// Now returns the time the running migration sequence started.
func (t *Tx) Now() time.Time {
	return t.now
}

// Collection opens a collection declared by the version being applied.
func (t *Tx) Collection(name string) (*kv.Collection, error) {
	spec, ok := t.descriptor.Collection(name)
	if !ok {
		return nil, fmt.Errorf("collection %q at version %d: %w", name, t.descriptor.Version, ErrUndeclaredCollection)
	}
	return kv.OpenCollection(t.tx, spec)
}
