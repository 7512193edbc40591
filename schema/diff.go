package schema

import (
	"fmt"
	"sort"
)

// ChangeKind classifies a structural change between two descriptors.
type ChangeKind int

const (
	// CreateCollection adds a collection and all of its indexes.
	CreateCollection ChangeKind = iota
	// DropCollection removes a collection and all of its indexes.
	DropCollection
	// AlterCollection adds or drops indexes of an existing collection.
	AlterCollection
)

// String returns a string representation for a change kind.
func (k ChangeKind) String() string {
	switch k {
	case CreateCollection:
		return "create"
	case DropCollection:
		return "drop"
	case AlterCollection:
		return "alter"
	default:
		return "unknown"
	}
}

// Change is one structural difference between two descriptors.
type Change struct {
	Kind       ChangeKind
	Collection Collection

	// Populated for AlterCollection.
	AddedIndexes   []string
	DroppedIndexes []string
}

// Diff returns the changes that turn from into to. Drops come first, then
// creates and alters, each sorted by collection name.
func Diff(from, to Descriptor) ([]Change, error) {
	var drops, rest []Change

	for _, old := range from.Collections {
		if _, ok := to.Collection(old.Name); !ok {
			drops = append(drops, Change{Kind: DropCollection, Collection: old})
		}
	}

	for _, c := range to.Collections {
		old, ok := from.Collection(c.Name)
		if !ok {
			rest = append(rest, Change{Kind: CreateCollection, Collection: c})
			continue
		}
		if old.PrimaryKey != c.PrimaryKey {
			return nil, fmt.Errorf("collection %q: %q -> %q: %w", c.Name, old.PrimaryKey, c.PrimaryKey, ErrPrimaryKeyChanged)
		}

		ch := Change{Kind: AlterCollection, Collection: c}
		for _, idx := range c.Indexes {
			if !old.HasIndex(idx) {
				ch.AddedIndexes = append(ch.AddedIndexes, idx)
			}
		}
		for _, idx := range old.Indexes {
			if !c.HasIndex(idx) {
				ch.DroppedIndexes = append(ch.DroppedIndexes, idx)
			}
		}
		if len(ch.AddedIndexes) > 0 || len(ch.DroppedIndexes) > 0 {
			rest = append(rest, ch)
		}
	}

	byName := func(cs []Change) {
		sort.Slice(cs, func(i, j int) bool { return cs[i].Collection.Name < cs[j].Collection.Name })
	}
	byName(drops)
	byName(rest)

	return append(drops, rest...), nil
}
