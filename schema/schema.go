// Package schema declares the shape of the store at each schema version.
//
// A Descriptor lists every collection that exists at a version together with
// its primary key and indexed fields. Collections are declared with the compact
// store syntax "primaryKey, index1, index2":
//
//	players:     "id, createdAt"
//	scoreEvents: "id, playerId, createdAt"
//
// The Registry orders descriptors 1..N and is what the migration executor walks.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownVersion is returned when a version has no descriptor.
	ErrUnknownVersion = errors.New("unknown schema version")
	// ErrPrimaryKeyChanged is returned when a collection redefines its primary key.
	ErrPrimaryKeyChanged = errors.New("primary key of an existing collection cannot change")
)

// Collection is the declaration of a single named collection.
type Collection struct {
	Name       string   `json:"name" yaml:"name"`
	PrimaryKey string   `json:"primaryKey" yaml:"primaryKey"`
	Indexes    []string `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

// Parse builds a Collection from its store definition, where the first field
// is the primary key and every following field is indexed.
func Parse(name, def string) (Collection, error) {
	var fields []string
	for _, f := range strings.Split(def, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return Collection{}, fmt.Errorf("collection %q: definition %q has no primary key", name, def)
	}

	c := Collection{
		Name:       name,
		PrimaryKey: fields[0],
	}
	if len(fields) > 1 {
		c.Indexes = fields[1:]
	}
	return c, c.Validate()
}

// MustParse is like Parse but panics on an invalid definition.
func MustParse(name, def string) Collection {
	c, err := Parse(name, def)
	if err != nil {
		panic(err)
	}
	return c
}

// Validate returns an error if the collection declaration is malformed.
func (c Collection) Validate() error {
	if c.Name == "" {
		return errors.New("collection name is required")
	}
	if c.PrimaryKey == "" {
		return fmt.Errorf("collection %q: primary key is required", c.Name)
	}

	seen := map[string]bool{c.PrimaryKey: true}
	for _, idx := range c.Indexes {
		if idx == "" {
			return fmt.Errorf("collection %q: empty index field", c.Name)
		}
		if seen[idx] {
			return fmt.Errorf("collection %q: field %q declared twice", c.Name, idx)
		}
		seen[idx] = true
	}
	return nil
}

// HasIndex reports whether field is indexed.
func (c Collection) HasIndex(field string) bool {
	for _, idx := range c.Indexes {
		if idx == field {
			return true
		}
	}
	return false
}

// String returns the store definition of the collection.
func (c Collection) String() string {
	return strings.Join(append([]string{c.PrimaryKey}, c.Indexes...), ", ")
}

// Descriptor is the complete set of collections valid at a schema version.
type Descriptor struct {
	Version     int          `json:"version" yaml:"version"`
	Collections []Collection `json:"collections" yaml:"collections"`
}

// NewDescriptor builds the descriptor for version from a map of collection
// name to store definition. Collections are kept sorted by name.
func NewDescriptor(version int, stores map[string]string) (Descriptor, error) {
	d := Descriptor{Version: version}
	for name, def := range stores {
		c, err := Parse(name, def)
		if err != nil {
			return Descriptor{}, fmt.Errorf("version %d: %w", version, err)
		}
		d.Collections = append(d.Collections, c)
	}
	sort.Slice(d.Collections, func(i, j int) bool {
		return d.Collections[i].Name < d.Collections[j].Name
	})
	return d, d.Validate()
}

// MustDescriptor is like NewDescriptor but panics on error.
func MustDescriptor(version int, stores map[string]string) Descriptor {
	d, err := NewDescriptor(version, stores)
	if err != nil {
		panic(err)
	}
	return d
}

// Validate returns an error if the descriptor is malformed.
func (d Descriptor) Validate() error {
	if d.Version < 1 {
		return fmt.Errorf("version %d: versions start at 1", d.Version)
	}

	names := make(map[string]bool, len(d.Collections))
	for _, c := range d.Collections {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("version %d: %w", d.Version, err)
		}
		if names[c.Name] {
			return fmt.Errorf("version %d: collection %q declared twice", d.Version, c.Name)
		}
		names[c.Name] = true
	}
	return nil
}

// Collection returns the declaration of the named collection.
func (d Descriptor) Collection(name string) (Collection, bool) {
	for _, c := range d.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}

// Names returns the collection names in declaration order.
func (d Descriptor) Names() []string {
	names := make([]string, 0, len(d.Collections))
	for _, c := range d.Collections {
		names = append(names, c.Name)
	}
	return names
}
