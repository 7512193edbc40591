package schema

import "fmt"

// Registry is the ordered list of descriptors 1..N.
type Registry struct {
	descriptors []Descriptor
}

// NewRegistry validates that descriptors are numbered 1..N without gaps and
// returns a Registry over them.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	for i, d := range descriptors {
		if d.Version != i+1 {
			return nil, fmt.Errorf("descriptor at position %d has version %d, want %d", i, d.Version, i+1)
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}

	r := &Registry{descriptors: make([]Descriptor, len(descriptors))}
	copy(r.descriptors, descriptors)

	// Reject primary key changes up front rather than when a store reaches them.
	prev := Descriptor{}
	for _, d := range r.descriptors {
		if _, err := Diff(prev, d); err != nil {
			return nil, err
		}
		prev = d
	}
	return r, nil
}

// LatestVersion returns the highest registered version, or 0 when empty.
func (r *Registry) LatestVersion() int {
	return len(r.descriptors)
}

// DescriptorFor returns the descriptor of version v. Version 0 is the empty
// store and has no collections.
func (r *Registry) DescriptorFor(v int) (Descriptor, error) {
	if v == 0 {
		return Descriptor{}, nil
	}
	if v < 0 || v > len(r.descriptors) {
		return Descriptor{}, fmt.Errorf("version %d: %w", v, ErrUnknownVersion)
	}
	return r.descriptors[v-1], nil
}

// Latest returns the descriptor of the latest version.
func (r *Registry) Latest() Descriptor {
	d, _ := r.DescriptorFor(r.LatestVersion())
	return d
}
