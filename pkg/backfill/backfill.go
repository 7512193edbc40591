// Package backfill merges default values into stored records.
//
// A field counts as undefined when it is absent from the record or holds
// JSON null. Defined fields are never overwritten, whatever their value, so
// false, 0 and "" survive a merge.
package backfill

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Record is a decoded JSON object.
type Record map[string]interface{}

// Merge returns the record to persist given the existing record, which may
// be nil, and a template of defaults. When existing is nil the result is a
// copy of template. Otherwise the result is a copy of existing in which every
// template field that is undefined in existing is taken from template.
//
// filled lists, sorted, the fields taken from template. Merge does not modify
// its arguments.
func Merge(existing, template Record) (merged Record, filled []string) {
	merged = make(Record, len(existing)+len(template))
	for k, v := range existing {
		merged[k] = v
	}

	for k, v := range template {
		if cur, ok := existing[k]; ok && cur != nil {
			continue
		}
		merged[k] = v
		filled = append(filled, k)
	}

	sort.Strings(filled)
	return merged, filled
}

// MergeJSON is Merge over an encoded record. A nil or empty existing is an
// absent record. Numbers are kept as json.Number so that integer timestamps
// round trip without loss.
func MergeJSON(existing []byte, template Record) ([]byte, []string, error) {
	var current Record
	if len(existing) > 0 {
		dec := json.NewDecoder(bytes.NewReader(existing))
		dec.UseNumber()
		if err := dec.Decode(&current); err != nil {
			return nil, nil, err
		}
	}

	merged, filled := Merge(current, template)
	b, err := json.Marshal(merged)
	if err != nil {
		return nil, nil, err
	}
	return b, filled, nil
}
