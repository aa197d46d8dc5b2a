package correlator

import (
	"fmt"
	"sort"

	merrors "github.com/edbennett/meson-analysis/pkg/errors"
)

// Field names a Record attribute that can be used as a selection criterion.
type Field string

const (
	FieldStreamName     Field = "stream_name"
	FieldCfgIndex       Field = "cfg_index"
	FieldSourceType     Field = "source_type"
	FieldConnectionType Field = "connection_type"
	FieldChannel        Field = "channel"
	FieldValenceMass    Field = "valence_mass"
)

// Criteria maps fields to the value a record must equal to be selected.
// String fields take a string, FieldCfgIndex an int and FieldValenceMass a
// float64.
type Criteria map[Field]any

// validate checks every field name and value type.
func (c Criteria) validate() error {
	for field, value := range c {
		var ok bool
		switch field {
		case FieldStreamName, FieldSourceType, FieldConnectionType, FieldChannel:
			_, ok = value.(string)
		case FieldCfgIndex:
			_, ok = value.(int)
		case FieldValenceMass:
			_, ok = value.(float64)
		default:
			return merrors.Ingestionf(merrors.ErrInvalidCriteria, "unknown field %q", field)
		}
		if !ok {
			return merrors.Ingestionf(merrors.ErrInvalidCriteria,
				"field %q cannot be compared with %T", field, value)
		}
	}
	return nil
}

// matches reports whether r satisfies every criterion. c must be valid.
func (c Criteria) matches(r Record) bool {
	for field, value := range c {
		var eq bool
		switch field {
		case FieldStreamName:
			eq = r.StreamName == value.(string)
		case FieldCfgIndex:
			eq = r.CfgIndex == value.(int)
		case FieldSourceType:
			eq = r.SourceType == value.(string)
		case FieldConnectionType:
			eq = r.ConnectionType == value.(string)
		case FieldChannel:
			eq = r.Channel == value.(string)
		case FieldValenceMass:
			eq = sameMass(r.ValenceMass, value.(float64))
		}
		if !eq {
			return false
		}
	}
	return true
}

// checkUnambiguous fails unless the records share one source type,
// connection type, channel and valence mass.
func checkUnambiguous(records []Record) error {
	if len(records) < 2 {
		return nil
	}
	first := records[0]
	distinct := map[Field]map[string]struct{}{
		FieldSourceType:     {first.SourceType: {}},
		FieldConnectionType: {first.ConnectionType: {}},
		FieldChannel:        {first.Channel: {}},
		FieldValenceMass:    {fmt.Sprint(massKey(first.ValenceMass)): {}},
	}
	for _, r := range records[1:] {
		distinct[FieldSourceType][r.SourceType] = struct{}{}
		distinct[FieldConnectionType][r.ConnectionType] = struct{}{}
		distinct[FieldChannel][r.Channel] = struct{}{}
		distinct[FieldValenceMass][fmt.Sprint(massKey(r.ValenceMass))] = struct{}{}
	}

	for _, field := range []Field{FieldSourceType, FieldConnectionType, FieldChannel, FieldValenceMass} {
		if n := len(distinct[field]); n > 1 {
			return merrors.Ingestionf(merrors.ErrAmbiguousSelection,
				"multiple values for %s returned", field).
				WithContext("field", string(field)).
				WithContext("distinct", fmt.Sprint(n))
		}
	}
	return nil
}

// Selection is the result of Ensemble.Get: correlators keyed by stream and
// configuration index, in the ensemble's sort order. A key can repeat when
// the input held duplicate measurements.
type Selection struct {
	keys   []Key
	series []Series
}

// Len returns the number of selected correlators.
func (s *Selection) Len() int { return len(s.keys) }

// Keys returns the selected keys in order.
func (s *Selection) Keys() []Key {
	out := make([]Key, len(s.keys))
	copy(out, s.keys)
	return out
}

// At returns the i-th key and its correlator.
func (s *Selection) At(i int) (Key, Series) {
	return s.keys[i], s.series[i]
}

// Lookup returns the first correlator stored under k.
func (s *Selection) Lookup(k Key) (Series, bool) {
	for i, key := range s.keys {
		if key == k {
			return s.series[i], true
		}
	}
	return Series{}, false
}

// Streams returns the distinct stream names in the selection, sorted.
func (s *Selection) Streams() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, k := range s.keys {
		if _, ok := seen[k.StreamName]; !ok {
			seen[k.StreamName] = struct{}{}
			out = append(out, k.StreamName)
		}
	}
	sort.Strings(out)
	return out
}
