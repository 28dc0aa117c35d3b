package domain

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// Snapshot is the immutable key/value mapping of a finished configuration.
// It is what downstream case-generation tooling consumes.
type Snapshot struct {
	id     string
	taken  time.Time
	values map[string]Value
}

// NewSnapshot copies values into a new Snapshot.
func NewSnapshot(id string, taken time.Time, values map[string]Value) Snapshot {
	return Snapshot{
		id:     id,
		taken:  taken.UTC(),
		values: maps.Clone(values),
	}
}

// ID identifies the snapshot, usually after the session it was taken from.
func (s Snapshot) ID() string { return s.id }

// Taken is the export time.
func (s Snapshot) Taken() time.Time { return s.taken }

// Get returns the value exported for key.
func (s Snapshot) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the exported keys in sorted order.
func (s Snapshot) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of exported values.
func (s Snapshot) Len() int { return len(s.values) }

// Map returns a copy of the mapping.
func (s Snapshot) Map() map[string]Value {
	return maps.Clone(s.values)
}

type snapshotDoc struct {
	ID     string           `json:"id" yaml:"id"`
	Taken  time.Time        `json:"taken" yaml:"taken"`
	Values map[string]Value `json:"values" yaml:"values"`
}

func (s Snapshot) doc() snapshotDoc {
	values := s.values
	if values == nil {
		values = map[string]Value{}
	}
	return snapshotDoc{ID: s.id, Taken: s.taken, Values: values}
}

func (s *Snapshot) fromDoc(d snapshotDoc) {
	*s = NewSnapshot(d.ID, d.Taken, d.Values)
}

// MarshalJSON implements json.Marshaler.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.doc())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var d snapshotDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	s.fromDoc(d)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Snapshot) MarshalYAML() (any, error) {
	return s.doc(), nil
}

// UnmarshalYAML uses the function-style yaml unmarshaler so this package needs no yaml import.
func (s *Snapshot) UnmarshalYAML(unmarshal func(any) error) error {
	var d snapshotDoc
	if err := unmarshal(&d); err != nil {
		return err
	}
	s.fromDoc(d)
	return nil
}
