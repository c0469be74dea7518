package prefs

import (
	"encoding/json"
	"sort"
)

// Set is an unordered collection of distinct values. It serializes as a
// list sorted by each member's JSON form, so equal sets encode identically.
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	s.Add(items...)
	return s
}

func (s Set[T]) Add(items ...T) {
	for _, it := range items {
		s[it] = struct{}{}
	}
}

func (s Set[T]) Remove(items ...T) {
	for _, it := range items {
		delete(s, it)
	}
}

func (s Set[T]) Has(item T) bool {
	_, ok := s[item]
	return ok
}

func (s Set[T]) Len() int { return len(s) }

// Items returns the members in their canonical order.
func (s Set[T]) Items() []T {
	type keyed struct {
		key  string
		item T
	}
	ks := make([]keyed, 0, len(s))
	for it := range s {
		b, _ := json.Marshal(it)
		ks = append(ks, keyed{string(b), it})
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i].key < ks[j].key })
	out := make([]T, len(ks))
	for i, k := range ks {
		out[i] = k.item
	}
	return out
}

func (s Set[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Items())
}

func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewSet(items...)
	return nil
}

func (s Set[T]) MarshalYAML() (any, error) {
	return s.Items(), nil
}

// NameMap maps apps to user-chosen display names.
type NameMap map[AppRef]string

type nameEntry struct {
	Key   AppRef `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

func (m NameMap) entries() []nameEntry {
	out := make([]nameEntry, 0, len(m))
	for k, v := range m {
		out = append(out, nameEntry{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// MarshalJSON writes the map as a list of {"key","value"} pairs since
// AppRef cannot be a JSON object key.
func (m NameMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.entries())
}

func (m *NameMap) UnmarshalJSON(data []byte) error {
	var entries []nameEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(NameMap, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	*m = out
	return nil
}

func (m NameMap) MarshalYAML() (any, error) {
	return m.entries(), nil
}
