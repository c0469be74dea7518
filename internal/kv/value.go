package kv

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Type tags a stored value. The tags double as the wire names used in
// exported configs, so they must not change.
type Type string

const (
	TypeBool      Type = "boolean"
	TypeInt       Type = "int"
	TypeLong      Type = "long"
	TypeFloat     Type = "float"
	TypeString    Type = "string"
	TypeStringSet Type = "string_set"
)

// Value is a single typed entry in a Store. Exactly one payload field is
// meaningful, selected by Type.
type Value struct {
	Type  Type
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Set   []string
}

func Bool(b bool) Value { return Value{Type: TypeBool, Bool: b} }
func Int(i int) Value { return Value{Type: TypeInt, Int: int64(i)} }
func Long(i int64) Value { return Value{Type: TypeLong, Int: i} }
func Float(f float64) Value { return Value{Type: TypeFloat, Float: f} }
func String(s string) Value { return Value{Type: TypeString, Str: s} }

// StringSet builds a set value. Members are deduplicated and sorted so that
// equal sets always serialize identically.
func StringSet(members []string) Value {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return Value{Type: TypeStringSet, Set: out}
}

// Payload returns the Go value carried by v.
func (v Value) Payload() any {
	switch v.Type {
	case TypeBool:
		return v.Bool
	case TypeInt, TypeLong:
		return v.Int
	case TypeFloat:
		return v.Float
	case TypeString:
		return v.Str
	case TypeStringSet:
		if v.Set == nil {
			return []string{}
		}
		return v.Set
	}
	return nil
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%v)", v.Type, v.Payload())
}

// Equal reports whether two values have the same type and payload.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeBool:
		return v.Bool == o.Bool
	case TypeInt, TypeLong:
		return v.Int == o.Int
	case TypeFloat:
		return v.Float == o.Float
	case TypeString:
		return v.Str == o.Str
	case TypeStringSet:
		if len(v.Set) != len(o.Set) {
			return false
		}
		for i := range v.Set {
			if v.Set[i] != o.Set[i] {
				return false
			}
		}
		return true
	}
	return false
}

type wireValue struct {
	Type  Type            `json:"type" yaml:"type"`
	Value json.RawMessage `json:"value" yaml:"-"`
}

// MarshalJSON encodes v as {"type": "<tag>", "value": <payload>}.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Type == "" {
		return nil, fmt.Errorf("marshalling untyped value")
	}
	raw, err := json.Marshal(v.Payload())
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Type: v.Type, Value: raw})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.Value) == 0 {
		return fmt.Errorf("value of type %q has no payload", w.Type)
	}
	out := Value{Type: w.Type}
	var err error
	switch w.Type {
	case TypeBool:
		err = json.Unmarshal(w.Value, &out.Bool)
	case TypeInt, TypeLong:
		err = json.Unmarshal(w.Value, &out.Int)
	case TypeFloat:
		err = json.Unmarshal(w.Value, &out.Float)
	case TypeString:
		err = json.Unmarshal(w.Value, &out.Str)
	case TypeStringSet:
		var members []string
		err = json.Unmarshal(w.Value, &members)
		out = StringSet(members)
	default:
		return fmt.Errorf("unknown value type %q", w.Type)
	}
	if err != nil {
		return fmt.Errorf("decoding %s payload: %w", w.Type, err)
	}
	*v = out
	return nil
}

type yamlValue struct {
	Type  Type `yaml:"type"`
	Value any  `yaml:"value"`
}

// MarshalYAML mirrors the JSON shape so exports look the same in both formats.
func (v Value) MarshalYAML() (any, error) {
	if v.Type == "" {
		return nil, fmt.Errorf("marshalling untyped value")
	}
	return yamlValue{Type: v.Type, Value: v.Payload()}, nil
}

func (v *Value) UnmarshalYAML(unmarshal func(any) error) error {
	// Round-trip through JSON so both formats share one set of type rules.
	var y yamlValue
	if err := unmarshal(&y); err != nil {
		return err
	}
	raw, err := json.Marshal(map[string]any{"type": y.Type, "value": y.Value})
	if err != nil {
		return err
	}
	return v.UnmarshalJSON(raw)
}
