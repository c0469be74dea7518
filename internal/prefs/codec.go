package prefs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/jrpie/launcher/internal/kv"
)

// Codec converts between a Go value and its stored form. Codecs are
// stateless and shared by every descriptor of the same Go type.
//
// Decode reports false when the stored value cannot represent a T at all
// (wrong stored type, unknown enum name), in which case the caller falls
// back to the default. Collection codecs instead drop the members that fail
// to parse or that the Resolver rejects.
type Codec[T any] interface {
	Type() kv.Type
	Encode(T) kv.Value
	Decode(kv.Value, Resolver) (T, bool)
	// Parse reads a value typed by a user (CLI argument, HTTP body).
	Parse(string) (T, error)
}

var (
	BoolCodec Codec[bool]  = boolCodec{}
	IntCodec  Codec[int]   = intCodec{}
	LongCodec Codec[int64] = longCodec{}

	AppSetCodec      Codec[Set[AppRef]]      = setCodec[AppRef]{valid: validApp}
	ShortcutSetCodec Codec[Set[AppRef]]      = setCodec[AppRef]{valid: validShortcut}
	NameMapCodec     Codec[NameMap]          = nameMapCodec{}
	WidgetSetCodec   Codec[Set[Widget]]      = setCodec[Widget]{valid: validWidget, identity: widgetID}
	PanelSetCodec    Codec[Set[WidgetPanel]] = setCodec[WidgetPanel]{valid: validPanel, identity: panelID}
)

type boolCodec struct{}

func (boolCodec) Type() kv.Type          { return kv.TypeBool }
func (boolCodec) Encode(b bool) kv.Value { return kv.Bool(b) }

func (boolCodec) Decode(v kv.Value, _ Resolver) (bool, bool) {
	if v.Type != kv.TypeBool {
		return false, false
	}
	return v.Bool, true
}

func (boolCodec) Parse(s string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("%q is not a boolean: %w", s, ErrInvalidValue)
	}
	return b, nil
}

type intCodec struct{}

func (intCodec) Type() kv.Type         { return kv.TypeInt }
func (intCodec) Encode(i int) kv.Value { return kv.Int(i) }

func (intCodec) Decode(v kv.Value, _ Resolver) (int, bool) {
	if v.Type != kv.TypeInt || v.Int < math.MinInt32 || v.Int > math.MaxInt32 {
		return 0, false
	}
	return int(v.Int), true
}

// Parse accepts decimal and 0x-prefixed values. Unsigned 32-bit values
// such as ARGB colors wrap to their signed form, so 0xffffffff is -1.
func (intCodec) Parse(s string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer: %w", s, ErrInvalidValue)
	}
	switch {
	case n >= math.MinInt32 && n <= math.MaxInt32:
		return int(n), nil
	case n > math.MaxInt32 && n <= math.MaxUint32:
		return int(int32(uint32(n))), nil
	}
	return 0, fmt.Errorf("%q is out of range: %w", s, ErrInvalidValue)
}

type longCodec struct{}

func (longCodec) Type() kv.Type            { return kv.TypeLong }
func (longCodec) Encode(i int64) kv.Value { return kv.Long(i) }

func (longCodec) Decode(v kv.Value, _ Resolver) (int64, bool) {
	if v.Type != kv.TypeLong {
		return 0, false
	}
	return v.Int, true
}

func (longCodec) Parse(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer: %w", s, ErrInvalidValue)
	}
	return n, nil
}

// EnumCodec persists an enum by member name.
func EnumCodec[T ~string](members ...T) Codec[T] {
	return enumCodec[T]{members: members}
}

type enumCodec[T ~string] struct {
	members []T
}

func (enumCodec[T]) Type() kv.Type { return kv.TypeString }

func (enumCodec[T]) Encode(t T) kv.Value { return kv.String(string(t)) }

func (c enumCodec[T]) lookup(name string) (T, bool) {
	for _, m := range c.members {
		if string(m) == name {
			return m, true
		}
	}
	var zero T
	return zero, false
}

func (c enumCodec[T]) Decode(v kv.Value, _ Resolver) (T, bool) {
	if v.Type != kv.TypeString {
		var zero T
		return zero, false
	}
	return c.lookup(v.Str)
}

func (c enumCodec[T]) Parse(s string) (T, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	if m, ok := c.lookup(name); ok {
		return m, nil
	}
	var zero T
	return zero, fmt.Errorf("%q is not one of %s: %w", s, strings.Join(c.names(), ", "), ErrInvalidValue)
}

func (c enumCodec[T]) names() []string {
	out := make([]string, len(c.members))
	for i, m := range c.members {
		out[i] = string(m)
	}
	return out
}

// setCodec stores each member as one compact JSON object in a string set.
// When identity is set, no two members may share one: writes carrying a
// duplicate are rejected, and decoding keeps only the first member (in
// canonical order) of each identity.
type setCodec[T comparable] struct {
	valid    func(T, Resolver) bool
	identity func(T) string
}

func (setCodec[T]) Type() kv.Type { return kv.TypeStringSet }

func (c setCodec[T]) Encode(s Set[T]) kv.Value {
	members := make([]string, 0, len(s))
	for it := range s {
		b, err := json.Marshal(it)
		if err != nil {
			continue
		}
		members = append(members, string(b))
	}
	return kv.StringSet(members)
}

func (c setCodec[T]) Decode(v kv.Value, res Resolver) (Set[T], bool) {
	if v.Type != kv.TypeStringSet {
		return nil, false
	}
	out := make(Set[T], len(v.Set))
	seen := make(map[string]bool)
	for _, m := range v.Set {
		var it T
		if err := json.Unmarshal([]byte(m), &it); err != nil {
			slog.Debug("dropping unparseable set member", "member", m, "error", err)
			continue
		}
		if !c.valid(it, res) {
			continue
		}
		if c.identity != nil {
			id := c.identity(it)
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		out.Add(it)
	}
	return out, true
}

// Parse reads a JSON list of members.
func (c setCodec[T]) Parse(s string) (Set[T], error) {
	var items []T
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("expected a JSON list: %v: %w", err, ErrInvalidValue)
	}
	for _, it := range items {
		if !c.valid(it, nil) {
			b, _ := json.Marshal(it)
			return nil, fmt.Errorf("member %s: %w", b, ErrInvalidValue)
		}
	}
	set := NewSet(items...)
	if err := c.distinct(set.Items()); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate rejects a stored set in which two members share an identity.
func (c setCodec[T]) Validate(v kv.Value) error {
	if c.identity == nil || v.Type != kv.TypeStringSet {
		return nil
	}
	items := make([]T, 0, len(v.Set))
	for _, m := range v.Set {
		var it T
		if err := json.Unmarshal([]byte(m), &it); err != nil {
			continue
		}
		items = append(items, it)
	}
	return c.distinct(items)
}

func (c setCodec[T]) distinct(items []T) error {
	if c.identity == nil {
		return nil
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		id := c.identity(it)
		if seen[id] {
			return fmt.Errorf("two members with id %s: %w", id, ErrInvalidValue)
		}
		seen[id] = true
	}
	return nil
}

type nameMapCodec struct{}

func (nameMapCodec) Type() kv.Type { return kv.TypeStringSet }

func (nameMapCodec) Encode(m NameMap) kv.Value {
	members := make([]string, 0, len(m))
	for _, e := range m.entries() {
		b, err := json.Marshal(e)
		if err != nil {
			continue
		}
		members = append(members, string(b))
	}
	return kv.StringSet(members)
}

func (nameMapCodec) Decode(v kv.Value, res Resolver) (NameMap, bool) {
	if v.Type != kv.TypeStringSet {
		return nil, false
	}
	out := make(NameMap, len(v.Set))
	for _, m := range v.Set {
		var e nameEntry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			slog.Debug("dropping unparseable name entry", "member", m, "error", err)
			continue
		}
		if !validApp(e.Key, res) {
			continue
		}
		out[e.Key] = e.Value
	}
	return out, true
}

// Parse reads a JSON list of {"key": <app>, "value": <name>} entries.
func (nameMapCodec) Parse(s string) (NameMap, error) {
	var m NameMap
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("expected a JSON list of key/value entries: %v: %w", err, ErrInvalidValue)
	}
	for k := range m {
		if !k.Valid() {
			return nil, fmt.Errorf("app reference %s: %w", k, ErrInvalidValue)
		}
	}
	return m, nil
}

func validApp(r AppRef, res Resolver) bool {
	return r.Valid() && resolves(res, r)
}

func validShortcut(r AppRef, res Resolver) bool {
	return r.Kind == RefShortcut && validApp(r, res)
}

func validWidget(w Widget, _ Resolver) bool {
	return w.valid()
}

func widgetID(w Widget) string { return strconv.Itoa(w.ID) }

func validPanel(p WidgetPanel, _ Resolver) bool {
	return p.ID != HomePanel.ID
}

func panelID(p WidgetPanel) string { return strconv.Itoa(p.ID) }
