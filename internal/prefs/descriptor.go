package prefs

import (
	"context"
	"fmt"

	"github.com/jrpie/launcher/internal/kv"
)

// Kind is the declared shape of a preference.
type Kind string

const (
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindLong   Kind = "long"
	KindEnum   Kind = "enum"
	KindSet    Kind = "set"
	KindMap    Kind = "map"
	KindAction Kind = "action"
)

// Descriptor is the static declaration of one preference. Descriptors are
// created while the package initializes and never change afterwards.
type Descriptor struct {
	Group *Group
	Name  string
	Key   string
	Kind  Kind
	// Type is the stored value type. Empty for actions.
	Type kv.Type
	// Options lists the member names of an enum.
	Options []string
	// HasDefault is false for preferences that fall back to the empty value
	// of their type.
	HasDefault bool

	get   func(*Registry) any
	def   func() any
	parse func(string) (kv.Value, error)
	check func(kv.Value) error
}

// validator is implemented by codecs with rules beyond decodability, such
// as sets whose members must have distinct ids.
type validator interface {
	Validate(kv.Value) error
}

// Storable reports whether the descriptor holds a value. Actions are
// entries of the settings screen only.
func (d *Descriptor) Storable() bool { return d.Kind != KindAction }

// Default returns the declared default, or the empty value of the type.
func (d *Descriptor) Default() any {
	if d.def == nil {
		return nil
	}
	return d.def()
}

// Value returns the current value of d in r.
func (d *Descriptor) Value(r *Registry) any {
	if d.get == nil {
		return nil
	}
	return d.get(r)
}

// Parse converts user input into the stored form.
func (d *Descriptor) Parse(text string) (kv.Value, error) {
	if d.parse == nil {
		return kv.Value{}, fmt.Errorf("%s: %w", d.Key, ErrNotStorable)
	}
	v, err := d.parse(text)
	if err != nil {
		return kv.Value{}, fmt.Errorf("%s: %w", d.Key, err)
	}
	return v, nil
}

// Pref is a typed handle on a descriptor.
type Pref[T any] struct {
	desc  *Descriptor
	codec Codec[T]
	def   func() T
}

func (p *Pref[T]) Descriptor() *Descriptor { return p.desc }
func (p *Pref[T]) Key() string             { return p.desc.Key }
func (p *Pref[T]) Default() T              { return p.def() }

// Get returns the stored value when present and decodable, else the
// default. It never fails.
func (p *Pref[T]) Get(r *Registry) T {
	v, ok := r.raw(p.desc.Key)
	if !ok {
		return p.def()
	}
	t, ok := p.codec.Decode(v, r.resolver)
	if !ok {
		r.warnMalformed(p.desc.Key, v)
		return p.def()
	}
	return t
}

// Set writes v through to the store.
func (p *Pref[T]) Set(r *Registry, v T) error {
	return p.SetContext(context.Background(), r, v)
}

func (p *Pref[T]) SetContext(ctx context.Context, r *Registry, v T) error {
	val := p.codec.Encode(v)
	if err := p.desc.check(val); err != nil {
		return fmt.Errorf("%s = %v: %w", p.desc.Key, v, err)
	}
	return r.put(ctx, p.desc.Key, val)
}

// Reset deletes the stored value so that Get returns the default again.
func (p *Pref[T]) Reset(r *Registry) error {
	return r.remove(context.Background(), p.desc.Key)
}

var (
	descriptors []*Descriptor
	byKey       map[string]*Descriptor
)

func register(d *Descriptor) {
	if byKey == nil {
		byKey = make(map[string]*Descriptor)
	}
	if _, dup := byKey[d.Key]; dup {
		panic(fmt.Sprintf("prefs: duplicate preference key %q", d.Key))
	}
	byKey[d.Key] = d
	descriptors = append(descriptors, d)
}

// Descriptors returns every declared preference in declaration order.
func Descriptors() []*Descriptor {
	out := make([]*Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Lookup returns the descriptor stored under key.
func Lookup(key string) (*Descriptor, bool) {
	d, ok := byKey[key]
	return d, ok
}

func define[T any](g *Group, name string, kind Kind, codec Codec[T], hasDefault bool, def func() T) *Pref[T] {
	p := &Pref[T]{codec: codec, def: def}
	p.desc = &Descriptor{
		Group:      g,
		Name:       name,
		Key:        g.Key(name),
		Kind:       kind,
		Type:       codec.Type(),
		HasDefault: hasDefault,
		get:        func(r *Registry) any { return p.Get(r) },
		def:        func() any { return def() },
		parse: func(s string) (kv.Value, error) {
			t, err := codec.Parse(s)
			if err != nil {
				return kv.Value{}, err
			}
			return codec.Encode(t), nil
		},
		check: func(v kv.Value) error {
			if _, ok := codec.Decode(v, nil); !ok {
				return ErrInvalidValue
			}
			if vc, ok := codec.(validator); ok {
				return vc.Validate(v)
			}
			return nil
		},
	}
	register(p.desc)
	return p
}

func boolPref(g *Group, name string, def bool) *Pref[bool] {
	return define(g, name, KindBool, BoolCodec, true, func() bool { return def })
}

// boolPrefNoDefault declares a boolean without a default; it reads false
// until written.
func boolPrefNoDefault(g *Group, name string) *Pref[bool] {
	return define(g, name, KindBool, BoolCodec, false, func() bool { return false })
}

func intPref(g *Group, name string, def int) *Pref[int] {
	return define(g, name, KindInt, IntCodec, true, func() int { return def })
}

func longPref(g *Group, name string) *Pref[int64] {
	return define(g, name, KindLong, LongCodec, false, func() int64 { return 0 })
}

func enumPref[T ~string](g *Group, name string, members []T, def T) *Pref[T] {
	p := define(g, name, KindEnum, EnumCodec(members...), true, func() T { return def })
	for _, m := range members {
		p.desc.Options = append(p.desc.Options, string(m))
	}
	return p
}

func setPref[T comparable](g *Group, name string, codec Codec[Set[T]]) *Pref[Set[T]] {
	return define(g, name, KindSet, codec, false, func() Set[T] { return NewSet[T]() })
}

func namesPref(g *Group, name string) *Pref[NameMap] {
	return define(g, name, KindMap, NameMapCodec, false, func() NameMap { return NameMap{} })
}

func action(g *Group, name string) *Descriptor {
	d := &Descriptor{Group: g, Name: name, Key: g.Key(name), Kind: KindAction}
	register(d)
	return d
}
