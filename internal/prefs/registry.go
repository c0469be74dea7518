package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jrpie/launcher/internal/kv"
)

// Change describes one successful write or reset. Old is nil when the key
// had no stored value; New is nil for a reset.
type Change struct {
	Key    string
	Old    *kv.Value
	New    *kv.Value
	Source string
}

type sourceKey struct{}

// WithSource tags writes made with ctx, e.g. "api" or "import", so change
// observers can tell where they came from.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}

type cacheEntry struct {
	val     kv.Value
	present bool
	warned  bool
}

// Registry resolves declared preferences against a kv.Store. Raw stored
// values are cached in process; a write is visible to every later read
// through the same Registry.
type Registry struct {
	store    kv.Store
	resolver Resolver

	mu        sync.RWMutex
	cache     map[string]cacheEntry
	observers []func(Change)
}

// NewRegistry creates a Registry over store. A nil resolver treats every
// app reference as installed.
func NewRegistry(store kv.Store, resolver Resolver) *Registry {
	return &Registry{
		store:    store,
		resolver: resolver,
		cache:    make(map[string]cacheEntry),
	}
}

// Store returns the backing store.
func (r *Registry) Store() kv.Store { return r.store }

// OnChange registers fn to be called after every successful write or
// reset. fn runs on the writer's goroutine and must not write preferences.
func (r *Registry) OnChange(fn func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Invalidate drops all cached values so the next reads go to the store.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cacheEntry)
}

// raw returns the stored value of key. Store errors are logged and read as
// absent so callers fall back to defaults.
func (r *Registry) raw(key string) (kv.Value, bool) {
	r.mu.RLock()
	e, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return e.val, e.present
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock.
	if e, ok := r.cache[key]; ok {
		return e.val, e.present
	}

	v, present, err := r.store.Get(key)
	if err != nil {
		slog.Warn("reading preference failed, using default", "key", key, "error", err)
		return kv.Value{}, false
	}
	r.cache[key] = cacheEntry{val: v, present: present}
	return v, present
}

func (r *Registry) warnMalformed(key string, v kv.Value) {
	r.mu.Lock()
	e, ok := r.cache[key]
	if ok && e.warned {
		r.mu.Unlock()
		return
	}
	if ok {
		e.warned = true
		r.cache[key] = e
	}
	r.mu.Unlock()
	slog.Warn("ignoring malformed preference, using default", "key", key, "value", v.String())
}

// put writes v under key and updates the cache while holding the lock, so
// no concurrent cache fill can resurrect the old value.
func (r *Registry) put(ctx context.Context, key string, v kv.Value) error {
	r.mu.Lock()
	old := r.previousLocked(key)
	if err := r.store.Put(key, v); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	r.cache[key] = cacheEntry{val: v, present: true}
	observers := r.observers
	r.mu.Unlock()

	nv := v
	notify(observers, Change{Key: key, Old: old, New: &nv, Source: sourceFrom(ctx)})
	return nil
}

func (r *Registry) remove(ctx context.Context, key string) error {
	r.mu.Lock()
	old := r.previousLocked(key)
	if err := r.store.Delete(key); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	r.cache[key] = cacheEntry{}
	observers := r.observers
	r.mu.Unlock()

	if old != nil {
		notify(observers, Change{Key: key, Old: old, Source: sourceFrom(ctx)})
	}
	return nil
}

func (r *Registry) previousLocked(key string) *kv.Value {
	if e, ok := r.cache[key]; ok {
		if !e.present {
			return nil
		}
		v := e.val
		return &v
	}
	v, present, err := r.store.Get(key)
	if err != nil || !present {
		return nil
	}
	return &v
}

func notify(observers []func(Change), c Change) {
	for _, fn := range observers {
		fn(c)
	}
}

func lookupStorable(key string) (*Descriptor, error) {
	d, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, ErrUnknownKey)
	}
	if !d.Storable() {
		return nil, fmt.Errorf("%q: %w", key, ErrNotStorable)
	}
	return d, nil
}

// Get returns the current value of the preference stored under key. The
// only errors are for keys that are not declared or hold no value.
func (r *Registry) Get(key string) (any, error) {
	d, err := lookupStorable(key)
	if err != nil {
		return nil, err
	}
	return d.Value(r), nil
}

// SetRaw stores an already typed value. The value must have the
// descriptor's stored type and decode successfully.
func (r *Registry) SetRaw(ctx context.Context, key string, v kv.Value) error {
	d, err := lookupStorable(key)
	if err != nil {
		return err
	}
	if v.Type != d.Type {
		return fmt.Errorf("%s: got %s, want %s: %w", key, v.Type, d.Type, ErrTypeMismatch)
	}
	if err := d.check(v); err != nil {
		return fmt.Errorf("%s = %s: %w", key, v, err)
	}
	return r.put(ctx, key, v)
}

// SetText parses text the way the descriptor's codec reads user input and
// stores the result.
func (r *Registry) SetText(ctx context.Context, key, text string) error {
	d, err := lookupStorable(key)
	if err != nil {
		return err
	}
	v, err := d.Parse(text)
	if err != nil {
		return err
	}
	return r.put(ctx, key, v)
}

// Reset deletes the stored value of key.
func (r *Registry) Reset(ctx context.Context, key string) error {
	if _, err := lookupStorable(key); err != nil {
		return err
	}
	return r.remove(ctx, key)
}

// ResetAll deletes the stored value of every declared preference. Keys the
// schema does not declare, such as gesture bindings, are left alone.
func (r *Registry) ResetAll(ctx context.Context) error {
	var errs []error
	for _, d := range descriptors {
		if !d.Storable() {
			continue
		}
		if err := r.remove(ctx, d.Key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Entry is one row of a Snapshot.
type Entry struct {
	Key     string   `json:"key"`
	Group   string   `json:"group"`
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	Type    kv.Type  `json:"type"`
	Value   any      `json:"value"`
	Default any      `json:"default"`
	Stored  bool     `json:"stored"`
	Options []string `json:"options,omitempty"`
}

// Snapshot returns every storable preference with its current value.
func (r *Registry) Snapshot() []Entry {
	out := make([]Entry, 0, len(descriptors))
	for _, d := range descriptors {
		if !d.Storable() {
			continue
		}
		out = append(out, r.entry(d))
	}
	return out
}

// Describe returns the Snapshot row of key.
func (r *Registry) Describe(key string) (Entry, error) {
	d, err := lookupStorable(key)
	if err != nil {
		return Entry{}, err
	}
	return r.entry(d), nil
}

func (r *Registry) entry(d *Descriptor) Entry {
	_, stored := r.raw(d.Key)
	return Entry{
		Key:     d.Key,
		Group:   d.Group.Name,
		Name:    d.Name,
		Kind:    d.Kind,
		Type:    d.Type,
		Value:   d.Value(r),
		Default: d.Default(),
		Stored:  stored,
		Options: d.Options,
	}
}
