package prefs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// InvalidUser marks an AppRef whose owning user profile is unknown.
const InvalidUser = -1

// AppRefKind distinguishes launchable activities from pinned shortcuts.
type AppRefKind string

const (
	RefApp      AppRefKind = "app"
	RefShortcut AppRefKind = "shortcut"
)

// AppRef identifies an installed app or a pinned shortcut for one user.
type AppRef struct {
	Kind     AppRefKind `json:"type" yaml:"type"`
	ID       string     `json:"id,omitempty" yaml:"id,omitempty"`
	Package  string     `json:"package" yaml:"package"`
	Activity string     `json:"activity,omitempty" yaml:"activity,omitempty"`
	User     int        `json:"user" yaml:"user"`
}

// Valid reports whether r carries the fields its kind requires.
func (r AppRef) Valid() bool {
	switch r.Kind {
	case RefApp:
		return r.Package != ""
	case RefShortcut:
		return r.Package != "" && r.ID != ""
	}
	return false
}

func (r AppRef) String() string {
	var b strings.Builder
	b.WriteString(r.Package)
	if r.Activity != "" {
		b.WriteString("/" + r.Activity)
	}
	if r.Kind == RefShortcut {
		b.WriteString("#" + r.ID)
	}
	b.WriteString("@" + strconv.Itoa(r.User))
	return b.String()
}

// ParseAppRef accepts either the JSON form of an AppRef or the short form
// package[/activity][#shortcut][@user]. User defaults to 0.
func ParseAppRef(s string) (AppRef, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		var r AppRef
		if err := json.Unmarshal([]byte(s), &r); err != nil {
			return AppRef{}, fmt.Errorf("parsing app reference: %w", err)
		}
		if !r.Valid() {
			return AppRef{}, fmt.Errorf("app reference %s: %w", s, ErrInvalidValue)
		}
		return r, nil
	}

	r := AppRef{Kind: RefApp}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		u, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return AppRef{}, fmt.Errorf("app reference %q: bad user: %w", s, ErrInvalidValue)
		}
		r.User = u
		s = s[:i]
	}
	if i := strings.Index(s, "#"); i >= 0 {
		r.Kind = RefShortcut
		r.ID = s[i+1:]
		s = s[:i]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		r.Activity = s[i+1:]
		s = s[:i]
	}
	r.Package = s
	if !r.Valid() {
		return AppRef{}, fmt.Errorf("app reference %q: %w", s, ErrInvalidValue)
	}
	return r, nil
}

// Resolver answers whether an AppRef still points at something that exists
// on the device. A nil Resolver treats every reference as resolvable.
type Resolver interface {
	Resolves(AppRef) bool
}

func resolves(res Resolver, r AppRef) bool {
	return res == nil || res.Resolves(r)
}

// StaticResolver resolves against a fixed inventory. An app entry with no
// activity covers every activity of that package for the same user.
type StaticResolver struct {
	mu    sync.RWMutex
	known map[AppRef]struct{}
}

func NewStaticResolver(refs ...AppRef) *StaticResolver {
	s := &StaticResolver{known: make(map[AppRef]struct{})}
	s.Add(refs...)
	return s
}

func (s *StaticResolver) Add(refs ...AppRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range refs {
		s.known[r] = struct{}{}
	}
}

func (s *StaticResolver) Remove(refs ...AppRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range refs {
		delete(s.known, r)
	}
}

func (s *StaticResolver) Resolves(r AppRef) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.known[r]; ok {
		return true
	}
	if r.Kind == RefApp && r.Activity != "" {
		_, ok := s.known[AppRef{Kind: RefApp, Package: r.Package, User: r.User}]
		return ok
	}
	return false
}
