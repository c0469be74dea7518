package prefs

import "strings"

// Group clusters related descriptors that share a key prefix and suffix.
type Group struct {
	Name   string
	Prefix string
	Suffix string
}

// Key returns the storage key for a bare preference name in g.
func (g *Group) Key(name string) string {
	return g.Prefix + name + g.Suffix
}

func newGroup(name, prefix string) *Group {
	g := &Group{Name: name, Prefix: prefix, Suffix: "_key"}
	groups = append(groups, g)
	return g
}

var groups []*Group

// Groups returns every group in declaration order.
func Groups() []*Group {
	out := make([]*Group, len(groups))
	copy(out, groups)
	return out
}

// LookupGroup returns the group named name.
func LookupGroup(name string) (*Group, bool) {
	for _, g := range groups {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// ResolveKey maps a storage key, or a group.name reference such as
// "theme.font", to the storage key of a declared preference.
func ResolveKey(ref string) (string, bool) {
	if _, ok := Lookup(ref); ok {
		return ref, true
	}
	group, name, ok := strings.Cut(ref, ".")
	if !ok {
		return "", false
	}
	g, ok := LookupGroup(group)
	if !ok {
		return "", false
	}
	key := g.Key(name)
	if _, ok := Lookup(key); !ok {
		return "", false
	}
	return key, true
}
