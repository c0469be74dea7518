package prefs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jrpie/launcher/internal/kv"
)

// FormatVersion is the version of the export envelope.
const FormatVersion = 1

// ProfileType is the portable name of a user profile. Numeric user ids
// differ between devices; the type is what import matches on.
type ProfileType string

const (
	ProfileMain    ProfileType = "main"
	ProfileWork    ProfileType = "work"
	ProfilePrivate ProfileType = "private"
)

// Profiles maps local user ids to their profile type.
type Profiles map[int]ProfileType

// DefaultProfiles describes a device with only the main user.
func DefaultProfiles() Profiles {
	return Profiles{0: ProfileMain}
}

// nonPortableKeys hold device-specific ids and are never imported.
var nonPortableKeys = map[string]bool{
	AppsPinnedShortcuts.Key(): true,
	WidgetsWidgets.Key():      true,
	WidgetsCustomPanels.Key(): true,
}

// Envelope is the exported form of every stored preference.
type Envelope struct {
	FormatVersion     int                    `json:"formatVersion" yaml:"formatVersion"`
	PreferenceVersion *int                   `json:"preferenceVersion,omitempty" yaml:"preferenceVersion,omitempty"`
	ExportedAt        string                 `json:"exportedAt" yaml:"exportedAt"`
	UserProfiles      map[string]ProfileType `json:"userProfiles" yaml:"userProfiles"`
	Preferences       map[string]kv.Value    `json:"preferences" yaml:"preferences"`

	rejected []string
}

// Export collects every stored entry, including gesture bindings and keys
// this build does not declare.
func (r *Registry) Export(profiles Profiles, now time.Time) (*Envelope, error) {
	all, err := r.store.All()
	if err != nil {
		return nil, fmt.Errorf("reading preferences: %w", err)
	}
	version := InternalVersionCode.Get(r)
	env := &Envelope{
		FormatVersion:     FormatVersion,
		PreferenceVersion: &version,
		ExportedAt:        now.UTC().Format(time.RFC3339),
		UserProfiles:      make(map[string]ProfileType, len(profiles)),
		Preferences:       all,
	}
	for id, typ := range profiles {
		env.UserProfiles[strconv.Itoa(id)] = typ
	}
	return env, nil
}

// Encode writes env as indented JSON or as YAML.
func (env *Envelope) Encode(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(env); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("export format %q: %w", format, ErrUnsupportedFormat)
}

// envelopeWire defers decoding of individual preferences so one bad entry
// does not reject the whole file.
type envelopeWire[P any] struct {
	FormatVersion     int                    `json:"formatVersion" yaml:"formatVersion"`
	PreferenceVersion *int                   `json:"preferenceVersion" yaml:"preferenceVersion"`
	ExportedAt        string                 `json:"exportedAt" yaml:"exportedAt"`
	UserProfiles      map[string]ProfileType `json:"userProfiles" yaml:"userProfiles"`
	Preferences       map[string]P           `json:"preferences" yaml:"preferences"`
}

func (w envelopeWire[P]) envelope(decode func(P) (kv.Value, error)) *Envelope {
	env := &Envelope{
		FormatVersion:     w.FormatVersion,
		PreferenceVersion: w.PreferenceVersion,
		ExportedAt:        w.ExportedAt,
		UserProfiles:      w.UserProfiles,
	}
	if w.Preferences == nil {
		return env
	}
	env.Preferences = make(map[string]kv.Value, len(w.Preferences))
	for key, raw := range w.Preferences {
		v, err := decode(raw)
		if err != nil {
			slog.Warn("cannot read exported preference", "key", key, "error", err)
			env.rejected = append(env.rejected, key)
			continue
		}
		env.Preferences[key] = v
	}
	sort.Strings(env.rejected)
	return env
}

// DecodeEnvelope reads an envelope in the given format. An empty format
// sniffs JSON by its leading brace and falls back to YAML.
func DecodeEnvelope(rd io.Reader, format string) (*Envelope, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	format = strings.ToLower(format)
	if format == "" {
		format = "yaml"
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
			format = "json"
		}
	}

	switch format {
	case "json":
		var w envelopeWire[json.RawMessage]
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return w.envelope(func(raw json.RawMessage) (kv.Value, error) {
			var v kv.Value
			err := json.Unmarshal(raw, &v)
			return v, err
		}), nil
	case "yaml", "yml":
		var w envelopeWire[yaml.Node]
		if err := yaml.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		return w.envelope(func(node yaml.Node) (kv.Value, error) {
			var v kv.Value
			err := node.Decode(&v)
			return v, err
		}), nil
	}
	return nil, fmt.Errorf("import format %q: %w", format, ErrUnsupportedFormat)
}

// ImportReport summarizes an Import.
type ImportReport struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped,omitempty"`
	Failed   []string `json:"failed,omitempty"`
}

// Import replaces every stored preference with the contents of env. User
// ids inside stored JSON are remapped from the exporting device's profiles
// to local's by profile type; ids whose type has no local match become
// InvalidUser. Migrate runs afterwards.
func (r *Registry) Import(ctx context.Context, env *Envelope, local Profiles) (ImportReport, error) {
	report := ImportReport{Failed: slices.Clone(env.rejected)}
	if env.FormatVersion != FormatVersion {
		return report, fmt.Errorf("format version %d (expected %d): %w", env.FormatVersion, FormatVersion, ErrUnsupportedFormat)
	}
	if env.Preferences == nil {
		return report, fmt.Errorf("missing preferences: %w", ErrUnsupportedFormat)
	}
	if env.PreferenceVersion != nil && *env.PreferenceVersion != PreferenceVersion {
		slog.Warn("importing preferences from another schema version",
			"version", *env.PreferenceVersion, "current", PreferenceVersion)
	}

	remap := userRemap(env.UserProfiles, local)
	ctx = WithSource(ctx, "import")

	if err := r.store.Clear(); err != nil {
		return report, fmt.Errorf("clearing preferences: %w", err)
	}
	r.Invalidate()

	for _, key := range kv.Keys(env.Preferences) {
		if nonPortableKeys[key] {
			slog.Info("skipping non-portable preference", "key", key)
			report.Skipped = append(report.Skipped, key)
			continue
		}
		v := remapValue(env.Preferences[key], remap)
		if err := r.put(ctx, key, v); err != nil {
			slog.Warn("failed to import preference", "key", key, "error", err)
			report.Failed = append(report.Failed, key)
			continue
		}
		report.Imported++
	}

	if env.PreferenceVersion != nil {
		if err := InternalVersionCode.SetContext(ctx, r, *env.PreferenceVersion); err != nil {
			return report, err
		}
	}
	if err := r.Migrate(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func userRemap(exported map[string]ProfileType, local Profiles) map[int]int {
	// The lowest local id of each type wins if a type repeats.
	byType := make(map[ProfileType]int, len(local))
	for id, typ := range local {
		if prev, ok := byType[typ]; !ok || id < prev {
			byType[typ] = id
		}
	}
	remap := make(map[int]int, len(exported))
	for idStr, typ := range exported {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		if localID, ok := byType[typ]; ok {
			remap[id] = localID
		} else {
			slog.Warn("no local profile for exported user", "user", id, "type", typ)
			remap[id] = InvalidUser
		}
	}
	return remap
}

func remapValue(v kv.Value, remap map[int]int) kv.Value {
	if len(remap) == 0 {
		return v
	}
	switch v.Type {
	case kv.TypeString:
		return kv.String(remapUsers(v.Str, remap))
	case kv.TypeStringSet:
		members := make([]string, len(v.Set))
		for i, m := range v.Set {
			members[i] = remapUsers(m, remap)
		}
		return kv.StringSet(members)
	}
	return v
}

// remapUsers rewrites every integer "user" field of the JSON document s.
// Strings that are not JSON are returned unchanged.
func remapUsers(s string, remap map[int]int) string {
	if !strings.Contains(s, `"user"`) {
		return s
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return s
	}
	out, err := json.Marshal(remapUsersIn(doc, remap))
	if err != nil {
		return s
	}
	return string(out)
}

func remapUsersIn(node any, remap map[int]int) any {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			if num, ok := v.(json.Number); ok && k == "user" {
				if id, err := strconv.Atoi(num.String()); err == nil {
					if to, ok := remap[id]; ok {
						n[k] = json.Number(strconv.Itoa(to))
					}
				}
				continue
			}
			n[k] = remapUsersIn(v, remap)
		}
		return n
	case []any:
		for i, v := range n {
			n[i] = remapUsersIn(v, remap)
		}
		return n
	}
	return node
}
