package prefs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jrpie/launcher/internal/kv"
)

var exportTime = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

func seedRegistry(t *testing.T, r *Registry) {
	t.Helper()
	ctx := context.Background()
	steps := []error{
		ThemeFont.Set(r, FontSerif),
		ClockColor.Set(r, -16711936),
		InternalStartedTime.Set(r, 1700000000000),
		AppsFavorites.Set(r, NewSet(mail, camera)),
		AppsCustomNames.Set(r, NameMap{mail: "Post"}),
		AppsPinnedShortcuts.Set(r, NewSet(callMom)),
		WidgetsCustomPanels.Set(r, NewSet(WidgetPanel{ID: 2, Label: "music"})),
		r.Bind(ctx, "action.up", Action{Type: ActionApp, App: &camera}),
		r.Migrate(ctx),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("seed step %d: %v", i, err)
		}
	}
}

func TestExportEnvelope(t *testing.T) {
	r, _ := newTestRegistry(t)
	seedRegistry(t, r)

	env, err := r.Export(Profiles{0: ProfileMain, 10: ProfileWork}, exportTime)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if env.FormatVersion != FormatVersion {
		t.Errorf("formatVersion = %d", env.FormatVersion)
	}
	if env.PreferenceVersion == nil || *env.PreferenceVersion != PreferenceVersion {
		t.Errorf("preferenceVersion = %v", env.PreferenceVersion)
	}
	if env.ExportedAt != "2024-05-01T08:30:00Z" {
		t.Errorf("exportedAt = %q", env.ExportedAt)
	}
	if diff := cmp.Diff(map[string]ProfileType{"0": ProfileMain, "10": ProfileWork}, env.UserProfiles); diff != "" {
		t.Errorf("userProfiles mismatch (-want +got):\n%s", diff)
	}
	if _, ok := env.Preferences["action.up"]; !ok {
		t.Error("gesture binding missing from export")
	}

	var buf bytes.Buffer
	if err := env.Encode(&buf, "json"); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	for _, k := range []string{"formatVersion", "preferenceVersion", "exportedAt", "userProfiles", "preferences"} {
		if _, ok := raw[k]; !ok {
			t.Errorf("exported JSON lacks %q", k)
		}
	}
	if !strings.Contains(buf.String(), `"type": "long"`) {
		t.Errorf("started_time should be exported with its long tag:\n%s", buf.String())
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			src, _ := newTestRegistry(t)
			seedRegistry(t, src)
			env, err := src.Export(DefaultProfiles(), exportTime)
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			var buf bytes.Buffer
			if err := env.Encode(&buf, format); err != nil {
				t.Fatalf("Encode: %v", err)
			}

			back, err := DecodeEnvelope(&buf, "")
			if err != nil {
				t.Fatalf("DecodeEnvelope: %v", err)
			}
			dst, dstStore := newTestRegistry(t)
			dstStore.Put(ThemeTextShadow.Key(), kv.Bool(true))

			report, err := dst.Import(context.Background(), back, DefaultProfiles())
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if len(report.Failed) != 0 {
				t.Errorf("failed keys: %v", report.Failed)
			}

			if got := ThemeFont.Get(dst); got != FontSerif {
				t.Errorf("font = %s", got)
			}
			if got := ClockColor.Get(dst); got != -16711936 {
				t.Errorf("clock color = %d", got)
			}
			if got := InternalStartedTime.Get(dst); got != 1700000000000 {
				t.Errorf("started_time = %d", got)
			}
			if diff := cmp.Diff(NewSet(mail, camera), AppsFavorites.Get(dst)); diff != "" {
				t.Errorf("favorites mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(NameMap{mail: "Post"}, AppsCustomNames.Get(dst)); diff != "" {
				t.Errorf("custom names mismatch (-want +got):\n%s", diff)
			}
			if a, ok := dst.Binding("action.up"); !ok || *a.App != camera {
				t.Errorf("binding = %+v, %v", a, ok)
			}
			if got := ThemeTextShadow.Get(dst); got {
				t.Error("import did not clear previous preferences")
			}
			if got := InternalVersionCode.Get(dst); got != PreferenceVersion {
				t.Errorf("version_code = %d", got)
			}
		})
	}
}

func TestImportSkipsNonPortableKeys(t *testing.T) {
	src, _ := newTestRegistry(t)
	seedRegistry(t, src)
	env, _ := src.Export(DefaultProfiles(), exportTime)

	dst, _ := newTestRegistry(t)
	report, err := dst.Import(context.Background(), env, DefaultProfiles())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	want := []string{AppsPinnedShortcuts.Key(), WidgetsCustomPanels.Key()}
	if diff := cmp.Diff(want, report.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
	if AppsPinnedShortcuts.Get(dst).Len() != 0 {
		t.Error("pinned shortcuts were imported")
	}
	if WidgetsCustomPanels.Get(dst).Len() != 0 {
		t.Error("custom panels were imported")
	}
}

func TestImportRemapsUserIDs(t *testing.T) {
	src, _ := newTestRegistry(t)
	work := AppRef{Kind: RefApp, Package: "org.vpn", User: 10}
	private := AppRef{Kind: RefApp, Package: "org.diary", User: 11}
	AppsHidden.Set(src, NewSet(mail, work, private))
	src.Bind(context.Background(), "action.down", Action{Type: ActionApp, App: &work})

	env, _ := src.Export(Profiles{0: ProfileMain, 10: ProfileWork, 11: ProfilePrivate}, exportTime)

	// The importing device has its work profile under user 95 and no
	// private space.
	dst, _ := newTestRegistry(t)
	if _, err := dst.Import(context.Background(), env, Profiles{0: ProfileMain, 95: ProfileWork}); err != nil {
		t.Fatalf("Import: %v", err)
	}

	wantWork := AppRef{Kind: RefApp, Package: "org.vpn", User: 95}
	wantPrivate := AppRef{Kind: RefApp, Package: "org.diary", User: InvalidUser}
	if diff := cmp.Diff(NewSet(mail, wantWork, wantPrivate), AppsHidden.Get(dst)); diff != "" {
		t.Errorf("hidden mismatch (-want +got):\n%s", diff)
	}
	a, ok := dst.Binding("action.down")
	if !ok || *a.App != wantWork {
		t.Errorf("binding = %+v, %v; want app for user 95", a, ok)
	}
}

func TestImportRejectsBadEnvelopes(t *testing.T) {
	r, store := newTestRegistry(t)
	store.Put(ThemeFont.Key(), kv.String("SERIF"))
	ctx := context.Background()

	if _, err := r.Import(ctx, &Envelope{FormatVersion: 2, Preferences: map[string]kv.Value{}}, nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Import(format 2) err = %v", err)
	}
	if _, err := r.Import(ctx, &Envelope{FormatVersion: 1}, nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Import(no preferences) err = %v", err)
	}
	if got := ThemeFont.Get(r); got != FontSerif {
		t.Error("rejected import touched the store")
	}
}

func TestDecodeEnvelopeSkipsUnreadableEntries(t *testing.T) {
	in := `{
  "formatVersion": 1,
  "preferences": {
    "settings_theme_font_key": {"type": "string", "value": "SERIF"},
    "settings_theme_wat_key": {"type": "double", "value": 2.5}
  }
}`
	env, err := DecodeEnvelope(strings.NewReader(in), "json")
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	r, _ := newTestRegistry(t)
	report, err := r.Import(context.Background(), env, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if diff := cmp.Diff([]string{"settings_theme_wat_key"}, report.Failed); diff != "" {
		t.Errorf("failed mismatch (-want +got):\n%s", diff)
	}
	if report.Imported != 1 || ThemeFont.Get(r) != FontSerif {
		t.Errorf("report = %+v, font = %s", report, ThemeFont.Get(r))
	}
}

func TestDecodeEnvelopeFormats(t *testing.T) {
	yamlIn := `formatVersion: 1
preferenceVersion: 2
preferences:
  settings_clock_show_seconds_key:
    type: boolean
    value: false
  settings_apps_hidden_key:
    type: string_set
    value:
      - '{"type":"app","package":"org.mail","user":0}'
`
	env, err := DecodeEnvelope(strings.NewReader(yamlIn), "")
	if err != nil {
		t.Fatalf("DecodeEnvelope(yaml): %v", err)
	}
	if !env.Preferences["settings_clock_show_seconds_key"].Equal(kv.Bool(false)) {
		t.Errorf("show_seconds = %v", env.Preferences["settings_clock_show_seconds_key"])
	}
	if got := env.Preferences["settings_apps_hidden_key"]; len(got.Set) != 1 {
		t.Errorf("hidden = %v", got)
	}

	if _, err := DecodeEnvelope(strings.NewReader("{}"), "toml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("DecodeEnvelope(toml) err = %v", err)
	}
	if err := (&Envelope{}).Encode(&bytes.Buffer{}, "xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Encode(xml) err = %v", err)
	}
}

func TestRemapUsersLeavesPlainStringsAlone(t *testing.T) {
	remap := map[int]int{0: 5}
	for _, s := range []string{"SERIF", `has "user" but not json`, `{"type":"app","package":"p"}`} {
		if got := remapUsers(s, remap); got != s {
			t.Errorf("remapUsers(%q) = %q", s, got)
		}
	}
}

func TestImportRemapsMainUserToNonZeroID(t *testing.T) {
	src, _ := newTestRegistry(t)
	AppsFavorites.Set(src, NewSet(mail))
	env, _ := src.Export(DefaultProfiles(), exportTime)

	want := NewSet(AppRef{Kind: RefApp, Package: "org.mail", Activity: "org.mail.Main", User: 10})

	// Map iteration order must not decide which local user an exported
	// profile lands on.
	for i := 0; i < 20; i++ {
		dst, _ := newTestRegistry(t)
		if _, err := dst.Import(context.Background(), env, Profiles{12: ProfileMain, 10: ProfileMain, 11: ProfileWork}); err != nil {
			t.Fatalf("Import: %v", err)
		}
		if diff := cmp.Diff(want, AppsFavorites.Get(dst)); diff != "" {
			t.Fatalf("favorites mismatch on run %d (-want +got):\n%s", i, diff)
		}
	}
}
