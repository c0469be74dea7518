package prefs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jrpie/launcher/internal/kv"
)

func mustGesture(t *testing.T, id string) Gesture {
	t.Helper()
	g, ok := LookupGesture(id)
	if !ok {
		t.Fatalf("gesture %s not in catalog", id)
	}
	return g
}

func TestGestureEnabledRules(t *testing.T) {
	r, _ := newTestRegistry(t)

	up := mustGesture(t, "action.up")
	upLeft := mustGesture(t, "action.up_left")
	doubleUp := mustGesture(t, "action.double_up")

	for _, g := range []Gesture{up, upLeft, doubleUp} {
		if !g.Enabled(r) {
			t.Errorf("%s disabled by default", g.ID)
		}
	}

	EnabledGesturesEdgeSwipe.Set(r, false)
	if upLeft.Enabled(r) {
		t.Error("edge variant still enabled with edge_swipe off")
	}
	if !doubleUp.Enabled(r) || !up.Enabled(r) {
		t.Error("edge_swipe should only affect edge variants")
	}

	EnabledGesturesDoubleSwipe.Set(r, false)
	if doubleUp.Enabled(r) {
		t.Error("double variant still enabled with double_swipe off")
	}
	if !up.Enabled(r) {
		t.Error("plain swipe should always be enabled")
	}
}

func TestCatalogIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, g := range Gestures() {
		if seen[g.ID] {
			t.Errorf("duplicate gesture %s", g.ID)
		}
		seen[g.ID] = true
		if _, declared := Lookup(g.ID); declared {
			t.Errorf("gesture %s collides with a preference key", g.ID)
		}
	}
}

func TestBindAndReadBack(t *testing.T) {
	r, store := newTestRegistry(t)
	ctx := context.Background()

	a := Action{Type: ActionApp, App: &mail}
	if err := r.Bind(ctx, "action.up", a); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	got, ok := r.Binding("action.up")
	if !ok {
		t.Fatal("binding not found")
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("binding mismatch (-want +got):\n%s", diff)
	}

	v, _, _ := store.Get("action.up")
	if v.Type != kv.TypeString {
		t.Errorf("binding stored as %s, want string", v.Type)
	}

	if err := r.Unbind(ctx, "action.up"); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if _, ok := r.Binding("action.up"); ok {
		t.Error("binding still present after Unbind")
	}
}

func TestBindRejectsUnknownGestureAndBadAction(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := r.Bind(ctx, "action.somersault", Action{Type: ActionLauncher, Name: "settings"}); !errors.Is(err, ErrUnknownGesture) {
		t.Errorf("Bind(unknown gesture) err = %v", err)
	}
	if err := r.Bind(ctx, "action.up", Action{Type: ActionLauncher, Name: "teleport"}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Bind(bad action) err = %v", err)
	}
	if err := r.Unbind(ctx, "action.somersault"); !errors.Is(err, ErrUnknownGesture) {
		t.Errorf("Unbind(unknown gesture) err = %v", err)
	}
}

func TestMalformedBindingReadsAsUnbound(t *testing.T) {
	r, store := newTestRegistry(t)
	store.Put("action.down", kv.String("{not json"))
	store.Put("action.left", kv.Int(4))

	if _, ok := r.Binding("action.down"); ok {
		t.Error("malformed JSON binding reported as bound")
	}
	if _, ok := r.Binding("action.left"); ok {
		t.Error("non-string binding reported as bound")
	}
}

func TestBoundApps(t *testing.T) {
	res := NewStaticResolver(mail, camera, callMom)
	r := NewRegistry(kv.NewMemoryStore(), res)
	ctx := context.Background()

	r.Bind(ctx, "action.up", Action{Type: ActionApp, App: &mail})
	r.Bind(ctx, "action.up_left", Action{Type: ActionApp, App: &camera})
	r.Bind(ctx, "action.down", Action{Type: ActionShortcut, Shortcut: &callMom})
	r.Bind(ctx, "action.left", Action{Type: ActionLauncher, Name: "lock_screen"})

	if diff := cmp.Diff(NewSet(mail, camera, callMom), r.BoundApps()); diff != "" {
		t.Errorf("bound apps mismatch (-want +got):\n%s", diff)
	}

	EnabledGesturesEdgeSwipe.Set(r, false)
	if diff := cmp.Diff(NewSet(mail, callMom), r.BoundApps()); diff != "" {
		t.Errorf("bound apps with edge swipes off (-want +got):\n%s", diff)
	}

	res.Remove(mail)
	if r.BoundApps().Has(mail) {
		t.Error("uninstalled app still reported as bound")
	}
}

func TestBindingsListsWholeCatalog(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Bind(context.Background(), "action.time", Action{Type: ActionLauncher, Name: "settings"})

	bindings := r.Bindings()
	if len(bindings) != len(Gestures()) {
		t.Fatalf("got %d bindings, want %d", len(bindings), len(Gestures()))
	}
	var bound int
	for _, b := range bindings {
		if b.Action != nil {
			bound++
			if b.Gesture.ID != "action.time" {
				t.Errorf("unexpected binding on %s", b.Gesture.ID)
			}
		}
	}
	if bound != 1 {
		t.Errorf("got %d bound gestures, want 1", bound)
	}
}

func TestParseAction(t *testing.T) {
	panel := 3
	tests := []struct {
		in   string
		want Action
	}{
		{"launcher:settings", Action{Type: ActionLauncher, Name: "settings"}},
		{"app:org.mail/org.mail.Main", Action{Type: ActionApp, App: &mail}},
		{"shortcut:org.dialer#call-mom", Action{Type: ActionShortcut, Shortcut: &callMom}},
		{"panel:3", Action{Type: ActionWidgetPanel, PanelID: &panel}},
		{`{"type":"launcher","name":"toggle_torch"}`, Action{Type: ActionLauncher, Name: "toggle_torch"}},
	}
	for _, tt := range tests {
		got, err := ParseAction(tt.in)
		if err != nil {
			t.Errorf("ParseAction(%q): %v", tt.in, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseAction(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}

	for _, bad := range []string{"settings", "launcher:fly", "app:", "shortcut:org.dialer", "panel:x", "teleport:now"} {
		if _, err := ParseAction(bad); err == nil {
			t.Errorf("ParseAction(%q) succeeded, want error", bad)
		}
	}
}

func TestSettingsReachable(t *testing.T) {
	settings := Action{Type: ActionLauncher, Name: "settings"}
	choose := Action{Type: ActionLauncher, Name: "choose_from_favorites"}
	torch := Action{Type: ActionLauncher, Name: "toggle_torch"}
	app := Action{Type: ActionApp, App: &mail}
	shortcut := Action{Type: ActionShortcut, Shortcut: &callMom}

	tests := []struct {
		name     string
		bindings map[string]Action
		noEdge   bool
		noDouble bool
		want     bool
	}{
		{"nothing bound", nil, false, false, false},
		{"settings on plain swipe", map[string]Action{"action.up": settings}, false, false, true},
		{"app list on plain swipe", map[string]Action{"action.down": choose}, false, false, true},
		{"only apps and shortcuts", map[string]Action{"action.up": app, "action.down": shortcut, "action.left": torch}, false, false, false},
		{"settings on edge swipe", map[string]Action{"action.up_left": settings}, false, false, true},
		{"settings on disabled edge swipe", map[string]Action{"action.up_left": settings}, true, false, false},
		{"settings on double swipe", map[string]Action{"action.double_up": settings}, false, false, true},
		{"settings on disabled double swipe", map[string]Action{"action.double_up": settings}, false, true, false},
		{"disabled edge but plain swipe left", map[string]Action{"action.up_left": settings, "action.tap_up": choose}, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(t)
			ctx := context.Background()
			for id, a := range tt.bindings {
				if err := r.Bind(ctx, id, a); err != nil {
					t.Fatalf("Bind(%s): %v", id, err)
				}
			}
			if tt.noEdge {
				EnabledGesturesEdgeSwipe.Set(r, false)
			}
			if tt.noDouble {
				EnabledGesturesDoubleSwipe.Set(r, false)
			}
			if got := r.SettingsReachable(); got != tt.want {
				t.Errorf("SettingsReachable() = %v, want %v", got, tt.want)
			}
		})
	}
}
