package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jrpie/launcher/internal/kv"
)

// Gesture is a user input the launcher can bind an action to. Its ID is
// also the storage key of the binding.
type Gesture struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	edge        bool
	double      bool
}

func (g Gesture) IsEdgeVariant() bool   { return g.edge }
func (g Gesture) IsDoubleVariant() bool { return g.double }

// Enabled reports whether the launcher currently listens for g. Edge and
// double swipes can be switched off as a group.
func (g Gesture) Enabled(r *Registry) bool {
	if g.edge {
		return EnabledGesturesEdgeSwipe.Get(r)
	}
	if g.double {
		return EnabledGesturesDoubleSwipe.Get(r)
	}
	return true
}

var gestures = []Gesture{
	{ID: "action.volume_up", Description: "Volume up button"},
	{ID: "action.volume_down", Description: "Volume down button"},
	{ID: "action.time", Description: "Tap on the clock"},
	{ID: "action.date", Description: "Tap on the date"},
	{ID: "action.back", Description: "Back button"},
	{ID: "action.long_click", Description: "Long click"},
	{ID: "action.double_click", Description: "Double click"},
	{ID: "action.up", Description: "Swipe up"},
	{ID: "action.up_left", Description: "Swipe up at the left edge", edge: true},
	{ID: "action.up_right", Description: "Swipe up at the right edge", edge: true},
	{ID: "action.tap_up", Description: "Tap and swipe up"},
	{ID: "action.double_up", Description: "Swipe up with two fingers", double: true},
	{ID: "action.down", Description: "Swipe down"},
	{ID: "action.down_left", Description: "Swipe down at the left edge", edge: true},
	{ID: "action.down_right", Description: "Swipe down at the right edge", edge: true},
	{ID: "action.tap_down", Description: "Tap and swipe down"},
	{ID: "action.double_down", Description: "Swipe down with two fingers", double: true},
	{ID: "action.left", Description: "Swipe left"},
	{ID: "action.left_top", Description: "Swipe left at the top edge", edge: true},
	{ID: "action.left_bottom", Description: "Swipe left at the bottom edge", edge: true},
	{ID: "action.tap_left", Description: "Tap and swipe left"},
	{ID: "action.double_left", Description: "Swipe left with two fingers", double: true},
	{ID: "action.right", Description: "Swipe right"},
	{ID: "action.right_top", Description: "Swipe right at the top edge", edge: true},
	{ID: "action.right_bottom", Description: "Swipe right at the bottom edge", edge: true},
	{ID: "action.tap_right", Description: "Tap and swipe right"},
	{ID: "action.double_right", Description: "Swipe right with two fingers", double: true},
	{ID: "action.larger", Description: "Pinch out"},
	{ID: "action.larger_reverse", Description: "Pinch out, reversed"},
	{ID: "action.smaller", Description: "Pinch in"},
	{ID: "action.smaller_reverse", Description: "Pinch in, reversed"},
	{ID: "action.lambda", Description: "Swipe a Λ"},
	{ID: "action.lambda_reverse", Description: "Swipe a Λ, reversed"},
	{ID: "action.v", Description: "Swipe a V"},
	{ID: "action.v_reverse", Description: "Swipe a V, reversed"},
}

// Gestures returns the gesture catalog.
func Gestures() []Gesture {
	return slices.Clone(gestures)
}

func LookupGesture(id string) (Gesture, bool) {
	for _, g := range gestures {
		if g.ID == id {
			return g, true
		}
	}
	return Gesture{}, false
}

// ActionType discriminates the serialized Action variants.
type ActionType string

const (
	ActionApp         ActionType = "app"
	ActionShortcut    ActionType = "shortcut"
	ActionLauncher    ActionType = "launcher"
	ActionWidgetPanel ActionType = "widget_panel"
)

// LauncherActions are the built-in actions a gesture can trigger.
var LauncherActions = []string{
	"settings",
	"choose",
	"choose_from_favorites",
	"choose_from_private_space",
	"volume_up",
	"volume_down",
	"next_track",
	"previous_track",
	"expand_notifications_panel",
	"expand_settings_panel",
	"lock_screen",
	"toggle_torch",
	"launch_other_launcher",
	"nop",
}

// Action is what a gesture is bound to.
type Action struct {
	Type     ActionType `json:"type" yaml:"type"`
	App      *AppRef    `json:"app,omitempty" yaml:"app,omitempty"`
	Shortcut *AppRef    `json:"shortcut,omitempty" yaml:"shortcut,omitempty"`
	Name     string     `json:"name,omitempty" yaml:"name,omitempty"`
	PanelID  *int       `json:"id,omitempty" yaml:"id,omitempty"`
}

func (a Action) Validate() error {
	switch a.Type {
	case ActionApp:
		if a.App == nil || a.App.Kind != RefApp || !a.App.Valid() {
			return fmt.Errorf("app action needs an app reference: %w", ErrInvalidValue)
		}
	case ActionShortcut:
		if a.Shortcut == nil || a.Shortcut.Kind != RefShortcut || !a.Shortcut.Valid() {
			return fmt.Errorf("shortcut action needs a shortcut reference: %w", ErrInvalidValue)
		}
	case ActionLauncher:
		if !slices.Contains(LauncherActions, a.Name) {
			return fmt.Errorf("unknown launcher action %q: %w", a.Name, ErrInvalidValue)
		}
	case ActionWidgetPanel:
		if a.PanelID == nil {
			return fmt.Errorf("widget panel action needs a panel id: %w", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("unknown action type %q: %w", a.Type, ErrInvalidValue)
	}
	return nil
}

// target returns the app or shortcut the action launches, if any.
func (a Action) target() (AppRef, bool) {
	switch {
	case a.Type == ActionApp && a.App != nil:
		return *a.App, true
	case a.Type == ActionShortcut && a.Shortcut != nil:
		return *a.Shortcut, true
	}
	return AppRef{}, false
}

func (a Action) String() string {
	switch a.Type {
	case ActionApp, ActionShortcut:
		if ref, ok := a.target(); ok {
			return string(a.Type) + ":" + ref.String()
		}
	case ActionLauncher:
		return "launcher:" + a.Name
	case ActionWidgetPanel:
		if a.PanelID != nil {
			return "panel:" + strconv.Itoa(*a.PanelID)
		}
	}
	return string(a.Type)
}

// ParseAction reads an action in JSON form or in one of the short forms
// launcher:<name>, app:<ref>, shortcut:<ref> and panel:<id>.
func ParseAction(s string) (Action, error) {
	s = strings.TrimSpace(s)
	var a Action
	if strings.HasPrefix(s, "{") {
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return Action{}, fmt.Errorf("parsing action: %w", err)
		}
	} else {
		kind, rest, ok := strings.Cut(s, ":")
		if !ok {
			return Action{}, fmt.Errorf("action %q: expected <type>:<value>: %w", s, ErrInvalidValue)
		}
		switch kind {
		case "launcher":
			a = Action{Type: ActionLauncher, Name: rest}
		case "app":
			ref, err := ParseAppRef(rest)
			if err != nil {
				return Action{}, err
			}
			a = Action{Type: ActionApp, App: &ref}
		case "shortcut":
			ref, err := ParseAppRef(rest)
			if err != nil {
				return Action{}, err
			}
			a = Action{Type: ActionShortcut, Shortcut: &ref}
		case "panel":
			id, err := strconv.Atoi(rest)
			if err != nil {
				return Action{}, fmt.Errorf("panel id %q: %w", rest, ErrInvalidValue)
			}
			a = Action{Type: ActionWidgetPanel, PanelID: &id}
		default:
			return Action{}, fmt.Errorf("unknown action type %q: %w", kind, ErrInvalidValue)
		}
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

// Binding returns the action bound to gesture id. A missing, malformed or
// no longer resolvable binding reads as unbound.
func (r *Registry) Binding(id string) (Action, bool) {
	v, ok := r.raw(id)
	if !ok {
		return Action{}, false
	}
	if v.Type != kv.TypeString {
		r.warnMalformed(id, v)
		return Action{}, false
	}
	var a Action
	if err := json.Unmarshal([]byte(v.Str), &a); err != nil || a.Validate() != nil {
		r.warnMalformed(id, v)
		return Action{}, false
	}
	if ref, ok := a.target(); ok && !resolves(r.resolver, ref) {
		return Action{}, false
	}
	return a, true
}

// Bind stores a as the action of gesture id.
func (r *Registry) Bind(ctx context.Context, id string, a Action) error {
	if _, ok := LookupGesture(id); !ok {
		return fmt.Errorf("%q: %w", id, ErrUnknownGesture)
	}
	if err := a.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding action: %w", err)
	}
	return r.put(ctx, id, kv.String(string(b)))
}

// Unbind removes the binding of gesture id.
func (r *Registry) Unbind(ctx context.Context, id string) error {
	if _, ok := LookupGesture(id); !ok {
		return fmt.Errorf("%q: %w", id, ErrUnknownGesture)
	}
	return r.remove(ctx, id)
}

// GestureBinding is one row of Bindings.
type GestureBinding struct {
	Gesture Gesture `json:"gesture"`
	Enabled bool    `json:"enabled"`
	Action  *Action `json:"action,omitempty"`
}

// Bindings lists every gesture in catalog order with its current action.
func (r *Registry) Bindings() []GestureBinding {
	out := make([]GestureBinding, 0, len(gestures))
	for _, g := range gestures {
		b := GestureBinding{Gesture: g, Enabled: g.Enabled(r)}
		if a, ok := r.Binding(g.ID); ok {
			b.Action = &a
		}
		out = append(out, b)
	}
	return out
}

// ReachesSettings reports whether triggering a leads to the launcher
// settings, directly or through the settings button of the app list.
func (a Action) ReachesSettings() bool {
	if a.Type != ActionLauncher {
		return false
	}
	return a.Name == "settings" || strings.HasPrefix(a.Name, "choose")
}

// SettingsReachable reports whether some enabled gesture leads to the
// settings. When none does, the launcher has to show its fallback button.
func (r *Registry) SettingsReachable() bool {
	for _, g := range gestures {
		if !g.Enabled(r) {
			continue
		}
		if a, ok := r.Binding(g.ID); ok && a.ReachesSettings() {
			return true
		}
	}
	return false
}

// BoundApps returns the apps and shortcuts reachable through an enabled
// gesture. The app list hides these when apps.hide_bound_apps is set.
func (r *Registry) BoundApps() Set[AppRef] {
	out := NewSet[AppRef]()
	for _, g := range gestures {
		if !g.Enabled(r) {
			continue
		}
		a, ok := r.Binding(g.ID)
		if !ok {
			continue
		}
		if ref, ok := a.target(); ok {
			out.Add(ref)
		}
	}
	return out
}
