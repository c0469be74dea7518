package prefs

import (
	"context"
	"fmt"
	"log/slog"
)

// PreferenceVersion is the schema version written to
// internal.version_code after migrating.
const PreferenceVersion = 2

// Widgets used to live in the internal group before panels existed.
const legacyWidgetsKey = "settings_internal_widgets_key"

// migrations[v] upgrades stored preferences from version v to v+1.
var migrations = map[int]func(context.Context, *Registry) error{
	1: moveLegacyWidgets,
}

// Migrate brings the stored preferences up to PreferenceVersion. A store
// that was never stamped is treated as fresh when it is empty and as
// version 1 otherwise.
func (r *Registry) Migrate(ctx context.Context) error {
	version := InternalVersionCode.Get(r)
	if version == PreferenceVersion {
		return nil
	}
	if version > PreferenceVersion {
		slog.Warn("stored preferences are newer than this build, leaving them untouched",
			"version", version, "supported", PreferenceVersion)
		return nil
	}

	if version < 1 {
		all, err := r.store.All()
		if err != nil {
			return fmt.Errorf("reading preferences: %w", err)
		}
		delete(all, InternalVersionCode.Key())
		if len(all) == 0 {
			return InternalVersionCode.SetContext(ctx, r, PreferenceVersion)
		}
		version = 1
	}

	for v := version; v < PreferenceVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			continue
		}
		slog.Info("migrating preferences", "from", v, "to", v+1)
		if err := step(ctx, r); err != nil {
			return fmt.Errorf("migrating preferences from version %d: %w", v, err)
		}
	}
	return InternalVersionCode.SetContext(ctx, r, PreferenceVersion)
}

func moveLegacyWidgets(ctx context.Context, r *Registry) error {
	legacy, ok := r.raw(legacyWidgetsKey)
	if !ok {
		return nil
	}
	if _, stored := r.raw(WidgetsWidgets.Key()); !stored {
		widgets, ok := WidgetSetCodec.Decode(legacy, nil)
		if !ok {
			slog.Warn("dropping malformed legacy widgets", "value", legacy.String())
		} else if err := WidgetsWidgets.SetContext(ctx, r, widgets); err != nil {
			return err
		}
	}
	return r.remove(ctx, legacyWidgetsKey)
}
