package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jrpie/launcher/internal/config"
	"github.com/jrpie/launcher/internal/kv"
	"github.com/jrpie/launcher/internal/prefs"
	"github.com/jrpie/launcher/internal/storage"
)

// backend is the preference store chosen by storage.driver plus the SQLite
// database that keeps the change history.
type backend struct {
	store   kv.Store
	history *storage.Store

	// watch is set when the store can change underneath the daemon.
	watch func(ctx context.Context, onChange func()) error

	closers []func() error
}

func (b *backend) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openBackend(cfg config.Config) (*backend, error) {
	historyDir := cfg.Storage.DataDir
	if cfg.Storage.Driver == config.DriverMemory {
		historyDir = ":memory:"
	}
	history, err := storage.Open(historyDir)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	b := &backend{history: history, closers: []func() error{history.Close}}

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		b.store = history

	case config.DriverFile:
		path := cfg.Storage.PrefsFile
		if path == "" {
			path = filepath.Join(cfg.Storage.DataDir, "preferences.json")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			b.Close()
			return nil, fmt.Errorf("creating preferences directory: %w", err)
		}
		fs, err := kv.OpenFile(path)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("opening preferences file: %w", err)
		}
		b.store = fs
		b.watch = fs.Watch

	case config.DriverRedis:
		rs := kv.NewRedisStore(kv.NewRedisPool(cfg.Redis.URL), cfg.Redis.Prefix)
		b.store = rs
		b.closers = append(b.closers, rs.Close)

	case config.DriverMemory:
		b.store = kv.NewMemoryStore()

	default:
		b.Close()
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return b, nil
}

// recordHistory returns a change observer that appends to the history log.
// Failures are logged; they never undo the write itself.
func recordHistory(h *storage.Store) func(prefs.Change) {
	return func(c prefs.Change) {
		err := h.RecordChange(storage.Change{
			Key:    c.Key,
			Old:    c.Old,
			New:    c.New,
			Source: c.Source,
		})
		if err != nil {
			slog.Warn("recording preference change", "key", c.Key, "error", err)
		}
	}
}

// pruneHistory drops changes older than retention once immediately and then
// every tick until ctx is done.
func pruneHistory(ctx context.Context, h *storage.Store, retention, every time.Duration) {
	prune := func() {
		n, err := h.PruneChanges(time.Now().Add(-retention))
		if err != nil {
			slog.Warn("pruning preference history", "error", err)
			return
		}
		if n > 0 {
			slog.Debug("pruned preference history", "removed", n)
		}
	}

	prune()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// buildResolver turns the configured app list into a resolver. An empty
// list means every reference resolves.
func buildResolver(apps []string) (prefs.Resolver, error) {
	if len(apps) == 0 {
		return nil, nil
	}
	refs := make([]prefs.AppRef, 0, len(apps))
	for _, a := range apps {
		ref, err := prefs.ParseAppRef(a)
		if err != nil {
			return nil, fmt.Errorf("device.apps entry %q: %w", a, err)
		}
		refs = append(refs, ref)
	}
	return prefs.NewStaticResolver(refs...), nil
}

func buildProfiles(m map[int]string) prefs.Profiles {
	if len(m) == 0 {
		return prefs.DefaultProfiles()
	}
	p := make(prefs.Profiles, len(m))
	for id, typ := range m {
		p[id] = prefs.ProfileType(typ)
	}
	return p
}
