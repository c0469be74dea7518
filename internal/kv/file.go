package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileStore keeps preferences as a flat JSON object of typed values.
// Writes replace the file atomically so readers never see a partial object.
type FileStore struct {
	path string

	mu   sync.RWMutex
	data map[string]Value
	// disk is the content last read from or written to path.
	disk []byte
}

// OpenFile loads path if it exists. A missing file is an empty store; an
// unreadable or malformed file is logged and treated as empty so that
// every preference falls back to its default.
func OpenFile(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating preferences dir: %w", err)
	}
	f := &FileStore{path: path, data: make(map[string]Value)}
	f.reload()
	return f, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

// reload replaces the in-memory values with the file's content and reports
// whether they changed. Content this store wrote itself is not reloaded.
func (f *FileStore) reload() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	switch {
	case os.IsNotExist(err):
		f.disk = nil
		if len(f.data) == 0 {
			return false
		}
		f.data = make(map[string]Value)
		return true
	case err != nil:
		slog.Warn("could not read preferences file, using defaults", "path", f.path, "error", err)
		return false
	case f.disk != nil && bytes.Equal(data, f.disk):
		return false
	}

	m := make(map[string]Value)
	if err := json.Unmarshal(data, &m); err != nil {
		// A single bad entry poisons json.Unmarshal for the whole object,
		// so retry entry by entry and keep whatever decodes.
		m = f.salvage(data, err)
	}
	f.data = m
	f.disk = data
	return true
}

func (f *FileStore) salvage(data []byte, cause error) map[string]Value {
	out := make(map[string]Value)
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("could not parse preferences file, using defaults", "path", f.path, "error", cause)
		return out
	}
	for k, r := range raw {
		var v Value
		if err := json.Unmarshal(r, &v); err != nil {
			slog.Warn("dropping malformed preference entry", "key", k, "error", err)
			continue
		}
		out[k] = v
	}
	return out
}

// save must be called with f.mu held.
func (f *FileStore) save() error {
	data, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".prefs-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	f.disk = data
	return nil
}

func (f *FileStore) Get(key string) (Value, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	return cloneValue(v), ok, nil
}

func (f *FileStore) Put(key string, val Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = cloneValue(val)
	return f.save()
}

func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return nil
	}
	delete(f.data, key)
	return f.save()
}

func (f *FileStore) All() (map[string]Value, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]Value, len(f.data))
	for k, v := range f.data {
		out[k] = cloneValue(v)
	}
	return out, nil
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = make(map[string]Value)
	return f.save()
}

// Watch reloads the store whenever another process changes the backing
// file and then calls onChange. Events caused by this store's own writes
// are ignored. It blocks until ctx is cancelled.
func (f *FileStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: atomic renames replace the inode, which would
	// silently end a watch on the file itself.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(f.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if f.reload() && onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("preferences file watcher error", "error", err)
		}
	}
}

