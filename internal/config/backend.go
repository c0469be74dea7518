package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigBackend abstracts where `config set` writes to.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	SetList(key string, val []string) error
	Delete(key string) error
}

// Path returns the config file location. LAUNCHERPREFS_CONFIG overrides
// the default of $XDG_CONFIG_HOME/launcherprefs/config.yaml.
func Path() string {
	if p := os.Getenv("LAUNCHERPREFS_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "launcherprefs", "config.yaml")
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "launcherprefs-data"
		}
	}
	return filepath.Join(dir, "launcherprefs")
}

// yamlBackend edits the config file as a tree of nested mappings, so keys
// it does not know about survive a rewrite. Dotted keys address nested
// mappings: "server.port" is port under server.
type yamlBackend struct {
	path string
	data map[string]any
}

func newFileBackend(path string) (*yamlBackend, error) {
	b := &yamlBackend{path: path, data: make(map[string]any)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &b.data); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if b.data == nil {
		b.data = make(map[string]any)
	}
	return b, nil
}

func (b *yamlBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(b.data)
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o600)
}

// parent walks to the mapping holding the last path element, creating
// intermediate mappings when create is set.
func (b *yamlBackend) parent(key string, create bool) (map[string]any, string, bool) {
	parts := strings.Split(key, ".")
	m := b.data
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			if !create {
				return nil, "", false
			}
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	return m, parts[len(parts)-1], true
}

func (b *yamlBackend) GetString(key string) (string, bool, error) {
	m, leaf, ok := b.parent(key, false)
	if !ok {
		return "", false, nil
	}
	v, ok := m[leaf]
	if !ok {
		return "", false, nil
	}
	if s, ok := v.(string); ok {
		return s, true, nil
	}
	return fmt.Sprintf("%v", v), true, nil
}

func (b *yamlBackend) SetString(key, val string) error {
	m, leaf, _ := b.parent(key, true)
	m[leaf] = val
	return b.save()
}

func (b *yamlBackend) SetInt(key string, val int) error {
	m, leaf, _ := b.parent(key, true)
	m[leaf] = val
	return b.save()
}

func (b *yamlBackend) SetList(key string, val []string) error {
	m, leaf, _ := b.parent(key, true)
	m[leaf] = val
	return b.save()
}

func (b *yamlBackend) Delete(key string) error {
	m, leaf, ok := b.parent(key, false)
	if !ok {
		return nil
	}
	delete(m, leaf)
	return b.save()
}
