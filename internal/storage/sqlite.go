package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jrpie/launcher/internal/kv"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding preferences and their change history.
// It implements kv.Store.
type Store struct {
	db *sql.DB
}

var _ kv.Store = (*Store)(nil)

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "launcherprefs.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection: an in-memory database is per-connection, and a file
	// database avoids "database is locked" this way.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Preferences ---

func encodePayload(v kv.Value) (string, error) {
	b, err := json.Marshal(v.Payload())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRow(typ, payload string) (kv.Value, error) {
	var v kv.Value
	raw := fmt.Sprintf(`{"type":%q,"value":%s}`, typ, payload)
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return kv.Value{}, err
	}
	return v, nil
}

func (s *Store) Get(key string) (kv.Value, bool, error) {
	var typ, payload string
	err := s.db.QueryRow("SELECT type, value FROM preferences WHERE key = ?", key).Scan(&typ, &payload)
	if err == sql.ErrNoRows {
		return kv.Value{}, false, nil
	}
	if err != nil {
		return kv.Value{}, false, err
	}
	v, err := decodeRow(typ, payload)
	if err != nil {
		return kv.Value{}, true, fmt.Errorf("decoding %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Put(key string, val kv.Value) error {
	payload, err := encodePayload(val)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO preferences (key, type, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET type = excluded.type, value = excluded.value, updated_at = excluded.updated_at`,
		key, string(val.Type), payload, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM preferences WHERE key = ?", key)
	return err
}

// All returns every stored preference. Rows that no longer decode are skipped.
func (s *Store) All() (map[string]kv.Value, error) {
	rows, err := s.db.Query("SELECT key, type, value FROM preferences")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]kv.Value)
	for rows.Next() {
		var k, typ, payload string
		if err := rows.Scan(&k, &typ, &payload); err != nil {
			return nil, err
		}
		v, err := decodeRow(typ, payload)
		if err != nil {
			continue
		}
		result[k] = v
	}
	return result, rows.Err()
}

func (s *Store) Clear() error {
	_, err := s.db.Exec("DELETE FROM preferences")
	return err
}

// --- Change history ---

// changeTimeLayout is fixed-width so changed_at sorts correctly as text.
const changeTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordChange appends c to the history. ID and ChangedAt are filled in
// when empty.
func (s *Store) RecordChange(c Change) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ChangedAt.IsZero() {
		c.ChangedAt = time.Now()
	}
	oldJSON, err := nullableValue(c.Old)
	if err != nil {
		return fmt.Errorf("encoding old value: %w", err)
	}
	newJSON, err := nullableValue(c.New)
	if err != nil {
		return fmt.Errorf("encoding new value: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO preference_changes (id, key, old_value, new_value, source, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Key, oldJSON, newJSON, c.Source, c.ChangedAt.UTC().Format(changeTimeLayout),
	)
	return err
}

func nullableValue(v *kv.Value) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func scanValue(ns sql.NullString) (*kv.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	var v kv.Value
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListChanges returns history entries newest first. An empty key lists
// changes to every key.
func (s *Store) ListChanges(key string, limit, offset int) ([]Change, error) {
	query := `SELECT id, key, old_value, new_value, source, changed_at FROM preference_changes`
	var args []any
	if key != "" {
		query += ` WHERE key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY changed_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Change
	for rows.Next() {
		var c Change
		var oldJSON, newJSON sql.NullString
		var changedAt string
		if err := rows.Scan(&c.ID, &c.Key, &oldJSON, &newJSON, &c.Source, &changedAt); err != nil {
			return nil, err
		}
		if c.Old, err = scanValue(oldJSON); err != nil {
			return nil, fmt.Errorf("decoding old value of change %s: %w", c.ID, err)
		}
		if c.New, err = scanValue(newJSON); err != nil {
			return nil, fmt.Errorf("decoding new value of change %s: %w", c.ID, err)
		}
		t, err := time.Parse(changeTimeLayout, changedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing changed_at: %w", err)
		}
		c.ChangedAt = t
		results = append(results, c)
	}
	return results, rows.Err()
}

// GetChange returns one history entry by ID.
func (s *Store) GetChange(id string) (Change, error) {
	var c Change
	var oldJSON, newJSON sql.NullString
	var changedAt string
	err := s.db.QueryRow(`
		SELECT id, key, old_value, new_value, source, changed_at
		FROM preference_changes WHERE id = ?`, id,
	).Scan(&c.ID, &c.Key, &oldJSON, &newJSON, &c.Source, &changedAt)
	if err == sql.ErrNoRows {
		return Change{}, ErrNotFound
	}
	if err != nil {
		return Change{}, err
	}
	if c.Old, err = scanValue(oldJSON); err != nil {
		return Change{}, err
	}
	if c.New, err = scanValue(newJSON); err != nil {
		return Change{}, err
	}
	if c.ChangedAt, err = time.Parse(changeTimeLayout, changedAt); err != nil {
		return Change{}, fmt.Errorf("parsing changed_at: %w", err)
	}
	return c, nil
}

// PruneChanges deletes history entries older than before and returns how
// many were removed.
func (s *Store) PruneChanges(before time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM preference_changes WHERE changed_at < ?", before.UTC().Format(changeTimeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
