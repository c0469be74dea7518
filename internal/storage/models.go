package storage

import (
	"errors"
	"time"

	"github.com/jrpie/launcher/internal/kv"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Change is one entry of the preference history. A nil Old means the key
// was unset before; a nil New means it was reset to its default.
type Change struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Old       *kv.Value `json:"old,omitempty"`
	New       *kv.Value `json:"new,omitempty"`
	Source    string    `json:"source"` // "api", "mcp", "import", ...
	ChangedAt time.Time `json:"changed_at"`
}
