package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jrpie/launcher/internal/prefs"
	"github.com/jrpie/launcher/internal/storage"
)

// SetRequest is the body of PUT /prefs/{key}. A JSON string value is read
// the way the CLI reads an argument ("SERIF", "0xff00ff00"); any other JSON
// value (true, 12, a list of apps) is read from its JSON text.
type SetRequest struct {
	Value json.RawMessage `json:"value"`
}

// text returns the user-input form of the request value.
func (s SetRequest) text() (string, error) {
	raw := strings.TrimSpace(string(s.Value))
	if raw == "" || raw == "null" {
		return "", fmt.Errorf("value is required")
	}
	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal([]byte(raw), &str); err != nil {
			return "", err
		}
		return str, nil
	}
	return raw, nil
}

// BindRequest is the body of PUT /gestures/{id}. Action is either an
// object or a short form such as "launcher:settings".
type BindRequest struct {
	Action json.RawMessage `json:"action"`
}

// GesturesResponse lists every gesture. SettingsReachable is false when no
// enabled gesture leads to the launcher settings.
type GesturesResponse struct {
	SettingsReachable bool                   `json:"settings_reachable"`
	Bindings          []prefs.GestureBinding `json:"bindings"`
}

// BindResponse answers a bind or unbind.
type BindResponse struct {
	Status            string        `json:"status"`
	Action            *prefs.Action `json:"action,omitempty"`
	SettingsReachable bool          `json:"settings_reachable"`
}

func pathKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	ref := chi.URLParam(r, "key")
	key, ok := prefs.ResolveKey(ref)
	if !ok {
		httpError(w, http.StatusNotFound, "not_found", "unknown preference %q", ref)
		return "", false
	}
	return key, true
}

func handleListPrefs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := deps.Registry.Snapshot()
		if group := r.URL.Query().Get("group"); group != "" {
			if _, ok := prefs.LookupGroup(group); !ok {
				httpError(w, http.StatusNotFound, "not_found", "unknown group %q", group)
				return
			}
			filtered := entries[:0]
			for _, e := range entries {
				if e.Group == group {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}
		writeJSON(w, entries)
	}
}

func handleGetPref(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := pathKey(w, r)
		if !ok {
			return
		}
		e, err := deps.Registry.Describe(key)
		if err != nil {
			prefsError(w, err)
			return
		}
		writeJSON(w, e)
	}
}

func handleSetPref(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := pathKey(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req SetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		text, err := req.text()
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		if err := deps.Registry.SetText(apiContext(r), key, text); err != nil {
			prefsError(w, err)
			return
		}
		e, err := deps.Registry.Describe(key)
		if err != nil {
			prefsError(w, err)
			return
		}
		writeJSON(w, e)
	}
}

func handleResetPref(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := pathKey(w, r)
		if !ok {
			return
		}
		if err := deps.Registry.Reset(apiContext(r), key); err != nil {
			prefsError(w, err)
			return
		}
		e, err := deps.Registry.Describe(key)
		if err != nil {
			prefsError(w, err)
			return
		}
		writeJSON(w, e)
	}
}

func handleResetAll(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Registry.ResetAll(apiContext(r)); err != nil {
			prefsError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "reset"})
	}
}

func handleExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "json"
		}
		env, err := deps.Registry.Export(deps.Profiles, deps.Now())
		if err != nil {
			prefsError(w, err)
			return
		}

		contentType := "application/json"
		if format == "yaml" {
			contentType = "application/yaml"
		}
		var buf strings.Builder
		if err := env.Encode(&buf, format); err != nil {
			prefsError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(buf.String()))
	}
}

func handleImport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		env, err := prefs.DecodeEnvelope(r.Body, r.URL.Query().Get("format"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid export file: %v", err)
			return
		}
		report, err := deps.Registry.Import(r.Context(), env, deps.Profiles)
		if err != nil {
			prefsError(w, err)
			return
		}
		writeJSON(w, report)
	}
}

func handleListGestures(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, GesturesResponse{
			SettingsReachable: deps.Registry.SettingsReachable(),
			Bindings:          deps.Registry.Bindings(),
		})
	}
}

func handleBindGesture(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req BindRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		text, err := SetRequest{Value: req.Action}.text()
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "action is required")
			return
		}
		action, err := prefs.ParseAction(text)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err := deps.Registry.Bind(apiContext(r), id, action); err != nil {
			prefsError(w, err)
			return
		}
		writeJSON(w, BindResponse{Status: "bound", Action: &action, SettingsReachable: deps.Registry.SettingsReachable()})
	}
}

func handleUnbindGesture(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Registry.Unbind(apiContext(r), chi.URLParam(r, "id")); err != nil {
			prefsError(w, err)
			return
		}
		writeJSON(w, BindResponse{Status: "unbound", SettingsReachable: deps.Registry.SettingsReachable()})
	}
}

func handleHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.History == nil {
			httpError(w, http.StatusNotFound, "not_found", "history is not recorded by this daemon")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		key := r.URL.Query().Get("key")
		if key != "" {
			if resolved, ok := prefs.ResolveKey(key); ok {
				key = resolved
			}
		}

		changes, err := deps.History.ListChanges(key, limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list history: %v", err)
			return
		}
		if changes == nil {
			changes = []storage.Change{}
		}
		writeJSON(w, changes)
	}
}
