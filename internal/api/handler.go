package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jrpie/launcher/internal/prefs"
	"github.com/jrpie/launcher/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// History abstracts the change log for the API layer.
type History interface {
	ListChanges(key string, limit, offset int) ([]storage.Change, error)
}

type AppDeps struct {
	Registry *prefs.Registry
	History  History // optional; if nil, /history answers 404
	Profiles prefs.Profiles
	Token    string
	Now      func() time.Time // defaults to time.Now
}

// NewAppHandler returns the preferences REST API. Everything except
// /health requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Profiles == nil {
		deps.Profiles = prefs.DefaultProfiles()
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/prefs", handleListPrefs(deps))
		r.Delete("/prefs", handleResetAll(deps))
		r.Get("/prefs/{key}", handleGetPref(deps))
		r.Put("/prefs/{key}", handleSetPref(deps))
		r.Delete("/prefs/{key}", handleResetPref(deps))

		r.Get("/export", handleExport(deps))
		r.Post("/import", handleImport(deps))

		r.Get("/gestures", handleListGestures(deps))
		r.Put("/gestures/{id}", handleBindGesture(deps))
		r.Delete("/gestures/{id}", handleUnbindGesture(deps))

		r.Get("/history", handleHistory(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func apiContext(r *http.Request) context.Context {
	return prefs.WithSource(r.Context(), "api")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// prefsError maps registry errors to HTTP responses.
func prefsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, prefs.ErrUnknownKey), errors.Is(err, prefs.ErrUnknownGesture):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, prefs.ErrTypeMismatch),
		errors.Is(err, prefs.ErrInvalidValue),
		errors.Is(err, prefs.ErrNotStorable),
		errors.Is(err, prefs.ErrUnsupportedFormat):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
