package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jrpie/launcher/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"unknown preference","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes the root command against ts and returns stdout and the
// status lines written to stderr.
func runCLI(t *testing.T, ts *testServer, args ...string) (string, string, error) {
	t.Helper()

	oldClient, oldStderr, oldNoColor := newAPIClient, stderr, noColor
	var out, errOut bytes.Buffer
	if ts != nil {
		newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	}
	stderr = &errOut
	t.Cleanup(func() {
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		newAPIClient, stderr, noColor = oldClient, oldStderr, oldNoColor
	})

	resetFlags(rootCmd)
	noColor = true
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

const fontEntry = `{"key":"settings_theme_font_key","group":"theme","name":"font","kind":"enum","type":"string","value":"SERIF","default":"HACK","stored":true,"options":["HACK","SERIF","MONOSPACE"]}`

func TestListCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /prefs": `[` + fontEntry + `,
			{"key":"settings_clock_show_seconds_key","group":"clock","name":"show_seconds","kind":"bool","type":"boolean","value":true,"default":true,"stored":false}]`,
	})

	out, _, err := runCLI(t, ts, "list", "--group", "theme")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if ts.requests[0].Path != "/prefs?group=theme" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q", ts.requests[0].Auth)
	}
	if !strings.Contains(out, "theme.font = SERIF  (default HACK)") {
		t.Errorf("output missing font line:\n%s", out)
	}
	if !strings.Contains(out, "clock.show_seconds = true  (default)") {
		t.Errorf("output missing show_seconds line:\n%s", out)
	}
}

func TestListCommand_StoredOnly(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /prefs": `[` + fontEntry + `,
			{"key":"settings_clock_show_seconds_key","group":"clock","name":"show_seconds","kind":"bool","type":"boolean","value":true,"default":true,"stored":false}]`,
	})

	out, _, err := runCLI(t, ts, "list", "--stored")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, "show_seconds") {
		t.Errorf("--stored listed a default preference:\n%s", out)
	}
}

func TestGetCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /prefs/theme.font": fontEntry,
	})

	out, status, err := runCLI(t, ts, "get", "theme.font")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "theme.font = SERIF") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(status, "HACK, SERIF, MONOSPACE") {
		t.Errorf("options not shown: %q", status)
	}
}

func TestGetCommand_Unknown(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	_, _, err := runCLI(t, ts, "get", "theme.wat")
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "unknown preference") {
		t.Errorf("error = %q", err)
	}
}

func TestSetCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /prefs/theme.font": fontEntry,
	})

	_, status, err := runCLI(t, ts, "set", "theme.font", "serif")
	if err != nil {
		t.Fatalf("set: %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["value"] != "serif" {
		t.Errorf("body.value = %v, want the raw text", body["value"])
	}
	if !strings.Contains(status, "Set settings_theme_font_key = SERIF") {
		t.Errorf("status = %q", status)
	}
}

func TestSetCommand_MissingArgs(t *testing.T) {
	_, _, err := runCLI(t, nil, "set", "theme.font")
	if err == nil {
		t.Fatal("expected error for missing value")
	}
	if !strings.Contains(err.Error(), "accepts 2 arg(s)") {
		t.Errorf("error = %q", err)
	}
}

func TestResetCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /prefs/theme.font": `{"key":"settings_theme_font_key","value":"HACK","default":"HACK"}`,
		"DELETE /prefs":            `{"status":"reset"}`,
	})

	if _, _, err := runCLI(t, ts, "reset", "theme.font"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	// --all without --confirm is a dry warning.
	_, status, err := runCLI(t, ts, "reset", "--all")
	if err != nil {
		t.Fatalf("reset --all: %v", err)
	}
	if !strings.Contains(status, "--confirm") {
		t.Errorf("status = %q", status)
	}
	if len(ts.requests) != 1 {
		t.Fatalf("reset --all without --confirm sent a request")
	}

	if _, _, err := runCLI(t, ts, "reset", "--all", "--confirm"); err != nil {
		t.Fatalf("reset --all --confirm: %v", err)
	}
	if got := ts.requests[len(ts.requests)-1]; got.Method != "DELETE" || got.Path != "/prefs" {
		t.Errorf("last request = %s %s", got.Method, got.Path)
	}

	if _, _, err := runCLI(t, ts, "reset"); err == nil {
		t.Error("reset with neither key nor --all should fail")
	}
}

func TestExportCommand(t *testing.T) {
	envelope := `{"formatVersion":1,"preferences":{}}`
	ts := newTestServer(t, map[string]string{
		"GET /export": envelope,
	})

	out, _, err := runCLI(t, ts, "export", "--format", "yaml")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if ts.requests[0].Path != "/export?format=yaml" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	if out != envelope {
		t.Errorf("output = %q", out)
	}

	path := filepath.Join(t.TempDir(), "prefs.json")
	if _, _, err := runCLI(t, ts, "export", "--output", path); err != nil {
		t.Fatalf("export --output: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if string(data) != envelope {
		t.Errorf("file = %q", data)
	}
}

func TestImportCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /import": `{"imported":3,"skipped":["settings_apps_pinned_shortcuts_key"]}`,
	})

	in := filepath.Join(t.TempDir(), "prefs.yaml")
	content := "formatVersion: 1\npreferences: {}\n"
	if err := os.WriteFile(in, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	_, status, err := runCLI(t, ts, "import", in, "--format", "yaml")
	if err != nil {
		t.Fatalf("import without --confirm: %v", err)
	}
	if len(ts.requests) != 0 {
		t.Fatalf("import without --confirm sent %d requests", len(ts.requests))
	}
	if !strings.Contains(status, "--confirm") {
		t.Errorf("status = %q, want a hint about --confirm", status)
	}

	_, status, err = runCLI(t, ts, "import", in, "--format", "yaml", "--confirm")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	r := ts.requests[0]
	if r.Path != "/import?format=yaml" {
		t.Errorf("path = %q", r.Path)
	}
	if r.Body != content {
		t.Errorf("body = %q, want file content", r.Body)
	}
	if !strings.Contains(status, "Imported 3 preferences") || !strings.Contains(status, "settings_apps_pinned_shortcuts_key") {
		t.Errorf("status = %q", status)
	}
}

func TestGesturesCommands(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /gestures": `{"settings_reachable":true,"bindings":[
			{"gesture":{"id":"action.up","description":"Swipe up"},"enabled":true,"action":{"type":"launcher","name":"settings"}},
			{"gesture":{"id":"action.up_left","description":"Swipe up at the left edge"},"enabled":false}
		]}`,
		"PUT /gestures/action.down":    `{"status":"bound","action":{"type":"launcher","name":"lock_screen"},"settings_reachable":true}`,
		"DELETE /gestures/action.down": `{"status":"unbound","settings_reachable":false}`,
	})

	out, status, err := runCLI(t, ts, "gestures")
	if err != nil {
		t.Fatalf("gestures: %v", err)
	}
	if strings.Contains(status, "settings") {
		t.Errorf("unexpected warning with settings reachable: %q", status)
	}
	if !strings.Contains(out, "action.up  launcher:settings") {
		t.Errorf("output missing bound gesture:\n%s", out)
	}
	if !strings.Contains(out, "action.up_left (disabled)  unbound") {
		t.Errorf("output missing disabled gesture:\n%s", out)
	}

	_, status, err = runCLI(t, ts, "gestures", "bind", "action.down", "launcher:lock_screen")
	if err != nil {
		t.Fatalf("gestures bind: %v", err)
	}
	if !strings.Contains(status, "Bound action.down to launcher:lock_screen") {
		t.Errorf("bind status = %q", status)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(ts.requests[1].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["action"] != "launcher:lock_screen" {
		t.Errorf("body.action = %q", body["action"])
	}

	_, status, err = runCLI(t, ts, "gestures", "unbind", "action.down")
	if err != nil {
		t.Fatalf("gestures unbind: %v", err)
	}
	if got := ts.requests[2]; got.Method != "DELETE" {
		t.Errorf("unbind method = %s", got.Method)
	}
	if !strings.Contains(status, "No enabled gesture opens the launcher settings") {
		t.Errorf("unbind status = %q, want unreachable settings warning", status)
	}
}

func TestGesturesListWarnsWhenSettingsUnreachable(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /gestures": `{"settings_reachable":false,"bindings":[
			{"gesture":{"id":"action.up_left","description":"Swipe up at the left edge"},"enabled":false,"action":{"type":"launcher","name":"settings"}}
		]}`,
	})

	_, status, err := runCLI(t, ts, "gestures")
	if err != nil {
		t.Fatalf("gestures: %v", err)
	}
	if !strings.Contains(status, "No enabled gesture opens the launcher settings") {
		t.Errorf("status = %q, want unreachable settings warning", status)
	}
}

func TestListStoredFlagUsage(t *testing.T) {
	f := listCmd.Flags().Lookup("stored")
	if f == nil {
		t.Fatal("list has no --stored flag")
	}
	if f.Usage != "only list preferences that have a stored value" {
		t.Errorf("--stored usage = %q", f.Usage)
	}
}

func TestHistoryCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /history": `[{"id":"0f6c1d2e-aaaa-bbbb-cccc-000000000000","key":"settings_theme_font_key","new":{"type":"string","value":"SERIF"},"source":"api","changed_at":"2024-05-01T08:30:00Z"},
			{"id":"short","key":"settings_theme_font_key","source":"","changed_at":"2024-05-01T08:00:00Z"}]`,
	})

	out, _, err := runCLI(t, ts, "history", "--key", "theme.font", "--limit", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if ts.requests[0].Path != "/history?key=theme.font&limit=5" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	if !strings.Contains(out, "0f6c1d2e  2024-05-01 08:30:00  api") {
		t.Errorf("output missing first change:\n%s", out)
	}
	if !strings.Contains(out, "settings_theme_font_key = SERIF") {
		t.Errorf("output missing new value:\n%s", out)
	}
	if !strings.Contains(out, "settings_theme_font_key = <reset>") {
		t.Errorf("output missing reset change:\n%s", out)
	}
}

func TestServerNotReachable(t *testing.T) {
	ts := newTestServer(t, nil)
	client := ts.client()
	ts.server.Close()

	_, err := client.get(ctx, "/prefs")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_PlainErrorBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       http.NoBody,
	}
	var v any
	err := decodeJSON(resp, &v)
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("err = %v", err)
	}
}

func TestServerURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"127.0.0.1", "http://127.0.0.1:4000"},
		{"0.0.0.0", "http://127.0.0.1:4000"},
		{"", "http://127.0.0.1:4000"},
		{"::1", "http://[::1]:4000"},
	}
	for _, tt := range tests {
		var cfg config.Config
		cfg.Server.Host = tt.host
		cfg.Server.Port = 4000
		if got := serverURL(cfg); got != tt.want {
			t.Errorf("serverURL(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestConfigSetCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("LAUNCHERPREFS_CONFIG", path)

	if _, _, err := runCLI(t, nil, "config", "set", "server.port", "4100"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	if !strings.Contains(string(data), "4100") {
		t.Errorf("config file = %q", data)
	}

	_, _, err = runCLI(t, nil, "config", "set", "server.colour", "blue")
	if err == nil || !strings.Contains(err.Error(), "valid keys") {
		t.Errorf("err = %v", err)
	}
}

func TestLogLevel(t *testing.T) {
	for name, want := range map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "info": "INFO", "": "INFO"} {
		if got := logLevel(name).String(); got != want {
			t.Errorf("logLevel(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}
