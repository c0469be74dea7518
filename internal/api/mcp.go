package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jrpie/launcher/internal/prefs"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Registry *prefs.Registry
	Version  string
}

// NewMCPServer creates an MCP server exposing the preference registry.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"launcherprefs",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Launcher preferences. Keys are storage keys (settings_theme_font_key) or group.name (theme.font)."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_preferences",
			mcp.WithDescription("List launcher preferences with their current values and defaults."),
			mcp.WithString("group", mcp.Description("Only list this group (e.g. theme, clock, gestures)")),
		),
		mcpListPreferences(deps),
	)

	s.AddTool(
		mcp.NewTool("get_preference",
			mcp.WithDescription("Get one launcher preference."),
			mcp.WithString("key", mcp.Description("Storage key or group.name"), mcp.Required()),
		),
		mcpGetPreference(deps),
	)

	s.AddTool(
		mcp.NewTool("set_preference",
			mcp.WithDescription("Set a launcher preference. Booleans take true/false, enums a member name, collections a JSON list."),
			mcp.WithString("key", mcp.Description("Storage key or group.name"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
		),
		mcpSetPreference(deps),
	)

	s.AddTool(
		mcp.NewTool("reset_preference",
			mcp.WithDescription("Reset a launcher preference to its default."),
			mcp.WithString("key", mcp.Description("Storage key or group.name"), mcp.Required()),
		),
		mcpResetPreference(deps),
	)

	s.AddTool(
		mcp.NewTool("bind_gesture",
			mcp.WithDescription("Bind a gesture to an action, e.g. launcher:settings or app:org.mail/org.mail.Main@0. An empty action unbinds it."),
			mcp.WithString("gesture", mcp.Description("Gesture id (e.g. action.up)"), mcp.Required()),
			mcp.WithString("action", mcp.Description("Action in short or JSON form")),
		),
		mcpBindGesture(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"prefs://all",
			"All Preferences",
			mcp.WithResourceDescription("Every launcher preference with value, default and stored flag"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceAll(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"prefs://gestures",
			"Gesture Bindings",
			mcp.WithResourceDescription("Every gesture with its enabled state and bound action"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceGestures(deps),
	)

	return s
}

func mcpContext(ctx context.Context) context.Context {
	return prefs.WithSource(ctx, "mcp")
}

func mcpKey(req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	ref, err := req.RequireString("key")
	if err != nil {
		return "", mcpError("key is required")
	}
	key, ok := prefs.ResolveKey(ref)
	if !ok {
		return "", mcpError(fmt.Sprintf("unknown preference %q", ref))
	}
	return key, nil
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpListPreferences(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		group := req.GetString("group", "")
		if group != "" {
			if _, ok := prefs.LookupGroup(group); !ok {
				return mcpError(fmt.Sprintf("unknown group %q", group)), nil
			}
		}

		entries := deps.Registry.Snapshot()
		out := make([]prefs.Entry, 0, len(entries))
		for _, e := range entries {
			if group == "" || e.Group == group {
				out = append(out, e)
			}
		}
		return mcpJSON(out), nil
	}
}

func mcpGetPreference(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, errResult := mcpKey(req)
		if errResult != nil {
			return errResult, nil
		}
		e, err := deps.Registry.Describe(key)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpJSON(e), nil
	}
}

func mcpSetPreference(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, errResult := mcpKey(req)
		if errResult != nil {
			return errResult, nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}

		if err := deps.Registry.SetText(mcpContext(ctx), key, value); err != nil {
			return mcpError(fmt.Sprintf("failed to set preference: %v", err)), nil
		}

		e, err := deps.Registry.Describe(key)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("Set %s = %v", key, e.Value) + reachWarning(deps.Registry, e.Group)), nil
	}
}

func mcpResetPreference(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, errResult := mcpKey(req)
		if errResult != nil {
			return errResult, nil
		}
		if err := deps.Registry.Reset(mcpContext(ctx), key); err != nil {
			return mcpError(fmt.Sprintf("failed to reset preference: %v", err)), nil
		}
		e, err := deps.Registry.Describe(key)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("Reset %s to %v", key, e.Value) + reachWarning(deps.Registry, e.Group)), nil
	}
}

func mcpBindGesture(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("gesture")
		if err != nil {
			return mcpError("gesture is required"), nil
		}

		text := req.GetString("action", "")
		if text == "" {
			if err := deps.Registry.Unbind(mcpContext(ctx), id); err != nil {
				return mcpError(fmt.Sprintf("failed to unbind: %v", err)), nil
			}
			return mcpText(fmt.Sprintf("Unbound %s", id) + reachWarning(deps.Registry, prefs.GroupActions.Name)), nil
		}

		action, err := prefs.ParseAction(text)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if err := deps.Registry.Bind(mcpContext(ctx), id, action); err != nil {
			return mcpError(fmt.Sprintf("failed to bind: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Bound %s to %s", id, action) + reachWarning(deps.Registry, prefs.GroupActions.Name)), nil
	}
}

// unreachableWarning is appended to tool results that leave no enabled
// gesture able to open the launcher settings.
const unreachableWarning = "\nWarning: no enabled gesture opens the launcher settings"

func reachWarning(reg *prefs.Registry, group string) string {
	if group != prefs.GroupActions.Name && group != prefs.GroupEnabledGestures.Name {
		return ""
	}
	if reg.SettingsReachable() {
		return ""
	}
	return unreachableWarning
}

func mcpResourceAll(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(req.Params.URI, deps.Registry.Snapshot())
	}
}

func mcpResourceGestures(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonResource(req.Params.URI, GesturesResponse{
			SettingsReachable: deps.Registry.SettingsReachable(),
			Bindings:          deps.Registry.Bindings(),
		})
	}
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
