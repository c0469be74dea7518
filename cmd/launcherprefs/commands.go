package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jrpie/launcher/internal/api"
	"github.com/jrpie/launcher/internal/config"
	"github.com/jrpie/launcher/internal/prefs"
	"github.com/jrpie/launcher/internal/storage"
)

func prefPath(key string) string {
	return "/prefs/" + url.PathEscape(key)
}

func printEntry(w io.Writer, e prefs.Entry) {
	name := e.Group + "." + e.Name
	line := fmt.Sprintf("%s = %s", colorize(colorBold, name), formatValue(e.Value))
	if e.Stored {
		if formatValue(e.Default) != formatValue(e.Value) {
			line += colorize(colorDim, fmt.Sprintf("  (default %s)", formatValue(e.Default)))
		}
	} else {
		line += colorize(colorDim, "  (default)")
	}
	fmt.Fprintln(w, line)
}

// --- list / get / set / reset ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List preferences with their current values",
	RunE: func(cmd *cobra.Command, args []string) error {
		group, _ := cmd.Flags().GetString("group")
		storedOnly, _ := cmd.Flags().GetBool("stored")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/prefs"
		if group != "" {
			path += "?group=" + url.QueryEscape(group)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var entries []prefs.Entry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, e := range entries {
			if storedOnly && !e.Stored {
				continue
			}
			printEntry(out, e)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("group", "", "only list this group (theme, clock, apps, ...)")
	listCmd.Flags().Bool("stored", false, "only list preferences that have a stored value")
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one preference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), prefPath(args[0]))
		if err != nil {
			return err
		}
		var e prefs.Entry
		if err := decodeJSON(resp, &e); err != nil {
			return err
		}

		printEntry(cmd.OutOrStdout(), e)
		if len(e.Options) > 0 {
			printStatus("Options", "%s", strings.Join(e.Options, ", "))
		}
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a preference",
	Long: `Set a preference. The value is read the way the preference's type reads
user input:

  launcherprefs set theme.font serif
  launcherprefs set clock.color 0xff00ff00
  launcherprefs set apps.favorites '[{"type":"app","package":"org.mail","user":0}]'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), prefPath(key), map[string]string{"value": value})
		if err != nil {
			return err
		}
		var e prefs.Entry
		if err := decodeJSON(resp, &e); err != nil {
			return err
		}

		printSuccess("Set %s = %s", e.Key, formatValue(e.Value))
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset a preference, or all of them with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		confirm, _ := cmd.Flags().GetBool("confirm")

		switch {
		case all && len(args) > 0:
			return fmt.Errorf("give either a key or --all, not both")
		case !all && len(args) == 0:
			return fmt.Errorf("a key or --all is required")
		case all && !confirm:
			printWarning("This will reset EVERY preference to its default. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if all {
			resp, err := client.delete(cmd.Context(), "/prefs")
			if err != nil {
				return err
			}
			var result map[string]string
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			printSuccess("All preferences reset")
			return nil
		}

		resp, err := client.delete(cmd.Context(), prefPath(args[0]))
		if err != nil {
			return err
		}
		var e prefs.Entry
		if err := decodeJSON(resp, &e); err != nil {
			return err
		}
		printSuccess("Reset %s to %s", e.Key, formatValue(e.Value))
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("all", false, "reset every preference")
	resetCmd.Flags().Bool("confirm", false, "confirm --all")
}

// --- export / import ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export preferences as JSON or YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/export?format="+url.QueryEscape(format))
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := copyBody(resp, w); err != nil {
			return err
		}

		if output != "" {
			printSuccess("Preferences exported to %s", output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "json", "json or yaml")
	exportCmd.Flags().String("output", "", "output file path (default: stdout)")
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all preferences with an export file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		confirm, _ := cmd.Flags().GetBool("confirm")

		if !confirm {
			printWarning("This will replace EVERY preference with the contents of %s. Use --confirm to proceed.", args[0])
			return nil
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening export file: %w", err)
		}
		defer f.Close()

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/import"
		if format != "" {
			path += "?format=" + url.QueryEscape(format)
		}
		resp, err := client.send(cmd.Context(), http.MethodPost, path, "application/octet-stream", f)
		if err != nil {
			return err
		}
		var report prefs.ImportReport
		if err := decodeJSON(resp, &report); err != nil {
			return err
		}

		printSuccess("Imported %d preferences", report.Imported)
		if len(report.Skipped) > 0 {
			printStatus("Skipped (device specific)", "%s", strings.Join(report.Skipped, ", "))
		}
		if len(report.Failed) > 0 {
			printWarning("Could not import: %s", strings.Join(report.Failed, ", "))
		}
		return nil
	},
}

func init() {
	importCmd.Flags().String("format", "", "json or yaml (default: detect)")
	importCmd.Flags().Bool("confirm", false, "confirm replacing all preferences")
}

// --- gestures ---

var gesturesCmd = &cobra.Command{
	Use:   "gestures",
	Short: "List gesture bindings",
	RunE: func(cmd *cobra.Command, args []string) error {
		boundOnly, _ := cmd.Flags().GetBool("bound")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/gestures")
		if err != nil {
			return err
		}
		var list api.GesturesResponse
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, b := range list.Bindings {
			if boundOnly && b.Action == nil {
				continue
			}
			action := colorize(colorDim, "unbound")
			if b.Action != nil {
				action = b.Action.String()
			}
			id := colorize(colorBold, b.Gesture.ID)
			if !b.Enabled {
				id += colorize(colorYellow, " (disabled)")
			}
			fmt.Fprintf(out, "%s  %s\n", id, action)
		}
		warnUnreachable(list.SettingsReachable)
		return nil
	},
}

var gesturesBindCmd = &cobra.Command{
	Use:   "bind <gesture> <action>",
	Short: "Bind a gesture to an action",
	Long: `Bind a gesture to an action. Actions are written as
launcher:<name>, app:<package[/activity][@user]>,
shortcut:<package#id[@user]>, panel:<id> or as JSON.

  launcherprefs gestures bind action.up launcher:settings
  launcherprefs gestures bind action.double_down app:org.mail/org.mail.Main`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/gestures/"+url.PathEscape(args[0]), map[string]string{"action": args[1]})
		if err != nil {
			return err
		}
		var result api.BindResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if result.Action != nil {
			printSuccess("Bound %s to %s", args[0], result.Action)
		} else {
			printSuccess("Bound %s", args[0])
		}
		warnUnreachable(result.SettingsReachable)
		return nil
	},
}

var gesturesUnbindCmd = &cobra.Command{
	Use:   "unbind <gesture>",
	Short: "Remove a gesture binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/gestures/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result api.BindResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Unbound %s", args[0])
		warnUnreachable(result.SettingsReachable)
		return nil
	},
}

// warnUnreachable tells the user the launcher will fall back to showing
// its settings button.
func warnUnreachable(reachable bool) {
	if !reachable {
		printWarning("No enabled gesture opens the launcher settings; the launcher will show its settings button.")
	}
}

func init() {
	gesturesCmd.Flags().Bool("bound", false, "only list bound gestures")
	gesturesCmd.AddCommand(gesturesBindCmd)
	gesturesCmd.AddCommand(gesturesUnbindCmd)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent preference changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		q.Set("limit", fmt.Sprint(limit))
		if key != "" {
			q.Set("key", key)
		}
		resp, err := client.get(cmd.Context(), "/history?"+q.Encode())
		if err != nil {
			return err
		}
		var changes []storage.Change
		if err := decodeJSON(resp, &changes); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(changes) == 0 {
			fmt.Fprintln(out, "No changes recorded.")
			return nil
		}
		for _, c := range changes {
			newVal := "<reset>"
			if c.New != nil {
				newVal = formatValue(c.New.Payload())
			}
			id := c.ID
			if len(id) > 8 {
				id = id[:8]
			}
			source := c.Source
			if source == "" {
				source = "-"
			}
			fmt.Fprintf(out, "%s  %s  %-6s  %s = %s\n",
				colorize(colorCyan, id),
				c.ChangedAt.Format("2006-01-02 15:04:05"),
				source,
				c.Key,
				newVal,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().String("key", "", "only show changes to this preference")
	historyCmd.Flags().Int("limit", 20, "maximum number of changes to list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update daemon configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", config.Path())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
