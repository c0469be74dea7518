package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jrpie/launcher/internal/api"
	"github.com/jrpie/launcher/internal/config"
	"github.com/jrpie/launcher/internal/prefs"
)

const pruneInterval = time.Hour

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the preferences daemon (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		noMCP, _ := cmd.Flags().GetBool("no-mcp")
		return runServer(cmd.Context(), !noMCP)
	},
}

func init() {
	startCmd.Flags().Bool("no-mcp", false, "do not serve MCP on stdin/stdout")
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd)
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "launcherprefs.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func runServer(parent context.Context, withMCP bool) error {
	fmt.Fprintf(os.Stderr, "launcherprefs version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))

	// Refuse to start twice.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(serverURL(cfg) + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("launcherprefs is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("launcherprefs is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()
	slog.Info("preference store opened", "driver", cfg.Storage.Driver)

	resolver, err := buildResolver(cfg.Device.Apps)
	if err != nil {
		return err
	}
	reg := prefs.NewRegistry(b.store, resolver)
	reg.OnChange(recordHistory(b.history))

	if err := reg.Migrate(prefs.WithSource(ctx, "migrate")); err != nil {
		return fmt.Errorf("migrating preferences: %w", err)
	}

	apiToken, err := config.APIToken(cfg)
	if err != nil {
		return fmt.Errorf("getting API token: %w", err)
	}
	slog.Info("API bearer token available")

	handler := api.NewAppHandler(api.AppDeps{
		Registry: reg,
		History:  b.history,
		Profiles: buildProfiles(cfg.Device.Profiles),
		Token:    apiToken,
	})

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "launcherprefs listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if withMCP {
		stdioSrv := server.NewStdioServer(api.NewMCPServer(api.MCPDeps{Registry: reg, Version: version}))
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	if b.watch != nil {
		g.Go(func() error {
			err := b.watch(gctx, func() {
				slog.Debug("preferences file changed on disk")
				reg.Invalidate()
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("watching preferences file", "error", err)
			}
			return nil
		})
	}

	if cfg.History.Retention > 0 {
		g.Go(func() error {
			pruneHistory(gctx, b.history, cfg.History.Retention, pruneInterval)
			return nil
		})
	}

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("launcherprefs is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop launcherprefs (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to launcherprefs (PID %d)", pid)
	return nil
}

func showStatus(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(serverURL(cfg) + "/health")
	running := false
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case resp.StatusCode == http.StatusOK:
		resp.Body.Close()
		running = true
		printStatus("Server", "running on %s", serverURL(cfg))
	default:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	}

	printStatus("Driver", "%s", cfg.Storage.Driver)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)

	if !running {
		return nil
	}
	c, err := newAPIClient()
	if err != nil {
		return nil
	}
	prefsResp, err := c.get(cmd.Context(), "/prefs")
	if err != nil {
		return nil
	}
	var entries []prefs.Entry
	if decodeJSON(prefsResp, &entries) == nil {
		stored := 0
		for _, e := range entries {
			if e.Stored {
				stored++
			}
		}
		printStatus("Preferences", "%d of %d stored", stored, len(entries))
	}

	gesturesResp, err := c.get(cmd.Context(), "/gestures")
	if err != nil {
		return nil
	}
	var gestures api.GesturesResponse
	if decodeJSON(gesturesResp, &gestures) == nil {
		if gestures.SettingsReachable {
			printStatus("Settings", "reachable by gesture")
		} else {
			printStatus("Settings", "%s", colorize(colorYellow, "no enabled gesture opens them"))
		}
	}
	return nil
}
