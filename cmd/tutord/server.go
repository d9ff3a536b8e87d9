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

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/tutord/internal/api"
	"github.com/kalambet/tutord/internal/auth"
	"github.com/kalambet/tutord/internal/config"
	"github.com/kalambet/tutord/internal/engine"
	"github.com/kalambet/tutord/internal/mentor"
	"github.com/kalambet/tutord/internal/notes"
	"github.com/kalambet/tutord/internal/ollama"
	"github.com/kalambet/tutord/internal/storage"
	"github.com/kalambet/tutord/internal/tutor"
)

const (
	shutdownTimeout      = 5 * time.Second
	sessionSweepInterval = time.Hour
)

type startOptions struct {
	host string
	mcp  bool
}

var startOpts startOptions

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tutord server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(startOpts)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running tutord server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tutord status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	startCmd.Flags().StringVar(&startOpts.host, "host", "127.0.0.1", "address to bind the HTTP API to")
	startCmd.Flags().BoolVar(&startOpts.mcp, "mcp", false, "also serve MCP over stdin/stdout")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "tutord.pid")
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

func parseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// interactionRecorder stores completed turns in SQLite.
type interactionRecorder struct {
	store *storage.Store
}

func (r interactionRecorder) RecordTurn(ctx context.Context, t tutor.Turn) error {
	return r.store.SaveInteraction(ctx, storage.Interaction{
		ID:          uuid.NewString(),
		UserID:      t.UserKey,
		CreatedAt:   t.At,
		Message:     t.Message,
		Reply:       t.Reply,
		Language:    string(t.Language),
		Temperature: t.Temperature,
		Tier:        string(t.Tier),
		Model:       t.Model,
	})
}

func serviceMeta(model string) api.Meta {
	return api.Meta{
		Service:         "tutord",
		Model:           model,
		Languages:       []string{string(mentor.LanguageC), string(mentor.LanguagePython)},
		DefaultLanguage: string(mentor.LanguageC),
		Version:         version,
	}
}

func detectEngine(cfg config.Config) (engine.Engine, error) {
	return engine.Detect(engine.DetectConfig{
		Kind:          cfg.Provider.Kind,
		BaseURL:       cfg.Provider.BaseURL,
		APIKey:        cfg.Provider.APIKey,
		Model:         cfg.Provider.Model,
		OllamaBaseURL: cfg.Ollama.BaseURL,
	})
}

// newTutor wires the policy engine to its provider, notes and optional recorder.
func newTutor(cfg config.Config, provider tutor.Completer, rec tutor.Recorder) (*tutor.Engine, *notes.Loader, error) {
	scope, err := tutor.ParseLanguageScope(cfg.Tutor.LanguageScope)
	if err != nil {
		return nil, nil, err
	}
	loader := notes.NewLoader(cfg.Notes.CPath, cfg.Notes.PythonPath)
	eng := tutor.New(provider, mentor.NewStore(cfg.Tutor.MaxProfiles), loader, tutor.Options{
		LanguageScope: scope,
		Recorder:      rec,
		MaxLanguages:  cfg.Tutor.MaxProfiles,
	})
	return eng, loader, nil
}

func runServer(opts startOptions) error {
	fmt.Fprintf(os.Stderr, "tutord version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("tutord is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("tutord is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := detectEngine(cfg)
	if err != nil {
		return fmt.Errorf("selecting completion backend: %w", err)
	}
	if err := engine.EnsureReady(ctx, eng, os.Stderr); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	tut, loader, err := newTutor(cfg, eng, interactionRecorder{store: store})
	if err != nil {
		return err
	}
	meta := serviceMeta(eng.Model())

	handler := api.NewHandler(api.Deps{
		Tutor:        tut,
		Accounts:     auth.New(store),
		Interactions: store,
		AdminKey:     cfg.Server.AdminKey,
		Meta:         meta,
	})
	if cfg.Server.AdminKey == "" {
		slog.Warn("no admin key configured; admin endpoints are locked")
	}

	addr := net.JoinHostPort(opts.host, strconv.Itoa(cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConns)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "tutord listening on %s\n", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Notes.Watch {
		w, err := notes.NewWatcher(loader.Paths(), 0, func() {
			if _, err := tut.ReloadCorpus(gctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("reloading style notes", "error", err)
			}
		})
		if err != nil {
			slog.Warn("notes watcher disabled", "error", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	g.Go(func() error {
		sweepSessions(gctx, store, sessionSweepInterval)
		return nil
	})

	if opts.mcp {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Tutor: tut, Meta: meta})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	return g.Wait()
}

// sessionStore is the slice of storage the session sweeper needs.
type sessionStore interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// sweepSessions deletes expired login sessions every interval until ctx ends.
func sweepSessions(ctx context.Context, store sessionStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpiredSessions(ctx, time.Now())
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("sweeping expired sessions", "error", err)
				}
				continue
			}
			if n > 0 {
				slog.Debug("expired sessions removed", "count", n)
			}
		}
	}
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
		printError("tutord is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop tutord (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to tutord (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Provider", "%s", cfg.Provider.Kind)
	printStatus("Model", "%s", cfg.Provider.Model)
	if cfg.Provider.Kind == config.ProviderOllama {
		v, err := ollama.New(cfg.Ollama.BaseURL).Version(context.Background())
		if err != nil {
			printStatus("Ollama", "not running")
		} else {
			printStatus("Ollama", "%s running at %s", v, cfg.Ollama.BaseURL)
		}
	}

	printStatus("C notes", "%s", fileState(cfg.Notes.CPath))
	printStatus("Python notes", "%s", fileState(cfg.Notes.PythonPath))
	printStatus("Language scope", "%s", cfg.Tutor.LanguageScope)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func fileState(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path + " (missing)"
	}
	return path
}
