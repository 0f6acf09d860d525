// ABOUTME: Entry point for the fold-chat server
// ABOUTME: Replays the transaction log, starts the run loop and serves the HTTP boundary

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/fold-chat/internal/auth"
	"github.com/2389/fold-chat/internal/config"
	"github.com/2389/fold-chat/internal/controller"
	"github.com/2389/fold-chat/internal/engine"
	"github.com/2389/fold-chat/internal/ident"
	"github.com/2389/fold-chat/internal/server"
	"github.com/2389/fold-chat/internal/store"
	"github.com/2389/fold-chat/internal/txlog"
	"github.com/2389/fold-chat/internal/view"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the server config file.
// Priority: FOLD_CHAT_CONFIG env var > XDG_CONFIG_HOME/fold-chat/server.yaml > ~/.config/fold-chat/server.yaml
func getConfigPath() string {
	if envPath := os.Getenv("FOLD_CHAT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "server.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "fold-chat", "server.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: fold-chat <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the chat server")
		fmt.Println("  check     Replay the transaction log and report")
		fmt.Println("  health    Check server health")
		fmt.Println("  wipe      Truncate the local transaction log and credential file")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "check":
		err = runCheck()
	case "health":
		err = runHealth(ctx)
	case "wipe":
		err = runWipe()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("  ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("  ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("  ▶ ")
	fmt.Printf("Storage: %s\n", cfg.Storage.Dir)
	fmt.Println()

	if err := os.MkdirAll(cfg.Storage.Dir, 0o700); err != nil {
		return fmt.Errorf("creating storage dir: %w", err)
	}

	instance, err := loadInstanceID(cfg.Storage.Dir)
	if err != nil {
		return err
	}

	st := store.New()
	creds := auth.NewCredentials(logger)

	writer, err := txlog.NewWriter(cfg.LogPath(), cfg.Storage.FlushBatch, logger)
	if err != nil {
		return err
	}
	defer writer.Close()

	credFile, err := txlog.OpenCredentialFile(cfg.CredentialPath())
	if err != nil {
		return err
	}
	defer credFile.Close()

	var tokens *auth.TokenIssuer
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	}

	gen := ident.New(instance, time.Now().UnixMilli())
	ctrl := controller.New(st, gen, writer, creds, credFile, tokens, logger)

	// Replay failures are fatal: the store cannot be trusted
	// half-built.
	if err := ctrl.Restore(cfg.LogPath(), cfg.CredentialPath()); err != nil {
		return fmt.Errorf("restoring store: %w", err)
	}

	eng := engine.New(256, logger)
	v := view.New(st, view.ServerInfo{Version: version, Started: time.Now()}, logger)
	srv := server.New(eng, ctrl, v, tokens, logger)

	httpSrv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("fold-chat started",
		"version", version,
		"http_addr", cfg.Server.HTTPAddr,
		"instance", instance)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	// Flush the log tail as the last unit of run-loop work, then stop
	// the loop.
	if err := eng.Do(context.Background(), func() {
		if err := ctrl.Flush(); err != nil {
			logger.Error("final flush failed", "error", err)
		}
	}); err != nil {
		logger.Error("final flush not scheduled", "error", err)
	}
	eng.Close()

	return nil
}

// loadInstanceID reads or creates the stable per-server instance id
// that seeds the id allocator.
func loadInstanceID(dir string) (uuid.UUID, error) {
	path := filepath.Join(dir, "instance-id")
	data, err := os.ReadFile(path)
	if err == nil {
		id, parseErr := uuid.Parse(string(data))
		if parseErr == nil {
			return id, nil
		}
		return uuid.Nil, fmt.Errorf("parsing %s: %w", path, parseErr)
	}
	if !os.IsNotExist(err) {
		return uuid.Nil, fmt.Errorf("reading instance id: %w", err)
	}

	id := uuid.New()
	if err := os.WriteFile(path, []byte(id.String()), 0o600); err != nil {
		return uuid.Nil, fmt.Errorf("writing instance id: %w", err)
	}
	return id, nil
}

func runCheck() error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st := store.New()
	creds := auth.NewCredentials(nil)
	ctrl := controller.New(st, ident.New(uuid.New(), time.Now().UnixMilli()), nil, creds, nil, nil, nil)

	if err := ctrl.Restore(cfg.LogPath(), cfg.CredentialPath()); err != nil {
		color.Red("replay failed: %v", err)
		return err
	}

	color.Green("replay ok")
	fmt.Printf("  users:         %d\n", st.UserCount())
	fmt.Printf("  conversations: %d\n", len(st.Conversations()))
	fmt.Printf("  messages:      %d\n", st.MessageCount())
	fmt.Printf("  admins:        %d\n", len(st.Admins()))
	return nil
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/v1/healthz", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runWipe() error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	for _, path := range []string{cfg.LogPath(), cfg.CredentialPath()} {
		if err := os.Truncate(path, 0); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("truncating %s: %w", path, err)
		}
	}

	color.Yellow("wiped %s", cfg.Storage.Dir)
	return nil
}
