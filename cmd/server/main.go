package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	avatarchat "github.com/MegaGrindStone/avatar-chat-ui"
	"github.com/MegaGrindStone/avatar-chat-ui/internal/handlers"
	"github.com/MegaGrindStone/avatar-chat-ui/internal/session"
	"github.com/joho/godotenv"
)

const errLoggerKey = "error"

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	envCfg, err := parseEnv()
	if err != nil {
		log.Fatal(err)
	}

	cfgFilePath, required, err := configPath(envCfg)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := loadConfig(cfgFilePath, required, envCfg)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := cfg.logger(os.Stderr)
	if err != nil {
		log.Fatal(err)
	}

	backend, err := cfg.Backend.backend(logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error creating backend: %w", err))
	}

	opts := session.Options{
		Backend:        backend,
		RequestTimeout: cfg.RequestTimeout,
		MaxRecording:   cfg.Speech.MaxRecording,
		Transcriber:    cfg.transcriber(logger),
	}

	m, err := handlers.NewMain(opts, cfg.SessionTTL, cfg.page(), logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error creating handlers: %w", err))
	}

	staticFS, err := fs.Sub(avatarchat.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           m.Routes(staticFS, cfg.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	go m.Run(runCtx)

	srv.RegisterOnShutdown(func() {
		stopRun()
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String(errLoggerKey, err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting",
			slog.String("port", cfg.Port),
			slog.String("config", cfgFilePath))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String(errLoggerKey, err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String(errLoggerKey, err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String(errLoggerKey, err.Error()))
			}
		}
	}
}

// configPath resolves the config file location. An explicit AVATARCHAT_CONFIG must exist; the default
// location under the user config dir may be absent.
func configPath(e envConfig) (string, bool, error) {
	if e.ConfigPath != "" {
		return e.ConfigPath, true, nil
	}

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", false, fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, "avatarchat", "config.yaml"), false, nil
}
