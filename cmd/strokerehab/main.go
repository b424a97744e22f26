package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ayusman/strokerehab/internal/app"
	"github.com/ayusman/strokerehab/internal/config"
	"github.com/ayusman/strokerehab/internal/emitter"
	"github.com/ayusman/strokerehab/internal/model"
	"github.com/ayusman/strokerehab/internal/server"
	"github.com/ayusman/strokerehab/internal/store"
	"github.com/ayusman/strokerehab/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default $"+config.EnvPath+")")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	dbPath := flag.String("db", "", "SQLite database path, overrides store.path")
	modelsDir := flag.String("models", "", "models directory, overrides model.dir")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "strokerehab: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *modelsDir != "" {
		cfg.Model.Dir = *modelsDir
	}

	slog.SetDefault(newLogger(cfg.Log))

	if err := run(cfg); err != nil {
		slog.Error("strokerehab stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("initialize telemetry: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				slog.Warn("telemetry shutdown", "error", err)
			}
		}()
		slog.Info("exporting telemetry", "endpoint", cfg.Telemetry.Endpoint)
	}

	metrics, err := telemetry.New(nil)
	if err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}

	scorerCfg := app.Config{
		Alpha:   cfg.Extractor.Alpha,
		Store:   st,
		Metrics: metrics,
		Logger:  slog.Default(),
	}

	modelName := ""
	registry := model.NewRegistry(cfg.Model.Dir)
	if err := registry.Discover(); err != nil {
		slog.Warn("failed to scan models directory", "dir", cfg.Model.Dir, "error", err)
	}
	if runner, err := registry.Runner(cfg.Model.Active, cfg.Model.Timeout()); err != nil {
		slog.Warn("no scoring model, attempts will be unscored", "model", cfg.Model.Active, "dir", cfg.Model.Dir, "error", err)
	} else {
		scorerCfg.Predictor = runner
		modelName = runner.Model().ID()
		slog.Info("scoring model loaded", "model", modelName, "path", runner.Model().Path)
	}

	var mqtt *emitter.MQTTEmitter
	if cfg.MQTT.Enabled {
		mqtt = emitter.NewMQTTEmitter(cfg.MQTT)
		if err := mqtt.Connect(ctx); err != nil {
			slog.Warn("mqtt broker unreachable, retrying in background", "error", err)
		}
		defer mqtt.Disconnect()
		scorerCfg.Publisher = mqtt
	}

	scorer, err := app.NewScorer(scorerCfg)
	if err != nil {
		return err
	}

	srvCfg := server.Config{
		StaticDir: findWebDir(cfg.Server.StaticDir),
		Store:     st,
		Scorer:    scorer,
		ModelName: modelName,
	}
	if mqtt != nil {
		srvCfg.Emitter = mqtt
	}
	if srvCfg.StaticDir != "" {
		slog.Info("serving static files", "dir", srvCfg.StaticDir)
	}

	httpServer := server.New(srvCfg).HTTPServer(cfg.Server.Addr)

	errc := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Server.Addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// findWebDir returns the configured static directory, or searches "web",
// "../web" and ~/.strokerehab/web. It returns "" when none exists.
func findWebDir(configured string) string {
	if configured != "" {
		return configured
	}

	candidates := []string{"web", "../web"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".strokerehab", "web"))
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
