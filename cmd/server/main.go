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

	"gopkg.in/yaml.v3"

	"github.com/calaix/esmena/pkg/api"
	"github.com/calaix/esmena/pkg/embed"
	"github.com/calaix/esmena/pkg/engine"
	"github.com/calaix/esmena/pkg/glossary"
	"github.com/calaix/esmena/pkg/lemma"
	"github.com/calaix/esmena/pkg/store"
)

type config struct {
	Addr         string `yaml:"addr"`
	DataDir      string `yaml:"data_dir"`
	KeyNormalize string `yaml:"key_normalize"` // lowercase_utf8 | lowercase_ascii

	Embedder struct {
		BaseURL   string `yaml:"base_url"`
		APIKeyEnv string `yaml:"api_key_env"`
		Model     string `yaml:"model"`
	} `yaml:"embedder"`

	Lemmatizer struct {
		Mode    string `yaml:"mode"` // dict | http
		Path    string `yaml:"path"` // lemma table for dict mode
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"lemmatizer"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "build":
		cmdBuild(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: esmena <command>\n\nCommands:\n  serve   Start the HTTP server\n  build   Build the vector index from a glossary CSV\n  mcp     Serve the MCP tools over stdio\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	fs.Parse(args)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg := loadConfig(*cfgPath, logger)
	eng, submissions := buildEngine(cfg, logger)
	if submissions != nil {
		defer submissions.Close()
	}

	router := api.NewRouter(eng, submissions, logger)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	// SIGHUP: rebuild from the last stored submission batch.
	// SIGINT/SIGTERM: graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			logger.Info("SIGHUP received, rebuilding from stored submissions")
			rebuildFromStore(ctx, eng, submissions, logger)
		}
	}()

	// Start server.
	go func() {
		logger.Info("esmena listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Shutdown(context.Background())
}

// buildEngine wires the embedder, lemmatizer, persisted artifact, and
// submission store from the configuration. Missing collaborators degrade the
// engine rather than aborting: endpoints that need them report not-ready.
func buildEngine(cfg config, logger *slog.Logger) (*engine.Engine, *store.DB) {
	var embedder embed.Embedder
	if cfg.Embedder.BaseURL != "" {
		c, err := embed.NewClient(embed.Config{
			BaseURL:   cfg.Embedder.BaseURL,
			APIKeyEnv: cfg.Embedder.APIKeyEnv,
			Model:     cfg.Embedder.Model,
		})
		if err != nil {
			logger.Warn("embedder unavailable", "error", err)
		} else {
			embedder = c
			logger.Info("embedder configured", "model", cfg.Embedder.Model, "base_url", cfg.Embedder.BaseURL)
		}
	} else {
		logger.Warn("no embedder configured, vectorize and search disabled")
	}

	var lemmatizer lemma.Lemmatizer
	switch cfg.Lemmatizer.Mode {
	case "http":
		c, err := lemma.NewClient(lemma.ClientConfig{
			BaseURL: cfg.Lemmatizer.BaseURL,
			Model:   cfg.Lemmatizer.Model,
		})
		if err != nil {
			logger.Warn("lemmatizer sidecar unavailable", "error", err)
		} else {
			lemmatizer = c
		}
	case "dict", "":
		if cfg.Lemmatizer.Path != "" {
			d, err := lemma.LoadDictLemmatizer(cfg.Lemmatizer.Path)
			if err != nil {
				logger.Warn("lemma table unavailable", "error", err, "path", cfg.Lemmatizer.Path)
			} else {
				lemmatizer = d
				logger.Info("lemma table loaded", "forms", d.Len(), "path", cfg.Lemmatizer.Path)
			}
		} else {
			logger.Warn("no lemma table configured, detection disabled")
		}
	default:
		logger.Warn("unknown lemmatizer mode", "mode", cfg.Lemmatizer.Mode)
	}

	eng := engine.New(engine.Config{
		Embedder:     embedder,
		Lemmatizer:   lemmatizer,
		ArtifactPath: filepath.Join(cfg.DataDir, "generation.gob"),
		KeyNormalize: glossary.GetKeyNormalizer(cfg.KeyNormalize),
		Logger:       logger,
	})

	if err := eng.LoadArtifact(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no persisted generation, waiting for first build")
		} else {
			logger.Warn("persisted generation unusable", "error", err)
		}
	}

	submissions, err := store.Open(filepath.Join(cfg.DataDir, "submissions.db"))
	if err != nil {
		logger.Warn("submission store unavailable", "error", err)
		submissions = nil
	}

	return eng, submissions
}

func rebuildFromStore(ctx context.Context, eng *engine.Engine, submissions *store.DB, logger *slog.Logger) {
	if submissions == nil {
		logger.Warn("no submission store, rebuild skipped")
		return
	}
	subs, batch, err := submissions.LatestBatch()
	if err != nil {
		logger.Error("stored submissions unavailable", "error", err)
		return
	}
	report, err := eng.Rebuild(ctx, subs)
	if err != nil {
		logger.Error("rebuild failed", "error", err, "batch", batch.ID)
		return
	}
	if !report.Success {
		logger.Error("rebuild failed", "error", report.Error, "batch", batch.ID)
		return
	}
	logger.Info("rebuild complete", "batch", batch.ID, "entries", report.VectorizedEntries, "elapsed", report.ProcessingTime)
}

func loadConfig(path string, logger *slog.Logger) config {
	cfg := config{
		Addr:         ":8420",
		DataDir:      "data",
		KeyNormalize: "lowercase_utf8",
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg
		}
		logger.Error("read config", "error", err)
		os.Exit(1)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("parse config", "error", err)
		os.Exit(1)
	}
	return cfg
}
