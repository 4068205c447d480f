package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/gebo/internal"
	"github.com/starford/gebo/internal/classifier"
	"github.com/starford/gebo/internal/derive"
	"github.com/starford/gebo/internal/index"
	"github.com/starford/gebo/internal/mcpserver"
	"github.com/starford/gebo/internal/notestore"
	"github.com/starford/gebo/internal/storage"
	pkgconfig "github.com/starford/gebo/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// runMCP serves the MCP tool surface over stdio. Logs go to stderr because
// stdout carries the MCP transport.
func runMCP(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Notes.Path, 0o755); err != nil {
		return fmt.Errorf("create notes dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Notes.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	svc, err := notestore.NewService(store, db)
	if err != nil {
		return fmt.Errorf("init notestore: %w", err)
	}
	cls := classifier.NewHTTP(cfg.Classifier.URL, cfg.Classifier.Timeout(), logger)
	pipeline := derive.New(cls, svc, cfg.Classifier.MaxConcurrent, logger)

	return mcpserver.New(svc, pipeline).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:   "gebo",
		Usage:  "Note store with a hybrid file+SQLite persistence layer and AI-derived note connections",
		Action: runServe,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tool surface over stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
