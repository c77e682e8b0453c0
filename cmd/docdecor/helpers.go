package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/docdecor/internal/config"
	"github.com/dgallion1/docdecor/internal/decorate"
	"github.com/dgallion1/docdecor/internal/site"
)

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// loadConfig loads and validates the config. A positional site directory
// overrides site_dir.
func loadConfig(args []string) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w\nRun `docdecor init` to create a config file", err)
	}
	if len(args) > 0 {
		cfg.SiteDir = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := os.Stat(cfg.SiteDir); err != nil {
		return cfg, fmt.Errorf("site directory: %w", err)
	}
	return cfg, nil
}

func newProcessor(cfg config.Config, dec *decorate.Decorator, log *slog.Logger) (*site.Processor, error) {
	return site.NewProcessor(site.Options{
		Root:    cfg.SiteDir,
		OutDir:  cfg.OutDir,
		Include: cfg.Include,
		Exclude: cfg.Exclude,
		Workers: cfg.Workers,
	}, dec, log)
}
