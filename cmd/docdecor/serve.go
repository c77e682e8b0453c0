package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docdecor/internal/api"
	"github.com/dgallion1/docdecor/internal/decorate"
	"github.com/dgallion1/docdecor/internal/pipeline"
	"github.com/dgallion1/docdecor/internal/stats"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve [site-dir]",
	Short: "Serve a built site, decorating pages on the fly",
	Long: `Starts an HTTP server over the site directory. Pages are decorated per
request and never rewritten on disk. POST /_api/rebuild decorates the site
on disk in the background; POST /_api/decorate decorates an uploaded page.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		if servePort != "" {
			cfg.Port = servePort
		}
		log := newLogger()

		dec := decorate.New(log)
		proc, err := newProcessor(cfg, dec, log)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Initialize pipeline.
		orch := pipeline.NewOrchestrator(proc, cfg.QueueSize, cfg.JobTTL, log)
		orch.Start(ctx)

		srv := api.NewServer(proc, dec, stats.NewRecorder(cfg.StatsWindow), orch, log, cfg)

		httpServer := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown.
		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.Info("shutting down...")

			orch.Stop()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error("shutdown", "error", err)
			}
		}()

		log.Info("starting docdecor", "port", cfg.Port, "site_dir", cfg.SiteDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
