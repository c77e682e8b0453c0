package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docdecor/internal/decorate"
	"github.com/dgallion1/docdecor/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [site-dir]",
	Short: "Decorate a site, then keep decorating pages as they change",
	Long: `Runs a full decoration pass, then watches the site directory and
re-decorates each page once it has been quiet for watch_debounce. Meant to
run next to "mkdocs build" or "mkdocs serve --dirtyreload".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args)
		if err != nil {
			return err
		}
		log := newLogger()

		proc, err := newProcessor(cfg, decorate.New(log), log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		report, err := proc.Run(ctx, nil)
		if err != nil {
			return err
		}
		printReport(cmd, report)

		w, err := watch.New(watch.Options{
			Root:     proc.Root(),
			Debounce: cfg.WatchDebounce,
			Match:    proc.Matches,
			SkipDir:  proc.SkipDir,
		}, func(ctx context.Context, rel string) {
			fr, err := proc.ProcessFile(ctx, rel)
			if err != nil {
				log.Error("decorate failed", "path", rel, "error", err)
				return
			}
			if fr.Written {
				log.Info("decorated page", "path", rel,
					"headers", fr.Result.Headers, "groups", fr.Result.Groups)
			}
		}, log)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		log.Info("shutting down...")
		w.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
