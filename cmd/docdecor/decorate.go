package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docdecor/internal/decorate"
	"github.com/dgallion1/docdecor/internal/progress"
	"github.com/dgallion1/docdecor/internal/site"
)

var noProgress bool

var decorateCmd = &cobra.Command{
	Use:   "decorate [site-dir]",
	Short: "Decorate every page of a built site once",
	Long: `Walks the site directory, decorates every page matching the include
globs and writes the result in place, or under out_dir when it is set.
Pages that are already decorated are left untouched.`,
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

		var rep progress.Reporter = progress.Nop{}
		if !noProgress {
			rep = progress.NewReporter(os.Stderr)
		}

		report, err := proc.Run(ctx, rep)
		if err != nil {
			return err
		}
		printReport(cmd, report)

		if report.Failed > 0 {
			return fmt.Errorf("%d page(s) failed", report.Failed)
		}
		return nil
	},
}

func printReport(cmd *cobra.Command, r site.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pages:     %d scanned, %d changed, %d unchanged\n", r.Scanned, r.Changed, r.Unchanged)
	if r.Copied > 0 {
		fmt.Fprintf(out, "Assets:    %d copied\n", r.Copied)
	}
	fmt.Fprintf(out, "Blocks:    %d\n", r.Totals.Blocks)
	fmt.Fprintf(out, "Headers:   %d inserted\n", r.Totals.Headers)
	fmt.Fprintf(out, "Groups:    %d created, %d entries moved\n", r.Totals.Groups, r.Totals.Moved)
	for _, fe := range r.Errors {
		fmt.Fprintf(out, "  failed %s: %s\n", fe.Path, fe.Error)
	}
	fmt.Fprintf(out, "Done in %s\n", r.Duration.Round(time.Millisecond))
}

func init() {
	decorateCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(decorateCmd)
}
