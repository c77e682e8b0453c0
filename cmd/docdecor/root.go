package main

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/docdecor/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docdecor",
	Short: "Decorate mkdocstrings API pages with section headers and member groups",
	Long: `docdecor post-processes HTML built by mkdocs + mkdocstrings. Each class
and module block gets "Signature:", "Description:" and "Members:" headers,
and its child entries are grouped into collapsible Modules, Attributes and
Methods sections.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
