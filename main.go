package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.2.0"

const doc = `tracegen rewrites marked functions so that every propagated error
carries the originating function name and source location baked in at
build time. Run it before compilation, by hand or via go:generate.`

var rootCmd = &cobra.Command{
	Use:     "tracegen [flags] <path> [path...]",
	Short:   "Build-time error trace instrumentation for Go sources",
	Long:    doc,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runGen,
	Version: version,
}

func init() {
	rootCmd.Flags().BoolP("write", "w", false, "rewrite files in place instead of printing to stdout")
	rootCmd.Flags().Bool("list", false, "list matched sites without rewriting")
	rootCmd.Flags().String("config", "", "path to a YAML config file")
	rootCmd.Flags().String("marker", "", "override the marker directive word")
	rootCmd.Flags().String("color", "auto", "colorize diagnostics (auto|on|off)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
