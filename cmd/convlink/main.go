package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "convlink",
	Short: "convlink resolves conversation identifiers and serves signed deep links",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger once --log-level has been parsed
		initLogger(logLevel)
	},
}

func initLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to convlink.yaml (default: ./convlink.yaml, ~/.convlink/)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newMintCommand())
	rootCmd.AddCommand(newKeygenCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newVerifyLinkCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
