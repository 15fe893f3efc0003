package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var jsonLogs bool

// logger is configured in rootCmd's PersistentPreRun once --json-logs has
// been parsed: a console writer for humans running the tool interactively,
// or raw JSON for scripted callers that want to parse diagnostics.
var logger zerolog.Logger

var rootCmd = &cobra.Command{
	Use:           "bps",
	Short:         "diff, apply, optimize and validate BPS binary patches",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if jsonLogs {
			logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
			return
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).With().Timestamp().Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit diagnostics as JSON instead of console-formatted text")
}
