package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

// envFile is loaded before any command runs. Values already present in the
// environment win.
var envFile = ".env"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowstats",
		Short: "flowstats - transcript and evaluation analytics for Voiceflow projects",
		Long: `flowstats fetches transcripts and evaluation results from the Voiceflow
Analytics API and turns them into project-level metrics: evaluation success
rates, numeric distributions, course popularity and session statistics.

Credentials are read from VOICEFLOW_API_KEY and VOICEFLOW_PROJECT_ID, optionally
from a .env file in the working directory. Other settings come from
.flowstats.yaml.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
		return loadEnvFile(envFile)
	}

	cmd.AddCommand(newSummaryCommand())
	cmd.AddCommand(newExportCommand())
	cmd.AddCommand(newCoursesCommand())
	cmd.AddCommand(newDefinitionsCommand())
	cmd.AddCommand(newCompareCommand())

	return cmd
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	return rootCmd.ExecuteContext(ctx)
}
