// Package cli implements the escapectl commands.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	stagesFile string
	formatFlag string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "escapectl",
	Short:         "City escape game tools",
	Long:          "Play the city escape game in a terminal, validate stage files and browse recorded runs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Run history database (default: $DB_PATH or data/cityescape.db)")
	RootCmd.PersistentFlags().StringVarP(&stagesFile, "stages", "s", "", "Stage file, JSON or YAML (default: $STAGES_FILE or built-in stages)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: text or json")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine and speech activity to stderr")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("DB_PATH"); env != "" {
		return env
	}
	return "data/cityescape.db"
}

func getStagesFile() string {
	if stagesFile != "" {
		return stagesFile
	}
	return os.Getenv("STAGES_FILE")
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
