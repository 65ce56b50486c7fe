package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/room-compactor/room-compactor/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger utils.Logger = &utils.NullLogger{}
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "room-compactor",
	Short: "Recompresses a chat server's state-group DAG",
	Long: `room-compactor rewrites a room's state-group predecessor chains to
bound chain depth while preserving resolved state, so that state
resolution over the room's history does not require walking an
unbounded number of predecessor rows.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (yaml); falls back to ./config.yaml and env vars")

	binName := BinName()
	rootCmd.Example = `  # Compress the 5 most uncompressed rooms once
  ` + binName + ` run --db-url postgres://localhost/synapse

  # Compress with a custom chunk size and level structure
  ` + binName + ` run --db-url postgres://localhost/synapse --chunk-size 1000 --default-levels 100,50,25

  # Keep compressing on an interval instead of exiting after one pass
  ` + binName + ` run --db-url postgres://localhost/synapse --watch`
}

// GetLogger returns the configured logger.
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}
