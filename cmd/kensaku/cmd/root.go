// Package cmd provides the CLI commands for kensaku.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kotaeru-ai/kensaku/internal/config"
	"github.com/kotaeru-ai/kensaku/internal/logging"
	"github.com/kotaeru-ai/kensaku/pkg/version"
)

// rootOptions holds persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
	verbose    bool
}

var loggingCleanup func()

// NewRootCmd creates the root command for the kensaku CLI.
func NewRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "kensaku",
		Short: "Multi-strategy document search engine",
		Long: `Kensaku ingests documents into a tenant-scoped corpus and answers
queries with four concurrent strategies: exact substring, fuzzy
trigram, weighted keyword, and vector similarity. Scores are
normalized, position-corrected, and merged into one ranked list.

Run 'kensaku ingest' to add documents, then 'kensaku search' to query.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("kensaku version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default: <data-dir>/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data directory (default: ~/.kensaku)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Mirror logs to stderr")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		cfg, err := loadConfig(opts)
		if err != nil {
			return err
		}
		if err := setupLogging(cfg, opts.verbose); err != nil {
			return err
		}
		c.SetContext(withConfig(c.Context(), cfg))
		return nil
	}
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDocumentsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the config file and applies flag overrides. Flags
// win over both the file and environment variables.
func loadConfig(opts rootOptions) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		dir := opts.dataDir
		if dir == "" {
			dir = config.NewConfig().DataDir
		}
		path = filepath.Join(dir, "config.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

// setupLogging installs the process-wide logger. CLI runs log to the
// data directory; stderr mirroring is opt-in to keep command output
// clean.
func setupLogging(cfg *config.Config, verbose bool) error {
	logCfg := logging.DefaultConfig(cfg.DataDir)
	logCfg.Level = cfg.LogLevel
	logCfg.WriteToStderr = verbose

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Debug("logging initialized", "level", cfg.LogLevel, "data_dir", cfg.DataDir)
	return nil
}
