// Package cli defines the molgen command tree: running a search, managing
// the molecule archive schema, and inspecting version information.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand assembles the molgen command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "molgen",
		Short:   "MolGenesis: de-novo molecule generation by Monte-Carlo tree search",
		Long:    "MolGenesis explores the space of SMILES token sequences with MCTS,\nguided by a learned next-token model, and scores candidates with\nconfigurable property objectives and structural filters.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path (default: ./molgen.yaml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(
		newRunCommand(opts),
		newResumeCommand(opts),
		newMigrateCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "molgen %s (commit: %s, built: %s)\n", Version, GitCommit, BuildDate)
		},
	}
}

// Execute runs the CLI and reports failures on stderr.
func Execute() error {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		return err
	}
	return nil
}

// loadConfig resolves the configuration with priority flag > ./molgen.yaml >
// environment-only.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case opts.configPath != "":
		cfg, err = config.Load(opts.configPath)
	default:
		if _, statErr := os.Stat("molgen.yaml"); statErr == nil {
			cfg, err = config.Load("molgen.yaml")
		} else {
			cfg, err = config.LoadFromEnv()
		}
	}
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger from the resolved configuration.
func newLogger(cfg *config.Config) (logging.Logger, error) {
	return logging.NewLogger(cfg.Log)
}
