// Package cli provides the command-line interface of the exchange agent.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/exchange-agent/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

// DefaultConfigFile is used when no --config flag is given and the file exists.
const DefaultConfigFile = ".exchange-agent/application.yml"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPaths []string
	Verbose     bool
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "exchange-agent",
		Short: "Synchronise documents with the exchange service",
		Long: `exchange-agent uploads documents dropped into each connector's source
folder and downloads pending documents into its target folder. It can also
renew its own client secret in the configuration file that defines it.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.SetVerbose(opts.Verbose)
		},
	}

	cmd.PersistentFlags().StringArrayVarP(&opts.ConfigPaths, "config", "c", nil,
		"configuration file (repeatable, later files win; default ~/"+DefaultConfigFile+")")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newRenewSecretCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// resolveConfigPaths makes the given paths absolute. Without paths, the
// default file is used if it exists; otherwise only the environment is read.
func resolveConfigPaths(paths []string) ([]string, error) {
	if len(paths) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil
		}
		def := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(def); err != nil {
			return nil, nil
		}
		return []string{def}, nil
	}

	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve config path %s: %w", p, err)
		}
		resolved = append(resolved, abs)
	}
	return resolved, nil
}
