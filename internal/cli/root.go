// Package cli implements the spellbook command-line interface.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/spellbook/internal/config"
	"github.com/mesh-intelligence/spellbook/internal/paths"
	"github.com/mesh-intelligence/spellbook/pkg/spellbook"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

// app is the state shared by one command tree.
type app struct {
	flags     rootFlags
	configDir string
	file      *viper.Viper
	settings  config.Settings
	logger    *slog.Logger
}

// NewRootCmd creates the top-level "spellbook" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:     "spellbook",
		Short:   "Manage a local library of tabletop rules content",
		Long:    "Spellbook stores spells, stat blocks, lineages, feats, backgrounds, and classes\nin a local SQLite database and searches them.",
		Version: spellbook.Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: platform data dir)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		a.newVersionCmd(),
		a.newInitCmd(),
		a.newMigrateCmd(),
		a.newSpellsCmd(),
		a.newGetCmd(),
		a.newListCmd(),
		a.newRemoveCmd(),
		a.newSourcesCmd(),
		a.newTagsCmd(),
		a.newExportCmd(),
		a.newImportCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "spellbook:", err)
	}
	return exitCode(err)
}

// exitCode maps a command error to the process exit code. Errors raised by
// cobra itself, such as unknown flags, are user errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// setup loads settings and the config file and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	env, err := config.Load()
	if err != nil {
		return userError(err)
	}
	a.configDir, err = paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	a.file, err = loadConfig(a.configDir)
	if err != nil {
		return sysError(err)
	}
	a.settings = env.WithFallback(fileSettings(a.file))
	a.logger, err = a.settings.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return userError(err)
	}
	return nil
}

// exitError carries the exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error { return &exitError{code: exitUserError, err: err} }

func sysError(err error) error { return &exitError{code: exitSysError, err: err} }
