package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/spellbook/pkg/types"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize spellbook storage",
		Long:  "Create the configuration and data directories, then create and seed the store.",
		Args:  cobra.NoArgs,
		RunE:  a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	backend, err := a.openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer backend.Close()

	cfg := backend.Config()
	rep := backend.Migration()
	if a.flags.jsonMode {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"config_dir": a.configDir,
			"database":   filepath.Join(cfg.DataDir, cfg.DatabaseName()),
			"version":    rep.To,
			"seeded":     rep.Seeded,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Spellbook initialized at %s (schema version %d)\n",
		filepath.Join(cfg.DataDir, cfg.DatabaseName()), rep.To)
	for _, kind := range types.Kinds {
		if n := rep.Seeded[kind]; n > 0 {
			fmt.Fprintf(out, "  seeded %d %s\n", n, kind)
		}
	}
	return nil
}
