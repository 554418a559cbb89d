package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/spellbook/pkg/sqlite"
	"github.com/mesh-intelligence/spellbook/pkg/spellbook"
)

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the spellbook version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "spellbook v%s\nmodule: %s\nschema: %d\n",
				spellbook.Version, spellbook.ModulePath, sqlite.LatestVersion)
			return nil
		},
	}
}
