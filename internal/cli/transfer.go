// Export and import commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const formatsHelp = "The file extension picks the format: .json, .yaml/.yml, or .jsonl."

func (a *app) newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <kind> <file>",
		Short: "Export a collection to a document file",
		Long:  "Export writes a whole collection to file, replacing it atomically.\n\n" + formatsHelp + "\n" + kindsHelp,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			backend, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			if err := backend.Pipeline.ExportFile(cmd.Context(), kind, args[1]); err != nil {
				return sysError(fmt.Errorf("export %s: %w", kind, err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", kind, args[1])
			return nil
		},
	}
}

func (a *app) newImportCmd() *cobra.Command {
	var keepFlags bool
	cmd := &cobra.Command{
		Use:   "import <kind> <file>",
		Short: "Import a document file into a collection",
		Long: `Import inserts every record whose name is not already taken. Malformed
records are skipped with a warning. Imported records are marked custom unless
--keep-flags is given.

` + formatsHelp + "\n" + kindsHelp,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			backend, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			n, err := backend.Pipeline.ImportFile(cmd.Context(), kind, args[1], !keepFlags)
			if err != nil {
				return userError(fmt.Errorf("import %s: %w", kind, err))
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"kind": kind, "imported": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d %s\n", n, kind)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepFlags, "keep-flags", false, "keep the official/custom flags recorded in the file")
	return cmd
}
