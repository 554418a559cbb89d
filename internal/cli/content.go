// Generic commands over any content collection.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/spellbook/pkg/types"
)

const kindsHelp = "Kinds: spells, stat_blocks, lineages, feats, backgrounds, classes (singular forms work too)."

func (a *app) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <name>",
		Short: "Get an entry by name",
		Long: `Get prints one entry as JSON. Names match case-insensitively. For
stat_blocks the name is the owning spell.

` + kindsHelp + `

Example:
  spellbook get spell fireball
  spellbook get stat_blocks "Summon Beast"`,
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

			item, found, err := views(backend)[kind].get(cmd.Context(), args[1])
			if err != nil {
				return sysError(fmt.Errorf("get %s: %w", kind, err))
			}
			if !found {
				return userError(fmt.Errorf("%s %q not found", kind, args[1]))
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
}

func (a *app) newListCmd() *cobra.Command {
	var flagName string
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List every entry of a collection",
		Long: `List prints every entry of a collection ordered by name. --flag narrows
the listing to official, unofficial, custom, legacy, or current entries.

` + kindsHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			var flag *types.Flag
			if flagName != "" {
				f, err := types.ParseFlag(flagName)
				if err != nil {
					return userError(err)
				}
				flag = &f
			}
			backend, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			view := views(backend)[kind]
			var (
				items any
				rows  [][]string
			)
			switch {
			case flag == nil:
				items, rows, err = view.list(cmd.Context())
			case view.filter == nil:
				return unsupported("list --flag", kind)
			default:
				items, rows, err = view.filter(cmd.Context(), *flag)
			}
			if err != nil {
				return sysError(fmt.Errorf("list %s: %w", kind, err))
			}
			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return printJSON(out, items)
			}
			if len(rows) == 0 {
				fmt.Fprintf(out, "No %s found.\n", kind)
				return nil
			}
			if err := printTable(out, listHeader, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "Total: %d\n", len(rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&flagName, "flag", "", "only entries with this flag: official, unofficial, custom, legacy, current")
	return cmd
}

func (a *app) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <kind> <name>",
		Short: "Remove an entry and everything it owns",
		Long:  "Remove deletes an entry by name. Owned children (stat blocks, subclasses) go with it.\n\n" + kindsHelp,
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

			view := views(backend)[kind]
			if view.remove == nil {
				return unsupported("remove", kind)
			}
			removed, err := view.remove(cmd.Context(), args[1])
			if err != nil {
				return sysError(fmt.Errorf("remove %s: %w", kind, err))
			}
			if !removed {
				return userError(fmt.Errorf("%s %q not found", kind, args[1]))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s %s\n", kind, args[1])
			return nil
		},
	}
}

func (a *app) newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources <kind>",
		Short: "List the distinct sources of a collection",
		Args:  cobra.ExactArgs(1),
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

			view := views(backend)[kind]
			if view.sources == nil {
				return unsupported("sources", kind)
			}
			sources, err := view.sources(cmd.Context())
			if err != nil {
				return sysError(fmt.Errorf("list sources: %w", err))
			}
			return a.printLines(cmd, sources)
		},
	}
}

func (a *app) newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every spell tag in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer backend.Close()

			tags, err := backend.Spells.Tags(cmd.Context())
			if err != nil {
				return sysError(fmt.Errorf("list tags: %w", err))
			}
			return a.printLines(cmd, tags)
		},
	}
}

// printLines prints values one per line, or as a JSON array.
func (a *app) printLines(cmd *cobra.Command, values []string) error {
	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		return printJSON(out, values)
	}
	for _, v := range values {
		fmt.Fprintln(out, v)
	}
	return nil
}
