package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mesh-intelligence/spellbook/pkg/types"
)

func (a *app) newSpellsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spells",
		Short: "Search and maintain spells",
	}
	cmd.AddCommand(a.newSpellSearchCmd(), a.newSpellRestoreCmd())
	return cmd
}

// searchFlags holds the raw spell search flag values.
type searchFlags struct {
	level       int
	class       string
	minRange    string
	source      string
	castingTime string
	duration    string
	tags        []string
	tagMode     string
	idsOnly     bool

	ritual, concentration, legacy bool
	verbal, somatic, material     bool
}

func (a *app) newSpellSearchCmd() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search spells",
		Long: `Search spells by any combination of filters. Text matches the name,
description, or any tag. Boolean filters apply only when given, so
--ritual=false selects non-ritual spells.

Example:
  spellbook spells search fire --level 3
  spellbook spells search --class wizard --tag fire --tag aoe --tag-mode any
  spellbook spells search --min-range 120 --concentration=false`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.filter(cmd.Flags(), args)
			if err != nil {
				return userError(err)
			}
			return a.runSpellSearch(cmd, filter, f.idsOnly)
		},
	}
	fs := cmd.Flags()
	fs.IntVar(&f.level, "level", 0, "spell level (0-9)")
	fs.StringVar(&f.class, "class", "", "class that can cast the spell")
	fs.StringVar(&f.minRange, "min-range", "", "minimum range in feet, or a label such as \"1 mile\"")
	fs.StringVar(&f.source, "source", "", "exact source")
	fs.StringVar(&f.castingTime, "casting-time", "", "exact casting time")
	fs.StringVar(&f.duration, "duration", "", "exact duration")
	fs.StringSliceVar(&f.tags, "tag", nil, "tag to match (repeatable)")
	fs.StringVar(&f.tagMode, "tag-mode", "has_all", "how tags combine: has_all, has_any, or has_none")
	fs.BoolVar(&f.idsOnly, "ids", false, "print only spell ids")
	fs.BoolVar(&f.ritual, "ritual", false, "ritual spells")
	fs.BoolVar(&f.concentration, "concentration", false, "concentration spells")
	fs.BoolVar(&f.legacy, "legacy", false, "legacy spells")
	fs.BoolVar(&f.verbal, "verbal", false, "spells with a verbal component")
	fs.BoolVar(&f.somatic, "somatic", false, "spells with a somatic component")
	fs.BoolVar(&f.material, "material", false, "spells with a material component")
	return cmd
}

// filter builds the spell filter from the flags that were set.
func (f *searchFlags) filter(fs *pflag.FlagSet, args []string) (types.SpellFilter, error) {
	var filter types.SpellFilter
	if len(args) > 0 {
		filter.Text = args[0]
	}
	if fs.Changed("level") {
		filter.Level = types.Ptr(f.level)
	}
	filter.Class = f.class
	filter.Source = f.source
	filter.CastingTime = f.castingTime
	filter.Duration = f.duration

	if f.minRange != "" {
		feet, err := parseMinRange(f.minRange)
		if err != nil {
			return filter, err
		}
		filter.MinRange = feet
	}

	for _, b := range []struct {
		name  string
		value bool
		dest  **bool
	}{
		{"ritual", f.ritual, &filter.Ritual},
		{"concentration", f.concentration, &filter.Concentration},
		{"legacy", f.legacy, &filter.Legacy},
		{"verbal", f.verbal, &filter.Verbal},
		{"somatic", f.somatic, &filter.Somatic},
		{"material", f.material, &filter.Material},
	} {
		if fs.Changed(b.name) {
			*b.dest = types.Ptr(b.value)
		}
	}

	mode, err := types.ParseTagMode(f.tagMode)
	if err != nil {
		return filter, err
	}
	filter.Tags = f.tags
	filter.TagMode = mode
	return filter, nil
}

const feetPerMile = 5280

// parseMinRange accepts a plain number of feet or a range label. Mile
// ranges are converted to feet.
func parseMinRange(s string) (int, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n, nil
	}
	v, err := types.ParseRange(s)
	if err != nil {
		return 0, fmt.Errorf("%w: minimum range %q", types.ErrInvalidFilter, s)
	}
	if v < 0 {
		return -v * feetPerMile, nil
	}
	if v == types.RangeSelf || v == types.RangeTouch || v == types.RangeSpecial || v == types.RangeSight {
		return 0, fmt.Errorf("%w: minimum range %q is not a distance", types.ErrInvalidFilter, s)
	}
	return v, nil
}

func (a *app) runSpellSearch(cmd *cobra.Command, filter types.SpellFilter, idsOnly bool) error {
	ctx := cmd.Context()
	backend, err := a.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	out := cmd.OutOrStdout()
	if idsOnly {
		ids, err := backend.Spells.SearchIDs(ctx, filter)
		if err != nil {
			return userError(fmt.Errorf("search spells: %w", err))
		}
		if a.flags.jsonMode {
			return printJSON(out, ids)
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	spells, err := backend.Spells.Search(ctx, filter)
	if err != nil {
		return userError(fmt.Errorf("search spells: %w", err))
	}
	if a.flags.jsonMode {
		return printJSON(out, spells)
	}
	if len(spells) == 0 {
		fmt.Fprintln(out, "No spells found.")
		return nil
	}
	rows := make([][]string, len(spells))
	for i, sp := range spells {
		rows[i] = []string{
			strconv.Itoa(sp.Level),
			sp.Name,
			sp.CastingTime,
			types.RangeLabel(sp.RangeValue),
			strings.Join(sp.Tags, ", "),
		}
	}
	if err := printTable(out, []string{"LEVEL", "NAME", "CASTING TIME", "RANGE", "TAGS"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(out, "Total: %d spell(s)\n", len(spells))
	return nil
}

func (a *app) newSpellRestoreCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "restore [name]",
		Short: "Restore modified official spells to their bundled definition",
		Args: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("give either a spell name or --all")
			}
			return cobra.MaximumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := a.openBackend(ctx)
			if err != nil {
				return err
			}
			defer backend.Close()

			if all {
				n, err := backend.Spells.RestoreAllOfficial(ctx)
				if err != nil {
					return sysError(fmt.Errorf("restore spells: %w", err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d spell(s)\n", n)
				return nil
			}
			ok, err := backend.Spells.Restore(ctx, args[0])
			if err != nil {
				return sysError(fmt.Errorf("restore spell: %w", err))
			}
			if !ok {
				return userError(fmt.Errorf("spell %q has no bundled definition", args[0]))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "restore every modified official spell")
	return cmd
}
