// Shared helpers for spellbook CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/spellbook/internal/paths"
	"github.com/mesh-intelligence/spellbook/pkg/sqlite"
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// openBackend resolves the data directory and opens the store, migrating it
// if needed. The caller must defer backend.Close().
func (a *app) openBackend(ctx context.Context) (*sqlite.Backend, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.file.GetString(cfgKeyDataDir))
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	cfg := a.settings.StoreConfig()
	cfg.DataDir = dataDir

	backend, err := sqlite.Open(ctx, cfg, sqlite.WithLogger(a.logger))
	if err != nil {
		return nil, sysError(fmt.Errorf("open store: %w", err))
	}
	return backend, nil
}

// parseKind resolves a collection argument, reporting the valid names.
func parseKind(s string) (types.Kind, error) {
	kind, err := types.ParseKind(s)
	if err != nil {
		names := make([]string, len(types.Kinds))
		for i, k := range types.Kinds {
			names[i] = string(k)
		}
		return "", userError(fmt.Errorf("%w (valid: %s)", err, strings.Join(names, ", ")))
	}
	return kind, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// printTable writes rows under header, aligned, with trailing whitespace
// trimmed from each line.
func printTable(w io.Writer, header []string, rows [][]string) error {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

// flagLabels renders the content flags of c for table output.
func flagLabels(c *types.Content) string {
	var labels []string
	if c.IsOfficial {
		labels = append(labels, "official")
	}
	if c.IsCustom {
		labels = append(labels, "custom")
	}
	if c.IsLegacy {
		labels = append(labels, "legacy")
	}
	return strings.Join(labels, ",")
}

// collectionView is the kind-independent face of one collection used by the
// generic commands. Nil operations are unsupported for the kind.
type collectionView struct {
	get     func(ctx context.Context, name string) (any, bool, error)
	list    func(ctx context.Context) (any, [][]string, error)
	filter  func(ctx context.Context, flag types.Flag) (any, [][]string, error)
	remove  func(ctx context.Context, name string) (bool, error)
	sources func(ctx context.Context) ([]string, error)
}

// flaggedStore is a content store that also serves the flag views.
type flaggedStore[T any] interface {
	types.ContentStore[T]
	Filter(ctx context.Context, flag types.Flag) ([]T, error)
}

// listHeader is the table header of collectionView.list rows.
var listHeader = []string{"NAME", "SOURCE", "FLAGS"}

func viewOf[T any, PT interface {
	*T
	types.Entity
}](s flaggedStore[T]) collectionView {
	table := func(items []T, err error) (any, [][]string, error) {
		if err != nil {
			return nil, nil, err
		}
		rows := make([][]string, len(items))
		for i := range items {
			c := PT(&items[i]).Base()
			rows[i] = []string{c.Name, c.Source, flagLabels(c)}
		}
		return items, rows, nil
	}
	return collectionView{
		get: func(ctx context.Context, name string) (any, bool, error) {
			return s.Get(ctx, name)
		},
		list: func(ctx context.Context) (any, [][]string, error) {
			return table(s.All(ctx))
		},
		filter: func(ctx context.Context, flag types.Flag) (any, [][]string, error) {
			return table(s.Filter(ctx, flag))
		},
		remove:  s.Remove,
		sources: s.Sources,
	}
}

// statBlockView lists stat blocks and looks them up by owning spell.
func statBlockView(spells *sqlite.SpellStore) collectionView {
	return collectionView{
		get: func(ctx context.Context, spell string) (any, bool, error) {
			blocks, err := spells.StatBlocks(ctx, spell)
			return blocks, len(blocks) > 0, err
		},
		list: func(ctx context.Context) (any, [][]string, error) {
			blocks, err := spells.AllStatBlocks(ctx)
			if err != nil {
				return nil, nil, err
			}
			rows := make([][]string, len(blocks))
			for i, b := range blocks {
				rows[i] = []string{b.Name, b.SpellName, ""}
			}
			return blocks, rows, nil
		},
	}
}

// views returns the collection view of every kind.
func views(b *sqlite.Backend) map[types.Kind]collectionView {
	return map[types.Kind]collectionView{
		types.KindSpells:      viewOf[types.Spell](b.Spells.Store),
		types.KindStatBlocks:  statBlockView(b.Spells),
		types.KindLineages:    viewOf[types.Lineage](b.Lineages),
		types.KindFeats:       viewOf[types.Feat](b.Feats),
		types.KindBackgrounds: viewOf[types.Background](b.Backgrounds),
		types.KindClasses:     viewOf[types.CharacterClass](b.Classes.Store),
	}
}

// unsupported reports a command that does not apply to kind.
func unsupported(command string, kind types.Kind) error {
	return userError(fmt.Errorf("%s is not supported for %s", command, kind))
}
