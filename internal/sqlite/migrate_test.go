package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// historicalBackend builds a store whose schema stops at version target,
// the way an older build would have left it.
func historicalBackend(t *testing.T, target int, opts ...Option) *Backend {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, "spellbook.db")+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	b := newBackend(db, types.Config{DataDir: dir}, o)
	t.Cleanup(func() { b.Close() })

	rep, err := b.migrator.migrateTo(ctx, target)
	require.NoError(t, err)
	require.False(t, rep.Fresh)
	v, err := b.migrator.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, target, v)
	return b
}

// execRaw runs raw statements against the backend's database.
func execRaw(t *testing.T, b *Backend, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		_, err := b.db.ExecContext(context.Background(), stmt)
		require.NoError(t, err, firstLine(stmt))
	}
}

// rawSpell inserts a spell with only the version 1 columns and returns its id.
func rawSpell(t *testing.T, b *Backend, name, source string, tagList ...string) int64 {
	t.Helper()
	ctx := context.Background()
	res, err := b.db.ExecContext(ctx, `INSERT INTO spells (name, level, casting_time, range_value, components, duration, source)
VALUES (?, 1, 'Action', 60, 'V', 'Instantaneous', ?)`, name, source)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	for _, tag := range tagList {
		_, err := b.db.ExecContext(ctx, "INSERT INTO spell_tags (spell_id, tag) VALUES (?, ?)", id, tag)
		require.NoError(t, err)
	}
	return id
}

// tableColumns describes the columns of table as "name type notnull".
func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), fmt.Sprintf("PRAGMA table_info(%s)", table))
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		require.NoError(t, rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk))
		out = append(out, fmt.Sprintf("%s %s %d", name, typ, notNull))
	}
	require.NoError(t, rows.Err())
	return out
}

func TestEnsureLatest(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T)
	}{
		{
			name: "second run is a no-op",
			check: func(t *testing.T) {
				b := openBackend(t)
				rep, err := b.Migrator().EnsureLatest(context.Background())
				require.NoError(t, err)
				assert.False(t, rep.Fresh)
				assert.Empty(t, rep.Applied)
				assert.Equal(t, LatestVersion, rep.From)
				assert.Equal(t, LatestVersion, rep.To)
				assert.NotEqual(t, b.Migration().RunID, rep.RunID)
			},
		},
		{
			name: "current version of a fresh store",
			check: func(t *testing.T) {
				b := emptyBackend(t)
				v, err := b.Migrator().CurrentVersion(context.Background())
				require.NoError(t, err)
				assert.Equal(t, LatestVersion, v)
			},
		},
		{
			name: "store newer than this build",
			check: func(t *testing.T) {
				ctx := context.Background()
				dir := t.TempDir()
				b, err := Open(ctx, types.Config{DataDir: dir}, WithBundle(nil))
				require.NoError(t, err)
				execRaw(t, b, fmt.Sprintf("UPDATE schema_version SET version = %d", LatestVersion+1))

				_, err = b.Migrator().EnsureLatest(ctx)
				assert.ErrorIs(t, err, types.ErrSchemaTooNew)
				require.NoError(t, b.Close())

				_, err = Open(ctx, types.Config{DataDir: dir}, WithBundle(nil))
				assert.ErrorIs(t, err, types.ErrSchemaTooNew)
			},
		},
		{
			name: "store created before versioning starts at version 1",
			check: func(t *testing.T) {
				ctx := context.Background()
				dir := t.TempDir()
				db, err := sql.Open("sqlite", filepath.Join(dir, "spellbook.db"))
				require.NoError(t, err)
				require.NoError(t, execAll(ctx, db, []string{stepSpells, createSpellClasses, createSpellTags}))
				_, err = db.ExecContext(ctx, `INSERT INTO spells (name, level, casting_time, range_value, components, duration, source)
VALUES ('Light', 0, 'Action', 1, 'V, M', '1 hour', 'Player''s Handbook (2024)')`)
				require.NoError(t, err)
				require.NoError(t, db.Close())

				b, err := Open(ctx, types.Config{DataDir: dir}, WithBundle(nil))
				require.NoError(t, err)
				defer b.Close()

				rep := b.Migration()
				assert.False(t, rep.Fresh)
				assert.Equal(t, 1, rep.From)
				assert.Equal(t, []int{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, rep.Applied)

				light, found, err := b.Spells.Get(ctx, "light")
				require.NoError(t, err)
				require.True(t, found)
				assert.True(t, light.IsCustom)
				assert.False(t, light.IsLegacy)
				assert.Equal(t, []string{"Unofficial"}, light.Tags)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.check)
	}
}

func TestMigratedSchemaMatchesFresh(t *testing.T) {
	fresh := emptyBackend(t)
	tables := []string{"spells", "spell_classes", "spell_tags", "stat_blocks",
		"lineages", "feats", "backgrounds", "classes", "subclasses"}

	for from := 1; from < LatestVersion; from++ {
		t.Run(fmt.Sprintf("from version %d", from), func(t *testing.T) {
			b := historicalBackend(t, from)
			rep, err := b.Migrator().EnsureLatest(context.Background())
			require.NoError(t, err)
			assert.Equal(t, from, rep.From)
			require.Len(t, rep.Applied, LatestVersion-from)
			assert.Equal(t, from+1, rep.Applied[0])

			for _, table := range tables {
				assert.Equal(t, tableColumns(t, fresh.db, table), tableColumns(t, b.db, table), table)
			}
		})
	}
}

func TestMigrationSteps(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T)
	}{
		{
			name: "corrections and original names",
			check: func(t *testing.T) {
				ctx := context.Background()
				fsys := testBundle(map[string]string{
					correctionsFile: `{"corrections": [
						{"name": "fireball", "description": "A bright streak flashes.", "level": 3},
						{"name": "Nowhere", "description": "Unused."}
					]}`,
				})
				b := historicalBackend(t, 3, WithBundle(fsys))
				rawSpell(t, b, "Fireball", "Player's Handbook (2024)", "Official")
				rawSpell(t, b, "Homebrew Bolt", "Homebrew")

				_, err := b.Migrator().EnsureLatest(ctx)
				require.NoError(t, err)

				fireball, _, err := b.Spells.Get(ctx, "Fireball")
				require.NoError(t, err)
				assert.Equal(t, "A bright streak flashes.", fireball.Description)
				assert.Equal(t, 3, fireball.Level)
				assert.Equal(t, "Fireball", fireball.OriginalName)

				bolt, _, err := b.Spells.Get(ctx, "Homebrew Bolt")
				require.NoError(t, err)
				assert.Empty(t, bolt.OriginalName)
				assert.Empty(t, bolt.Description)
			},
		},
		{
			name: "tags are normalized without duplicates",
			check: func(t *testing.T) {
				ctx := context.Background()
				b := historicalBackend(t, 5)
				rawSpell(t, b, "Burning Hands", "Homebrew", "fire", "Fire", "aoe", "Homebrew Tag")

				_, err := b.Migrator().EnsureLatest(ctx)
				require.NoError(t, err)

				got, _, err := b.Spells.Get(ctx, "Burning Hands")
				require.NoError(t, err)
				assert.Equal(t, []string{"Fire", "AOE", "Homebrew Tag", "Unofficial"}, got.Tags)
			},
		},
		{
			name: "case-variant tags collapse to one row",
			check: func(t *testing.T) {
				ctx := context.Background()
				b := historicalBackend(t, 5)
				rawSpell(t, b, "Brew", "Homebrew", "Homebrew Tag", "homebrew tag", "fire ")

				_, err := b.Migrator().EnsureLatest(ctx)
				require.NoError(t, err)

				got, _, err := b.Spells.Get(ctx, "Brew")
				require.NoError(t, err)
				assert.Equal(t, []string{"Homebrew Tag", "Fire", "Unofficial"}, got.Tags)

				filter := types.SpellFilter{Tags: []string{"homebrew tag"}, TagMode: types.TagsHasAll}
				spells, err := b.Spells.Search(ctx, filter)
				require.NoError(t, err)
				assert.Len(t, spells, 1)
				ids, err := b.Spells.SearchIDs(ctx, filter)
				require.NoError(t, err)
				assert.Len(t, ids, 1)
			},
		},
		{
			name: "legacy flag follows the source",
			check: func(t *testing.T) {
				ctx := context.Background()
				b := historicalBackend(t, 6)
				rawSpell(t, b, "Old Spell", "Player's Handbook")
				rawSpell(t, b, "New Spell", "Player's Handbook (2024)")
				rawSpell(t, b, "Faerun Spell", "Forgotten Realms - Heroes of Faerun")
				rawSpell(t, b, "No Source", "")

				_, err := b.Migrator().EnsureLatest(ctx)
				require.NoError(t, err)

				for name, want := range map[string]bool{
					"Old Spell":    true,
					"New Spell":    false,
					"Faerun Spell": false,
					"No Source":    false,
				} {
					sp, found, err := b.Spells.Get(ctx, name)
					require.NoError(t, err)
					require.True(t, found, name)
					assert.Equal(t, want, sp.IsLegacy, name)
				}
			},
		},
		{
			name: "official flags come from the protected tags",
			check: func(t *testing.T) {
				ctx := context.Background()
				b := historicalBackend(t, 7)
				rawSpell(t, b, "Tagged Official", "Player's Handbook (2024)", "Fire", "Official")
				rawSpell(t, b, "Both Tags", "Player's Handbook (2024)", "Unofficial", "Official")
				rawSpell(t, b, "Untagged", "Homebrew", "Cold")

				_, err := b.Migrator().EnsureLatest(ctx)
				require.NoError(t, err)

				want := []struct {
					name     string
					official bool
					tags     []string
				}{
					{"Tagged Official", true, []string{"Fire", "Official"}},
					{"Both Tags", true, []string{"Official"}},
					{"Untagged", false, []string{"Cold", "Unofficial"}},
				}
				for _, tt := range want {
					sp, found, err := b.Spells.Get(ctx, strings.ToUpper(tt.name))
					require.NoError(t, err)
					require.True(t, found, tt.name)
					assert.Equal(t, tt.official, sp.IsOfficial, tt.name)
					assert.Equal(t, !tt.official, sp.IsCustom, tt.name)
					assert.Equal(t, tt.tags, sp.Tags, tt.name)
				}
			},
		},
		{
			name: "failed step rolls back the whole run",
			check: func(t *testing.T) {
				ctx := context.Background()
				b := historicalBackend(t, 7)
				rawSpell(t, b, "Old Bolt", "Homebrew")

				saved := migrationSteps
				t.Cleanup(func() { migrationSteps = saved })
				migrationSteps = slices.Clone(saved)
				migrationSteps[7].apply = func(m *Migrator, ctx context.Context, q dbtx, rep *MigrationReport) error {
					if err := m.addOfficialFlags(ctx, q, rep); err != nil {
						return err
					}
					return errors.New("disk full")
				}

				_, err := b.Migrator().EnsureLatest(ctx)
				require.ErrorIs(t, err, types.ErrMigrationFailed)
				assert.Contains(t, err.Error(), "step 8")
				assert.Contains(t, err.Error(), "disk full")

				v, err := b.Migrator().CurrentVersion(ctx)
				require.NoError(t, err)
				assert.Equal(t, 7, v)
				exists, err := columnExists(ctx, b.db, "spells", "is_official")
				require.NoError(t, err)
				assert.False(t, exists)
			},
		},
		{
			name: "names that fold together both survive the key backfill",
			check: func(t *testing.T) {
				ctx := context.Background()
				b := historicalBackend(t, 7)
				rawSpell(t, b, "Straße", "Homebrew")
				rawSpell(t, b, "Strasse", "Homebrew")

				_, err := b.Migrator().EnsureLatest(ctx)
				require.NoError(t, err)

				n, err := b.Spells.Count(ctx)
				require.NoError(t, err)
				assert.Equal(t, 2, n)
				for _, name := range []string{"Straße", "Strasse"} {
					sp, found, err := b.Spells.Get(ctx, name)
					require.NoError(t, err)
					require.True(t, found, name)
					assert.Equal(t, name, sp.Name)
				}

				sp, _, err := b.Spells.Get(ctx, "Strasse")
				require.NoError(t, err)
				sp.Description = "Renamed road."
				updated, err := b.Spells.Update(ctx, "Strasse", sp)
				require.NoError(t, err)
				assert.True(t, updated, "the disambiguated key is kept on update")

				removed, err := b.Spells.Remove(ctx, "Strasse")
				require.NoError(t, err)
				assert.True(t, removed)
				_, found, err := b.Spells.Get(ctx, "Straße")
				require.NoError(t, err)
				assert.True(t, found)
			},
		},
		{
			name: "collections added by later versions are seeded",
			check: func(t *testing.T) {
				ctx := context.Background()
				fsys := testBundle(map[string]string{
					"feats.json":       `{"_version": 2, "feats": [{"name": "Alert", "is_official": true}]}`,
					"backgrounds.json": `{"backgrounds": [{"name": "Sage", "is_official": true}]}`,
				})
				b := historicalBackend(t, 8, WithBundle(fsys))

				rep, err := b.Migrator().EnsureLatest(ctx)
				require.NoError(t, err)
				assert.Equal(t, 1, rep.Seeded[types.KindFeats])
				assert.Equal(t, 1, rep.Seeded[types.KindBackgrounds])

				_, found, err := b.Feats.Get(ctx, "alert")
				require.NoError(t, err)
				assert.True(t, found)
			},
		},
		{
			name: "class sub-documents are rewrapped",
			check: func(t *testing.T) {
				ctx := context.Background()
				b := historicalBackend(t, 10)
				execRaw(t, b,
					`INSERT INTO classes (name, name_key, trackable_features_json)
VALUES ('Warlock', 'warlock', '[{"title": "Pact Magic", "recharge": "short_rest"}]')`,
					`INSERT INTO subclasses (class_id, name, name_key, features_json)
SELECT id, 'Fiend Patron', 'fiend patron', '[{"level": 3, "title": "Dark One''s Blessing"}]' FROM classes`,
					`INSERT INTO subclasses (class_id, name, name_key, features_json)
SELECT id, 'Broken Patron', 'broken patron', 'not json' FROM classes`,
				)

				_, err := b.Migrator().EnsureLatest(ctx)
				require.NoError(t, err)

				var levels, trackable string
				require.NoError(t, b.db.QueryRowContext(ctx,
					"SELECT levels_json, trackable_features_json FROM classes WHERE name_key = 'warlock'").Scan(&levels, &trackable))
				for _, raw := range []string{levels, trackable} {
					v, err := types.SubDocVersionOf(raw)
					require.NoError(t, err)
					assert.Equal(t, 1, v, raw)
				}

				warlock, found, err := b.Classes.Get(ctx, "Warlock")
				require.NoError(t, err)
				require.True(t, found)
				require.Len(t, warlock.TrackableFeatures, 1)
				assert.Equal(t, "Pact Magic", warlock.TrackableFeatures[0].Title)

				require.Len(t, warlock.Subclasses, 2)
				byName := map[string]types.Subclass{}
				for _, s := range warlock.Subclasses {
					byName[s.Name] = s
				}
				fiend := byName["Fiend Patron"]
				require.Len(t, fiend.Features, 1)
				assert.Equal(t, 3, fiend.Features[0].Level)
				assert.Equal(t, "Dark One's Blessing", fiend.Features[0].Title)
				assert.Empty(t, byName["Broken Patron"].Features)
			},
		},
		{
			name: "bundled subclasses replace legacy payloads",
			check: func(t *testing.T) {
				ctx := context.Background()
				fsys := testBundle(map[string]string{
					"classes.json": `{"_version": 2, "classes": [{"name": "Wizard", "is_official": true, "subclasses": [
						{"name": "Evoker", "features": [{"level": 3, "title": "Evocation Savant"}]}
					]}]}`,
				})
				b := historicalBackend(t, 10, WithBundle(fsys))
				execRaw(t, b, `UPDATE subclasses SET features_json = '[]' WHERE name_key = 'evoker'`)

				_, err := b.Migrator().EnsureLatest(ctx)
				require.NoError(t, err)

				subs, found, err := b.Classes.Subclasses(ctx, "Wizard")
				require.NoError(t, err)
				require.True(t, found)
				require.Len(t, subs, 1)
				require.Len(t, subs[0].Features, 1)
				assert.Equal(t, "Evocation Savant", subs[0].Features[0].Title)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.check)
	}
}
