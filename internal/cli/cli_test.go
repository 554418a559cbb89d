package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/spellbook/pkg/types"
)

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	res := env.mustRun("version")
	assert.Contains(t, res.stdout, "spellbook v")
	assert.Contains(t, res.stdout, "schema: 11")
	assert.NoDirExists(t, env.dataDir, "version must not touch the store")
}

func TestInitAndMigrate(t *testing.T) {
	env := newTestEnv(t)

	res := env.mustRun("init")
	assert.Contains(t, res.stdout, "Spellbook initialized at "+filepath.Join(env.dataDir, "spellbook.db"))
	assert.Contains(t, res.stdout, "(schema version 11)")
	assert.Contains(t, res.stdout, "seeded 15 spells")
	assert.FileExists(t, filepath.Join(env.configDir, "config.yaml"))

	res = env.mustRun("migrate")
	assert.Equal(t, "Schema is up to date (version 11)\n", res.stdout)

	res = env.mustRun("--json", "migrate")
	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rep))
	assert.EqualValues(t, 11, rep["to"])
	assert.Equal(t, false, rep["fresh"])
}

func TestMigrateFreshStore(t *testing.T) {
	env := newTestEnv(t)
	res := env.mustRun("migrate")
	assert.Equal(t, "Created store at schema version 11\n", res.stdout)
}

func TestSpellSearch(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantContains []string
		wantMissing  []string
		wantCode     int
	}{
		{
			name:         "level and tag",
			args:         []string{"spells", "search", "--level", "3", "--tag", "fire"},
			wantContains: []string{"LEVEL", "Fireball", "150 feet", "Total: 1 spell(s)"},
			wantMissing:  []string{"Sending"},
		},
		{
			name:         "ritual flag",
			args:         []string{"spells", "search", "--ritual"},
			wantContains: []string{"Detect Magic", "Find Familiar", "Total: 2 spell(s)"},
		},
		{
			name:         "non-ritual flag",
			args:         []string{"spells", "search", "--ritual=false", "--level", "1"},
			wantContains: []string{"Magic Missile", "Shield"},
			wantMissing:  []string{"Detect Magic", "Find Familiar"},
		},
		{
			name:         "mile range label",
			args:         []string{"spells", "search", "--level", "3", "--min-range", "1 mile"},
			wantContains: []string{"Clairvoyance", "Total: 1 spell(s)"},
		},
		{
			name:         "text search",
			args:         []string{"spells", "search", "summon"},
			wantContains: []string{"Find Familiar", "Summon Beast", "Summon Fey", "Total: 3 spell(s)"},
		},
		{
			name:         "no match",
			args:         []string{"spells", "search", "no such spell anywhere"},
			wantContains: []string{"No spells found."},
		},
		{
			name:     "unknown tag mode",
			args:     []string{"spells", "search", "--tag", "fire", "--tag-mode", "most"},
			wantCode: exitUserError,
		},
		{
			name:     "range that is not a distance",
			args:     []string{"spells", "search", "--min-range", "Touch"},
			wantCode: exitUserError,
		},
	}

	env := newTestEnv(t)
	env.mustRun("init")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.run(tt.args...)
			require.Equal(t, tt.wantCode, res.exitCode, "err: %v", res.err)
			for _, s := range tt.wantContains {
				assert.Contains(t, res.stdout, s)
			}
			for _, s := range tt.wantMissing {
				assert.NotContains(t, res.stdout, s)
			}
		})
	}
}

func TestSpellSearchJSON(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")

	res := env.mustRun("--json", "spells", "search", "--tag", "fire")
	var spells []types.Spell
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &spells))
	require.Len(t, spells, 1)
	assert.Equal(t, "Fireball", spells[0].Name)

	res = env.mustRun("--json", "spells", "search", "--ids", "--tag", "fire")
	var ids []int64
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &ids))
	assert.Len(t, ids, 1)
}

func TestGetAndList(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")

	res := env.mustRun("get", "spell", "fireball")
	var spell types.Spell
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &spell))
	assert.Equal(t, "Fireball", spell.Name)
	assert.Equal(t, 3, spell.Level)

	res = env.mustRun("get", "stat_blocks", "summon beast")
	assert.Contains(t, res.stdout, "Bestial Spirit")

	res = env.mustRun("list", "feats")
	assert.Contains(t, res.stdout, "NAME")
	assert.Contains(t, res.stdout, "Alert")
	assert.Contains(t, res.stdout, "official")
	assert.Contains(t, res.stdout, "Total: 3")

	res = env.mustRun("--json", "list", "classes")
	var classes []types.CharacterClass
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &classes))
	assert.Len(t, classes, 2)

	res = env.run("get", "feat", "Tough")
	assert.Equal(t, exitUserError, res.exitCode)
	assert.ErrorContains(t, res.err, "not found")

	res = env.run("list", "potions")
	assert.Equal(t, exitUserError, res.exitCode)
	assert.ErrorIs(t, res.err, types.ErrUnknownKind)
}

func TestRemoveSourcesAndTags(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")

	res := env.mustRun("remove", "feat", "alert")
	assert.Contains(t, res.stdout, "Removed feats alert")
	assert.Equal(t, exitUserError, env.run("get", "feat", "Alert").exitCode)
	assert.Equal(t, exitUserError, env.run("remove", "feat", "alert").exitCode)

	res = env.run("remove", "stat_blocks", "Bestial Spirit")
	assert.Equal(t, exitUserError, res.exitCode)
	assert.ErrorContains(t, res.err, "not supported")

	res = env.mustRun("sources", "spells")
	assert.Contains(t, res.stdout, "Player's Handbook (2024)")

	res = env.mustRun("tags")
	assert.Contains(t, res.stdout, "Fire\n")
	assert.Contains(t, res.stdout, "Official\n")
}

func TestExportImport(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")

	exported := filepath.Join(t.TempDir(), "lineages.yaml")
	res := env.mustRun("export", "lineages", exported)
	assert.Contains(t, res.stdout, "Exported lineages to "+exported)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(data), "lineages:")

	custom := filepath.Join(t.TempDir(), "homebrew.json")
	require.NoError(t, os.WriteFile(custom, []byte(`{"_version": 1, "spells": [
		{"name": "Frost Lance", "level": 2, "source": "Homebrew", "range_value": 60, "tags": ["cold"]},
		{"name": "Fireball", "level": 9, "source": "Homebrew"}
	]}`), 0o644))

	res = env.mustRun("import", "spells", custom)
	assert.Contains(t, res.stdout, "Imported 1 spells")

	res = env.mustRun("get", "spell", "frost lance")
	var spell types.Spell
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &spell))
	assert.True(t, spell.IsCustom)
	assert.False(t, spell.IsOfficial)
	assert.Equal(t, []string{"Cold", "Unofficial"}, spell.Tags)

	res = env.mustRun("get", "spell", "fireball")
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &spell))
	assert.Equal(t, 3, spell.Level, "collisions are skipped")

	res = env.mustRun("list", "spells", "--flag", "custom")
	assert.Contains(t, res.stdout, "Frost Lance")
	assert.Contains(t, res.stdout, "custom")
	assert.Contains(t, res.stdout, "Total: 1")

	assert.Equal(t, exitUserError, env.run("list", "spells", "--flag", "homebrew").exitCode)
	assert.Equal(t, exitUserError, env.run("list", "stat_blocks", "--flag", "custom").exitCode)

	res = env.run("import", "spells", filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, exitUserError, res.exitCode)
	assert.ErrorIs(t, res.err, os.ErrNotExist)
}

func TestSpellRestore(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")

	res := env.mustRun("spells", "restore", "--all")
	assert.Equal(t, "Restored 0 spell(s)\n", res.stdout)

	res = env.mustRun("spells", "restore", "Fireball")
	assert.Equal(t, "Restored Fireball\n", res.stdout)

	assert.Equal(t, exitUserError, env.run("spells", "restore", "Frost Lance").exitCode)
	assert.Equal(t, exitUserError, env.run("spells", "restore").exitCode)
	assert.Equal(t, exitUserError, env.run("spells", "restore", "Fireball", "--all").exitCode)
}

func TestStoreFailureIsSystemError(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.dataDir, []byte("not a directory"), 0o644))

	res := env.run("list", "spells")
	assert.Equal(t, exitSysError, res.exitCode)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitSuccess},
		{"user error", userError(errors.New("bad input")), exitUserError},
		{"system error", sysError(errors.New("disk full")), exitSysError},
		{"plain error", errors.New("unknown flag"), exitUserError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExecuteReturnsExitCode(t *testing.T) {
	saved := os.Args
	t.Cleanup(func() { os.Args = saved })
	os.Args = []string{"spellbook", "no-such-command"}

	assert.Equal(t, exitUserError, Execute())
}
