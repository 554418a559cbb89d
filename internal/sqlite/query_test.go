package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// seedSearchFixture stores spells A:[Fire], B:[Fire, AOE], C:[AOE], D:[Cold].
func seedSearchFixture(t *testing.T, b *Backend) {
	t.Helper()
	ctx := context.Background()

	a := testSpell("A", 1, "Fire")
	a.RangeValue = types.RangeSight
	a.Components = "V"
	bb := testSpell("B", 2, "Fire", "AOE")
	bb.RangeValue = types.RangeTouch
	bb.Ritual = true
	c := testSpell("C", 3, "AOE")
	c.RangeValue = 10
	c.Classes = []string{"Druid"}
	c.Source = "Other"
	d := testSpell("D", 3, "Cold")
	d.RangeValue = -1
	d.Concentration = true
	d.Components = "V, S, M (a feather)"
	d.CastingTime = "1 minute"
	d.IsLegacy = true

	n, err := b.Spells.BulkInsert(ctx, []types.Spell{a, bb, c, d})
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestSpellSearch(t *testing.T) {
	b := emptyBackend(t)
	seedSearchFixture(t, b)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter types.SpellFilter
		want   []string
		errIs  error
	}{
		{name: "no constraints", filter: types.SpellFilter{}, want: []string{"A", "B", "C", "D"}},
		{
			name:   "has_all",
			filter: types.SpellFilter{Tags: []string{"Fire", "AOE"}, TagMode: types.TagsHasAll},
			want:   []string{"B"},
		},
		{
			name:   "has_any",
			filter: types.SpellFilter{Tags: []string{"Fire", "AOE"}, TagMode: types.TagsHasAny},
			want:   []string{"A", "B", "C"},
		},
		{
			name:   "has_none",
			filter: types.SpellFilter{Tags: []string{"Fire", "AOE"}, TagMode: types.TagsHasNone},
			want:   []string{"D"},
		},
		{
			name:   "requested tags are normalized",
			filter: types.SpellFilter{Tags: []string{"fire", " aoe ", "FIRE"}},
			want:   []string{"B"},
		},
		{name: "text matches tags", filter: types.SpellFilter{Text: "col"}, want: []string{"D"}},
		{name: "text matches name", filter: types.SpellFilter{Text: "b"}, want: []string{"B"}},
		{name: "level", filter: types.SpellFilter{Level: types.Ptr(3)}, want: []string{"C", "D"}},
		{name: "class ignores case", filter: types.SpellFilter{Class: "druid"}, want: []string{"C"}},
		{name: "ritual", filter: types.SpellFilter{Ritual: types.Ptr(true)}, want: []string{"B"}},
		{name: "not ritual", filter: types.SpellFilter{Ritual: types.Ptr(false)}, want: []string{"A", "C", "D"}},
		{name: "concentration", filter: types.SpellFilter{Concentration: types.Ptr(true)}, want: []string{"D"}},
		{name: "legacy", filter: types.SpellFilter{Legacy: types.Ptr(false)}, want: []string{"A", "B", "C"}},
		{
			name:   "sight and touch always reach",
			filter: types.SpellFilter{MinRange: 30},
			want:   []string{"A", "B", "D"},
		},
		{name: "miles reach far", filter: types.SpellFilter{MinRange: 5280}, want: []string{"A", "B", "D"}},
		{name: "source is exact", filter: types.SpellFilter{Source: "Other"}, want: []string{"C"}},
		{name: "casting time is exact", filter: types.SpellFilter{CastingTime: "1 minute"}, want: []string{"D"}},
		{name: "source ignores case", filter: types.SpellFilter{Source: "OTHER"}, want: []string{"C"}},
		{name: "casting time ignores case", filter: types.SpellFilter{CastingTime: "1 Minute"}, want: []string{"D"}},
		{name: "duration ignores case", filter: types.SpellFilter{Duration: "INSTANTANEOUS"}, want: []string{"A", "B", "C", "D"}},
		{name: "material", filter: types.SpellFilter{Material: types.Ptr(true)}, want: []string{"D"}},
		{name: "not somatic", filter: types.SpellFilter{Somatic: types.Ptr(false)}, want: []string{"A"}},
		{
			name:   "constraints combine",
			filter: types.SpellFilter{Level: types.Ptr(3), Tags: []string{"AOE"}, TagMode: types.TagsHasNone},
			want:   []string{"D"},
		},
		{name: "bad level", filter: types.SpellFilter{Level: types.Ptr(12)}, errIs: types.ErrInvalidFilter},
		{name: "bad range", filter: types.SpellFilter{MinRange: -5}, errIs: types.ErrInvalidFilter},
		{
			name:   "bad tag mode",
			filter: types.SpellFilter{Tags: []string{"Fire"}, TagMode: types.TagMode(9)},
			errIs:  types.ErrInvalidFilter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Spells.Search(ctx, tt.filter)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, spellNames(got))

			ids, err := b.Spells.SearchIDs(ctx, tt.filter)
			require.NoError(t, err)
			want := make([]int64, len(got))
			for i, s := range got {
				want[i] = s.ID
			}
			assert.Equal(t, want, ids, "SearchIDs agrees with Search")
		})
	}
}

func TestHydrationMatchesPerRecordLookup(t *testing.T) {
	ctx := context.Background()
	b := emptyBackend(t)
	seedSearchFixture(t, b)
	bare := testSpell("Bare", 0)
	bare.Classes = []string{}
	_, err := b.Spells.Add(ctx, bare)
	require.NoError(t, err)
	_, err = b.db.Exec("DELETE FROM spell_tags WHERE spell_id = (SELECT id FROM spells WHERE name = 'Bare')")
	require.NoError(t, err)

	spells, err := b.Spells.All(ctx)
	require.NoError(t, err)
	require.Len(t, spells, 5)
	for _, s := range spells {
		assert.Equal(t, naiveValues(t, b.db, "SELECT class_name FROM spell_classes WHERE spell_id = ? ORDER BY id", s.ID), s.Classes, s.Name)
		assert.Equal(t, naiveValues(t, b.db, "SELECT tag FROM spell_tags WHERE spell_id = ? ORDER BY id", s.ID), s.Tags, s.Name)
	}

	out, err := hydrateJunction(ctx, b.db, spellTags, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func naiveValues(t *testing.T, db *sql.DB, query string, id int64) []string {
	t.Helper()
	rows, err := db.Query(query, id)
	require.NoError(t, err)
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		out = append(out, v)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestSpellLookups(t *testing.T) {
	ctx := context.Background()
	b := emptyBackend(t)
	seedSearchFixture(t, b)

	ranges, err := b.Spells.Ranges(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{types.RangeTouch, 10, types.RangeSight, -1}, ranges)

	times, err := b.Spells.CastingTimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1 minute", "Action"}, times)

	classes, err := b.Spells.ClassNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Druid", "Wizard"}, classes)

	tagList, err := b.Spells.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AOE", "Cold", "Fire", "Unofficial"}, tagList)
}
