package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeLabel(t *testing.T) {
	tests := []struct {
		value int
		want  string
	}{
		{RangeSelf, "Self"},
		{RangeSight, "Sight"},
		{RangeSpecial, "Special"},
		{RangeTouch, "Touch"},
		{30, "30 feet"},
		{-1, "1 mile"},
		{-5, "5 miles"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, RangeLabel(tt.value))
			got, err := ParseRange(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestParseRangeAbbreviations(t *testing.T) {
	got, err := ParseRange("120 ft.")
	require.NoError(t, err)
	assert.Equal(t, 120, got)

	got, err = ParseRange("2 mi")
	require.NoError(t, err)
	assert.Equal(t, -2, got)

	_, err = ParseRange("far")
	assert.Error(t, err)
	_, err = ParseRange("10 leagues")
	assert.Error(t, err)
}

func TestSortRanges(t *testing.T) {
	values := []int{-10, 120, RangeSight, 30, RangeSpecial, -1, RangeTouch, RangeSelf, 60}
	SortRanges(values)
	assert.Equal(t, []int{RangeSelf, RangeTouch, 30, 60, 120, RangeSpecial, RangeSight, -1, -10}, values)
}

func TestSpellValidate(t *testing.T) {
	s := &Spell{Content: Content{Name: "Fireball"}, Level: 3}
	assert.NoError(t, s.Validate())

	s.Level = 10
	assert.ErrorIs(t, s.Validate(), ErrInvalidLevel)

	s = &Spell{Content: Content{Name: "  "}}
	assert.ErrorIs(t, s.Validate(), ErrInvalidName)
}

func TestSpellHasComponent(t *testing.T) {
	s := &Spell{Components: "v, s, M (a tiny ball of bat guano)"}
	assert.True(t, s.HasComponent('V'))
	assert.True(t, s.HasComponent('S'))
	assert.True(t, s.HasComponent('M'))

	s.Components = "V"
	assert.False(t, s.HasComponent('S'))
}

func TestAbilityModifier(t *testing.T) {
	for score, want := range map[int]int{1: -5, 7: -2, 8: -1, 9: -1, 10: 0, 11: 0, 12: 1, 20: 5, 30: 10} {
		assert.Equal(t, want, AbilityModifier(score), "score %d", score)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"spells", KindSpells},
		{"Spell", KindSpells},
		{"class", KindClasses},
		{"classes", KindClasses},
		{"feat", KindFeats},
		{"stat_block", KindStatBlocks},
		{"backgrounds", KindBackgrounds},
		{"lineage", KindLineages},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseKind("monsters")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseFlag(t *testing.T) {
	for f := FlagOfficial; f <= FlagCurrent; f++ {
		got, err := ParseFlag(strings.ToUpper(f.String()))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseFlag("homebrew")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
