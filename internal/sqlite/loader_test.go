// Unit tests for bundled document loading with forward compatibility.
package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/spellbook/internal/bundle"
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

func TestBundleSourceDocument(t *testing.T) {
	tests := []struct {
		name        string
		fsys        map[string]string
		kind        types.Kind
		wantRecords int
		wantVersion int
		wantErr     error
	}{
		{
			name:        "unknown fields are tolerated",
			fsys:        map[string]string{"feats.json": `{"_version": 3, "feats": [{"name": "Lucky", "rarity": "rare"}]}`},
			kind:        types.KindFeats,
			wantRecords: 1,
			wantVersion: 3,
		},
		{
			name:        "missing file is an empty document",
			fsys:        map[string]string{},
			kind:        types.KindLineages,
			wantRecords: 0,
		},
		{
			name:    "file without the collection key",
			fsys:    map[string]string{"spells.json": `{"feats": []}`},
			kind:    types.KindSpells,
			wantErr: types.ErrKindMismatch,
		},
		{
			name:    "file that is not JSON",
			fsys:    map[string]string{"spells.json": `spells: []`},
			kind:    types.KindSpells,
			wantErr: types.ErrMalformedRecord,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := bundleSource{fsys: testBundle(tt.fsys)}.document(tt.kind)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, doc.Kind)
			assert.Len(t, doc.Records, tt.wantRecords)
			assert.Equal(t, tt.wantVersion, doc.Version)
		})
	}
}

func TestBundleSourceWithoutFiles(t *testing.T) {
	src := bundleSource{}
	doc, err := src.document(types.KindClasses)
	require.NoError(t, err)
	assert.Empty(t, doc.Records)

	corrections, err := src.corrections()
	require.NoError(t, err)
	assert.Empty(t, corrections)
}

func TestEmbeddedBundleParses(t *testing.T) {
	src := bundleSource{fsys: bundle.Files()}
	for _, kind := range types.Kinds {
		doc, err := src.document(kind)
		require.NoError(t, err, kind)
		assert.NotEmpty(t, doc.Records, kind)
	}
	corrections, err := src.corrections()
	require.NoError(t, err)
	assert.NotEmpty(t, corrections)
}

func TestSpellCorrections(t *testing.T) {
	t.Run("parse", func(t *testing.T) {
		src := bundleSource{fsys: testBundle(map[string]string{
			correctionsFile: `{"corrections": [{"name": "Shield", "range_value": 0, "duration": "1 round"}]}`,
		})}
		corrections, err := src.corrections()
		require.NoError(t, err)
		require.Len(t, corrections, 1)

		sets, args := corrections[0].assignments()
		assert.Equal(t, []string{"duration = ?", "range_value = ?"}, sets)
		assert.Equal(t, []any{"1 round", 0}, args)
	})

	t.Run("malformed", func(t *testing.T) {
		src := bundleSource{fsys: testBundle(map[string]string{correctionsFile: `{"corrections": {}}`})}
		_, err := src.corrections()
		assert.ErrorIs(t, err, types.ErrMalformedRecord)
	})

	t.Run("out of range level is ignored", func(t *testing.T) {
		level := 12
		sets, _ := spellCorrection{Name: "Wish", Level: &level}.assignments()
		assert.Empty(t, sets)
	})
}
