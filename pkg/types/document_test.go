package types

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLineages() []Lineage {
	return []Lineage{
		{
			Content:      Content{Name: "Elf", Source: "Player's Handbook (2024)", IsOfficial: true},
			CreatureType: "Humanoid",
			Size:         "Medium",
			Speed:        30,
			Traits:       Features{{Name: "Darkvision", Description: "60 feet."}},
		},
		{
			Content:      Content{Name: "Dwarf", IsCustom: true},
			CreatureType: "Humanoid",
			Size:         "Medium",
			Speed:        30,
			Traits:       Features{},
		},
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML, FormatJSONL} {
		t.Run(string(format), func(t *testing.T) {
			doc, err := NewDocument(KindLineages, 2, sampleLineages())
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, doc.Write(&buf, format))

			back, err := ReadDocument(&buf, KindLineages, format)
			require.NoError(t, err)
			require.Len(t, back.Records, 2)
			if format != FormatJSONL {
				assert.Equal(t, 2, back.Version)
			}

			for i, raw := range back.Records {
				got, err := DecodeRecord[Lineage](raw)
				require.NoError(t, err)
				assert.Equal(t, sampleLineages()[i], got)
			}
		})
	}
}

func TestReadDocumentKeyedClasses(t *testing.T) {
	in := `{"_version": 2, "classes": {"Wizard": {"hit_die": "d6"}, "Bard": {"name": "Bard", "hit_die": "d8"}}}`
	doc, err := ReadDocument(strings.NewReader(in), KindClasses, FormatJSON)
	require.NoError(t, err)
	require.Len(t, doc.Records, 2)

	bard, err := DecodeRecord[CharacterClass](doc.Records[0])
	require.NoError(t, err)
	assert.Equal(t, "Bard", bard.Name)

	wizard, err := DecodeRecord[CharacterClass](doc.Records[1])
	require.NoError(t, err)
	assert.Equal(t, "Wizard", wizard.Name)
	assert.Equal(t, "d6", wizard.HitDie)
}

func TestReadDocumentErrors(t *testing.T) {
	_, err := ReadDocument(strings.NewReader(`{"feats": []}`), KindSpells, FormatJSON)
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = ReadDocument(strings.NewReader(`not json`), KindSpells, FormatJSON)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = ReadDocument(strings.NewReader(`{}`), KindSpells, Format("xml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDecodeRecordMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid JSON", `{"name": "Fireball",`},
		{"missing name", `{"level": 3}`},
		{"level out of range", `{"name": "Wish", "level": 12}`},
		{"not an object", `["Fireball"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord[Spell]([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("feats.yml"))
	assert.Equal(t, FormatYAML, FormatFromPath("feats.YAML"))
	assert.Equal(t, FormatJSONL, FormatFromPath("feats.jsonl"))
	assert.Equal(t, FormatJSON, FormatFromPath("feats.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("feats"))
}
