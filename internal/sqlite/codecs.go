package sqlite

import (
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// Document format versions written on export.
const (
	lineagesDocVersion    = 2
	featsDocVersion       = 2
	backgroundsDocVersion = 1
	classesDocVersion     = 2
)

func lineageCodec() codec[types.Lineage] {
	return codec[types.Lineage]{
		kind:       types.KindLineages,
		docVersion: lineagesDocVersion,
		columns:    []column{{"creature_type", ""}, {"size", ""}, {"speed", ""}, {"traits_json", ""}},
		encode: func(l *types.Lineage) ([]any, error) {
			traits, err := types.EncodeSubDoc(l.Traits)
			if err != nil {
				return nil, err
			}
			return []any{l.CreatureType, l.Size, l.Speed, traits}, nil
		},
		decode: func(l *types.Lineage) ([]any, func() error) {
			var traits string
			return []any{&l.CreatureType, &l.Size, &l.Speed, &traits}, func() error {
				return types.DecodeSubDoc(traits, &l.Traits)
			}
		},
		searchable: []string{"creature_type", "size"},
	}
}

func featCodec() codec[types.Feat] {
	return codec[types.Feat]{
		kind:       types.KindFeats,
		docVersion: featsDocVersion,
		columns: []column{
			{"type", ""}, {"is_spellcasting", ""}, {"spell_lists_json", ""},
			{"spells_num_json", ""}, {"has_prereq", ""}, {"prereq", ""}, {"set_spells_json", ""},
		},
		encode: func(f *types.Feat) ([]any, error) {
			lists, err := encodeStrings(f.SpellLists)
			if err != nil {
				return nil, err
			}
			num, err := encodeJSON(f.SpellsNum)
			if err != nil {
				return nil, err
			}
			set, err := encodeStrings(f.SetSpells)
			if err != nil {
				return nil, err
			}
			return []any{f.Type, f.IsSpellcasting, lists, num, f.HasPrereq, f.Prereq, set}, nil
		},
		decode: func(f *types.Feat) ([]any, func() error) {
			var lists, num, set string
			return []any{&f.Type, &f.IsSpellcasting, &lists, &num, &f.HasPrereq, &f.Prereq, &set}, func() error {
				return firstErr(
					decodeJSONColumn(lists, &f.SpellLists),
					decodeJSONColumn(num, &f.SpellsNum),
					decodeJSONColumn(set, &f.SetSpells),
				)
			}
		},
		searchable: []string{"type", "prereq"},
	}
}

func backgroundCodec() codec[types.Background] {
	return codec[types.Background]{
		kind:       types.KindBackgrounds,
		docVersion: backgroundsDocVersion,
		columns: []column{
			{"skills_json", ""}, {"other_proficiencies_json", ""}, {"ability_scores_json", ""},
			{"feats_json", ""}, {"equipment", ""}, {"features_json", ""},
		},
		encode: func(b *types.Background) ([]any, error) {
			vals := make([]any, 0, 6)
			for _, list := range [][]string{b.Skills, b.OtherProficiencies, b.AbilityScores, b.Feats} {
				raw, err := encodeStrings(list)
				if err != nil {
					return nil, err
				}
				vals = append(vals, raw)
			}
			features, err := types.EncodeSubDoc(b.Features)
			if err != nil {
				return nil, err
			}
			return append(vals, b.Equipment, features), nil
		},
		decode: func(b *types.Background) ([]any, func() error) {
			var skills, other, scores, feats, features string
			return []any{&skills, &other, &scores, &feats, &b.Equipment, &features}, func() error {
				return firstErr(
					decodeJSONColumn(skills, &b.Skills),
					decodeJSONColumn(other, &b.OtherProficiencies),
					decodeJSONColumn(scores, &b.AbilityScores),
					decodeJSONColumn(feats, &b.Feats),
					types.DecodeSubDoc(features, &b.Features),
				)
			}
		},
		searchable: []string{"equipment"},
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
