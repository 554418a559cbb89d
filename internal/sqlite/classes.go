package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/spellbook/internal/notify"
	"github.com/mesh-intelligence/spellbook/internal/tags"
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// ClassStore is the class collection. Subclasses are written and read with
// their class and can also be managed one at a time.
type ClassStore struct {
	*Store[types.CharacterClass, *types.CharacterClass]
}

func classCodec() codec[types.CharacterClass] {
	return codec[types.CharacterClass]{
		kind:       types.KindClasses,
		docVersion: classesDocVersion,
		columns: []column{
			{"hit_die", ""}, {"primary_ability", ""},
			{"armor_proficiencies_json", ""}, {"weapon_proficiencies_json", ""},
			{"tool_proficiencies_json", ""}, {"saving_throw_proficiencies_json", ""},
			{"skill_proficiency_choices", ""}, {"skill_proficiency_options_json", ""},
			{"starting_equipment_json", ""}, {"starting_equipment_options_json", ""},
			{"starting_gold_alternative", ""}, {"is_spellcaster", ""}, {"spellcasting_ability", ""},
			{"subclass_level", ""}, {"subclass_name", ""}, {"levels_json", ""},
			{"trackable_features_json", ""}, {"class_table_columns_json", ""},
			{"class_spells_json", ""}, {"unarmored_defense", ""},
		},
		encode: encodeClass,
		decode: decodeClass,
		prepare: func(c *types.CharacterClass) {
			if c.Subclasses != nil {
				c.Subclasses = append([]types.Subclass{}, c.Subclasses...)
			}
			for i := range c.Subclasses {
				c.Subclasses[i].ParentClass = c.Name
			}
		},
		children: writeSubclasses,
		hydrate:  hydrateSubclasses,
		searchable: []string{
			"primary_ability", "subclass_name", "spellcasting_ability",
		},
	}
}

func encodeClass(c *types.CharacterClass) ([]any, error) {
	lists := make([]string, 0, 7)
	for _, l := range [][]string{
		c.ArmorProficiencies, c.WeaponProficiencies, c.ToolProficiencies,
		c.SavingThrowProficiencies, c.SkillProficiencyOptions, c.StartingEquipment, c.ClassTableColumns,
	} {
		raw, err := encodeStrings(l)
		if err != nil {
			return nil, err
		}
		lists = append(lists, raw)
	}
	subs := make([]string, 0, 4)
	for _, d := range []types.SubDocument{c.StartingEquipmentOptions, c.Levels, c.TrackableFeatures, c.ClassSpells} {
		raw, err := types.EncodeSubDoc(d)
		if err != nil {
			return nil, err
		}
		subs = append(subs, raw)
	}
	return []any{
		c.HitDie, c.PrimaryAbility,
		lists[0], lists[1], lists[2], lists[3],
		c.SkillProficiencyChoices, lists[4],
		lists[5], subs[0],
		c.StartingGoldAlternative, c.IsSpellcaster, c.SpellcastingAbility,
		c.SubclassLevel, c.SubclassName, subs[1],
		subs[2], lists[6],
		subs[3], c.UnarmoredDefense,
	}, nil
}

func decodeClass(c *types.CharacterClass) ([]any, func() error) {
	var armor, weapon, tool, saves, skillOpts, equipment, equipOpts, levels, trackable, columns, spells string
	dest := []any{
		&c.HitDie, &c.PrimaryAbility,
		&armor, &weapon, &tool, &saves,
		&c.SkillProficiencyChoices, &skillOpts,
		&equipment, &equipOpts,
		&c.StartingGoldAlternative, &c.IsSpellcaster, &c.SpellcastingAbility,
		&c.SubclassLevel, &c.SubclassName, &levels,
		&trackable, &columns,
		&spells, &c.UnarmoredDefense,
	}
	return dest, func() error {
		return firstErr(
			decodeJSONColumn(armor, &c.ArmorProficiencies),
			decodeJSONColumn(weapon, &c.WeaponProficiencies),
			decodeJSONColumn(tool, &c.ToolProficiencies),
			decodeJSONColumn(saves, &c.SavingThrowProficiencies),
			decodeJSONColumn(skillOpts, &c.SkillProficiencyOptions),
			decodeJSONColumn(equipment, &c.StartingEquipment),
			decodeJSONColumn(columns, &c.ClassTableColumns),
			types.DecodeSubDoc(equipOpts, &c.StartingEquipmentOptions),
			types.DecodeSubDoc(levels, &c.Levels),
			types.DecodeSubDoc(trackable, &c.TrackableFeatures),
			types.DecodeSubDoc(spells, &c.ClassSpells),
		)
	}
}

// writeSubclasses replaces the subclasses of class id with those of c.
func writeSubclasses(ctx context.Context, q dbtx, id int64, c *types.CharacterClass) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM subclasses WHERE class_id = ?", id); err != nil {
		return fmt.Errorf("clearing subclasses of %q: %w", c.Name, err)
	}
	for i := range c.Subclasses {
		if _, err := insertSubclass(ctx, q, id, &c.Subclasses[i]); err != nil {
			return err
		}
	}
	return nil
}

// insertSubclass writes one subclass row and reports false on a name
// collision within the class.
func insertSubclass(ctx context.Context, q dbtx, classID int64, s *types.Subclass) (bool, error) {
	bundle, err := types.EncodeSubDoc(s.Bundle())
	if err != nil {
		return false, fmt.Errorf("subclass %q: %w", s.Name, err)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO subclasses
    (class_id, name, name_key, description, source, is_custom, features_json)
    VALUES (?, ?, ?, ?, ?, ?, ?)`,
		classID, s.Name, tags.Key(s.Name), s.Description, s.Source, s.IsCustom, bundle)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inserting subclass %q: %w", s.Name, err)
	}
	return true, nil
}

type subclassRow struct {
	id      int64
	classID int64
	sub     types.Subclass
	bundle  string
}

// querySubclassRows reads subclass rows for the given class ids, in
// insertion order, using one query for the whole set.
func querySubclassRows(ctx context.Context, q dbtx, classIDs []int64) ([]subclassRow, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	set, err := json.Marshal(classIDs)
	if err != nil {
		return nil, fmt.Errorf("encoding id set: %w", err)
	}
	rows, err := q.QueryContext(ctx, `SELECT s.id, s.class_id, s.name, s.description, s.source, s.is_custom,
    s.features_json, c.name
FROM subclasses s JOIN classes c ON c.id = s.class_id
WHERE s.class_id IN (SELECT value FROM json_each(?))
ORDER BY s.id`, string(set))
	if err != nil {
		return nil, fmt.Errorf("querying subclasses: %w", err)
	}
	defer rows.Close()

	var out []subclassRow
	for rows.Next() {
		var r subclassRow
		if err := rows.Scan(&r.id, &r.classID, &r.sub.Name, &r.sub.Description, &r.sub.Source,
			&r.sub.IsCustom, &r.bundle, &r.sub.ParentClass); err != nil {
			return nil, fmt.Errorf("scanning subclass: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeSubclassRow(r *subclassRow) error {
	var bundle types.SubclassBundle
	if err := types.DecodeSubDoc(r.bundle, &bundle); err != nil {
		return fmt.Errorf("subclass %q: %w", r.sub.Name, err)
	}
	r.sub.SetBundle(bundle)
	return nil
}

func hydrateSubclasses(ctx context.Context, q dbtx, ids []int64, classes []*types.CharacterClass) error {
	byID := make(map[int64]*types.CharacterClass, len(ids))
	for i, id := range ids {
		byID[id] = classes[i]
		classes[i].Subclasses = []types.Subclass{}
	}
	rows, err := querySubclassRows(ctx, q, ids)
	if err != nil {
		return err
	}
	for i := range rows {
		if err := decodeSubclassRow(&rows[i]); err != nil {
			return err
		}
		c := byID[rows[i].classID]
		c.Subclasses = append(c.Subclasses, rows[i].sub)
	}
	return nil
}

// Subclasses returns the subclasses of the named class. The boolean is false
// when the class does not exist.
func (s *ClassStore) Subclasses(ctx context.Context, class string) ([]types.Subclass, bool, error) {
	c, found, err := s.Get(ctx, class)
	if err != nil || !found {
		return nil, false, err
	}
	return c.Subclasses, true, nil
}

// AddSubclass attaches sub to the named class. It returns false when the
// class does not exist or already has a subclass with that name.
func (s *ClassStore) AddSubclass(ctx context.Context, class string, sub types.Subclass) (bool, error) {
	if err := sub.Validate(); err != nil {
		return false, fmt.Errorf("invalid subclass: %w", err)
	}
	var added bool
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		id, found, err := s.idOf(ctx, tx, class)
		if err != nil || !found {
			return err
		}
		added, err = insertSubclass(ctx, tx, id, &sub)
		return err
	})
	if err != nil || !added {
		return false, err
	}
	s.publish(notify.OpUpdate, class)
	return true, nil
}

// UpdateSubclass replaces the subclass name of the named class.
func (s *ClassStore) UpdateSubclass(ctx context.Context, class, name string, sub types.Subclass) (bool, error) {
	if err := sub.Validate(); err != nil {
		return false, fmt.Errorf("invalid subclass: %w", err)
	}
	bundle, err := types.EncodeSubDoc(sub.Bundle())
	if err != nil {
		return false, err
	}
	var updated bool
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		id, found, err := s.idOf(ctx, tx, class)
		if err != nil || !found {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE subclasses
    SET name = ?, name_key = ?, description = ?, source = ?, is_custom = ?, features_json = ?
    WHERE class_id = ? AND name_key = ?`,
			sub.Name, tags.Key(sub.Name), sub.Description, sub.Source, sub.IsCustom, bundle, id, tags.Key(name))
		if isUniqueViolation(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("updating subclass %q: %w", name, err)
		}
		n, err := res.RowsAffected()
		updated = n > 0
		return err
	})
	if err != nil || !updated {
		return false, err
	}
	s.publish(notify.OpUpdate, class)
	return true, nil
}

// RemoveSubclass deletes one subclass of the named class.
func (s *ClassStore) RemoveSubclass(ctx context.Context, class, name string) (bool, error) {
	var removed bool
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM subclasses
    WHERE name_key = ? AND class_id = (SELECT id FROM classes WHERE name_key = ?)`,
			tags.Key(name), tags.Key(class))
		if err != nil {
			return fmt.Errorf("deleting subclass %q: %w", name, err)
		}
		n, err := res.RowsAffected()
		removed = n > 0
		return err
	})
	if err != nil || !removed {
		return false, err
	}
	s.publish(notify.OpUpdate, class)
	return true, nil
}
