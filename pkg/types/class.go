package types

import (
	"fmt"
	"strings"
)

// CharacterClass is a class template. Subclasses are owned children stored
// alongside the class and removed with it.
type CharacterClass struct {
	Content
	HitDie                   string            `json:"hit_die"`
	PrimaryAbility           string            `json:"primary_ability"`
	ArmorProficiencies       []string          `json:"armor_proficiencies"`
	WeaponProficiencies      []string          `json:"weapon_proficiencies"`
	ToolProficiencies        []string          `json:"tool_proficiencies"`
	SavingThrowProficiencies []string          `json:"saving_throw_proficiencies"`
	SkillProficiencyChoices  int               `json:"skill_proficiency_choices"`
	SkillProficiencyOptions  []string          `json:"skill_proficiency_options"`
	StartingEquipment        []string          `json:"starting_equipment"`
	StartingEquipmentOptions EquipmentOptions  `json:"starting_equipment_options"`
	StartingGoldAlternative  string            `json:"starting_gold_alternative"`
	IsSpellcaster            bool              `json:"is_spellcaster"`
	SpellcastingAbility      string            `json:"spellcasting_ability"`
	SubclassLevel            int               `json:"subclass_level"`
	SubclassName             string            `json:"subclass_name"`
	Levels                   ClassLevels       `json:"levels"`
	TrackableFeatures        TrackableFeatures `json:"trackable_features"`
	ClassTableColumns        []string          `json:"class_table_columns"`
	ClassSpells              ClassSpells       `json:"class_spells"`
	UnarmoredDefense         string            `json:"unarmored_defense"`
	Subclasses               []Subclass        `json:"subclasses"`
}

// Validate checks the class, its sub-documents, and that subclass names are
// unique within the class.
func (c *CharacterClass) Validate() error {
	if err := c.Content.Validate(); err != nil {
		return err
	}
	for _, sub := range []SubDocument{c.StartingEquipmentOptions, c.Levels, c.TrackableFeatures, c.ClassSpells} {
		if err := sub.Validate(); err != nil {
			return err
		}
	}
	seen := make(map[string]bool, len(c.Subclasses))
	for i := range c.Subclasses {
		s := &c.Subclasses[i]
		if err := s.Validate(); err != nil {
			return fmt.Errorf("subclass %q: %w", s.Name, err)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return fmt.Errorf("duplicate subclass %q", s.Name)
		}
		seen[key] = true
	}
	return nil
}

// Subclass is a class specialization. Its feature bundle is stored as one
// sub-document because its shape varies per class.
type Subclass struct {
	Name                string            `json:"name"`
	ParentClass         string            `json:"parent_class"`
	Description         string            `json:"description"`
	Source              string            `json:"source"`
	IsCustom            bool              `json:"is_custom"`
	Features            []SubclassFeature `json:"features"`
	SubclassSpells      []SubclassSpell   `json:"subclass_spells"`
	ArmorProficiencies  []string          `json:"armor_proficiencies"`
	WeaponProficiencies []string          `json:"weapon_proficiencies"`
	UnarmoredDefense    string            `json:"unarmored_defense"`
	TrackableFeatures   TrackableFeatures `json:"trackable_features"`
}

// Validate checks the name and feature bundle.
func (s *Subclass) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrInvalidName
	}
	return s.Bundle().Validate()
}

// Bundle extracts the stored feature bundle.
func (s *Subclass) Bundle() SubclassBundle {
	return SubclassBundle{
		Features:            s.Features,
		SubclassSpells:      s.SubclassSpells,
		ArmorProficiencies:  s.ArmorProficiencies,
		WeaponProficiencies: s.WeaponProficiencies,
		UnarmoredDefense:    s.UnarmoredDefense,
		TrackableFeatures:   s.TrackableFeatures,
	}
}

// SetBundle copies a stored feature bundle onto the subclass.
func (s *Subclass) SetBundle(b SubclassBundle) {
	s.Features = b.Features
	s.SubclassSpells = b.SubclassSpells
	s.ArmorProficiencies = b.ArmorProficiencies
	s.WeaponProficiencies = b.WeaponProficiencies
	s.UnarmoredDefense = b.UnarmoredDefense
	s.TrackableFeatures = b.TrackableFeatures
}

// SubclassBundle is the versioned sub-document holding a subclass's
// features, spell grants, and proficiency overrides.
type SubclassBundle struct {
	Features            []SubclassFeature `json:"features"`
	SubclassSpells      []SubclassSpell   `json:"subclass_spells"`
	ArmorProficiencies  []string          `json:"armor_proficiencies"`
	WeaponProficiencies []string          `json:"weapon_proficiencies"`
	UnarmoredDefense    string            `json:"unarmored_defense"`
	TrackableFeatures   TrackableFeatures `json:"trackable_features"`
}

func (SubclassBundle) SubDocVersion() int { return 1 }

func (b SubclassBundle) Validate() error {
	for _, f := range b.Features {
		if f.Level < 1 || f.Level > 20 {
			return fmt.Errorf("feature %q has level %d", f.Title, f.Level)
		}
	}
	for _, sp := range b.SubclassSpells {
		if sp.SpellName == "" {
			return fmt.Errorf("subclass spell without a name")
		}
	}
	return b.TrackableFeatures.Validate()
}

// SubclassFeature is a feature gained at a subclass level.
type SubclassFeature struct {
	Level       int              `json:"level"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Tables      []map[string]any `json:"tables,omitempty"`
}

// SubclassSpell is an always-prepared spell granted at a class level.
type SubclassSpell struct {
	SpellName   string `json:"spell_name"`
	LevelGained int    `json:"level_gained"`
}

// ClassSpell is a spell granted by a class feature.
type ClassSpell struct {
	SpellName      string `json:"spell_name"`
	LevelGained    int    `json:"level_gained"`
	AlwaysPrepared bool   `json:"always_prepared"`
}

// ClassSpells is the class spell grant sub-document.
type ClassSpells []ClassSpell

func (ClassSpells) SubDocVersion() int { return 1 }

func (c ClassSpells) Validate() error {
	for _, sp := range c {
		if sp.SpellName == "" {
			return fmt.Errorf("class spell without a name")
		}
	}
	return nil
}

// TrackableFeature is a limited-use resource such as Rage or Ki.
type TrackableFeature struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	TrackedValue string      `json:"tracked_value"`
	HasUses      bool        `json:"has_uses"`
	MaxUses      int         `json:"max_uses"`
	Recharge     string      `json:"recharge"`
	LevelScaling map[int]int `json:"level_scaling,omitempty"`
}

// TrackableFeatures is the trackable resource sub-document.
type TrackableFeatures []TrackableFeature

func (TrackableFeatures) SubDocVersion() int { return 1 }

func (t TrackableFeatures) Validate() error {
	for _, f := range t {
		if f.Title == "" {
			return fmt.Errorf("trackable feature without a title")
		}
		switch f.Recharge {
		case "", "short_rest", "long_rest", "dawn", "never":
		default:
			return fmt.Errorf("trackable feature %q has unknown recharge %q", f.Title, f.Recharge)
		}
	}
	return nil
}

// ClassAbility is a feature listed in the class level table.
type ClassAbility struct {
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	IsSubclassFeature bool             `json:"is_subclass_feature"`
	SubclassName      string           `json:"subclass_name,omitempty"`
	Tables            []map[string]any `json:"tables,omitempty"`
}

// ClassLevel is one row of the class table.
type ClassLevel struct {
	Level            int               `json:"level"`
	Abilities        []ClassAbility    `json:"abilities"`
	ProficiencyBonus int               `json:"proficiency_bonus"`
	CantripsKnown    int               `json:"cantrips_known"`
	SpellsKnown      int               `json:"spells_known"`
	SpellSlots       map[int]int       `json:"spell_slots,omitempty"`
	ClassSpecific    map[string]string `json:"class_specific,omitempty"`
	WeaponMasteries  int               `json:"weapon_masteries"`
}

// ClassLevels is the level table sub-document keyed by class level.
type ClassLevels map[int]ClassLevel

func (ClassLevels) SubDocVersion() int { return 1 }

func (l ClassLevels) Validate() error {
	for k, lvl := range l {
		if k < 1 || k > 20 {
			return fmt.Errorf("class level %d out of range", k)
		}
		if lvl.Level != 0 && lvl.Level != k {
			return fmt.Errorf("class level %d keyed as %d", lvl.Level, k)
		}
	}
	return nil
}

// EquipmentOption is one lettered starting equipment choice.
type EquipmentOption struct {
	OptionLetter string   `json:"option_letter"`
	Items        []string `json:"items"`
}

// EquipmentOptions is the starting equipment choice sub-document.
type EquipmentOptions []EquipmentOption

func (EquipmentOptions) SubDocVersion() int { return 1 }

func (e EquipmentOptions) Validate() error {
	for _, opt := range e {
		if opt.OptionLetter == "" {
			return fmt.Errorf("equipment option without a letter")
		}
	}
	return nil
}
