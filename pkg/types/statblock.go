package types

import (
	"fmt"
	"strings"
)

// StatBlock is a creature stat block owned by a summoning spell. In document
// form it is keyed to its spell by SpellName.
type StatBlock struct {
	ID                  int64         `json:"-"`
	SpellName           string        `json:"spell_name"`
	Name                string        `json:"name"`
	Size                string        `json:"size"`
	CreatureType        string        `json:"creature_type"`
	CreatureSubtype     string        `json:"creature_subtype"`
	Alignment           string        `json:"alignment"`
	ArmorClass          string        `json:"armor_class"`
	HitPoints           string        `json:"hit_points"`
	Speed               string        `json:"speed"`
	Abilities           AbilityScores `json:"abilities"`
	DamageResistances   string        `json:"damage_resistances"`
	DamageImmunities    string        `json:"damage_immunities"`
	ConditionImmunities string        `json:"condition_immunities"`
	Senses              string        `json:"senses"`
	Languages           string        `json:"languages"`
	ChallengeRating     string        `json:"challenge_rating"`
	Traits              Features      `json:"traits"`
	Actions             Features      `json:"actions"`
	BonusActions        Features      `json:"bonus_actions"`
	Reactions           Features      `json:"reactions"`
	LegendaryActions    Features      `json:"legendary_actions"`
}

// Validate checks the stat block and its nested sub-documents.
func (s *StatBlock) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrInvalidName
	}
	if err := s.Abilities.Validate(); err != nil {
		return err
	}
	for _, list := range []Features{s.Traits, s.Actions, s.BonusActions, s.Reactions, s.LegendaryActions} {
		if err := list.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Ability is one ability score with its derived modifier and save bonus.
type Ability struct {
	Score    int `json:"score"`
	Modifier int `json:"modifier"`
	Save     int `json:"save"`
}

// AbilityScores is the six-ability sub-document of a stat block.
type AbilityScores struct {
	Strength     Ability `json:"strength"`
	Dexterity    Ability `json:"dexterity"`
	Constitution Ability `json:"constitution"`
	Intelligence Ability `json:"intelligence"`
	Wisdom       Ability `json:"wisdom"`
	Charisma     Ability `json:"charisma"`
}

func (AbilityScores) SubDocVersion() int { return 1 }

// Validate rejects scores outside 0..30. Zero means the score is unset.
func (a AbilityScores) Validate() error {
	for _, ab := range []struct {
		name string
		v    Ability
	}{
		{"strength", a.Strength}, {"dexterity", a.Dexterity}, {"constitution", a.Constitution},
		{"intelligence", a.Intelligence}, {"wisdom", a.Wisdom}, {"charisma", a.Charisma},
	} {
		if ab.v.Score < 0 || ab.v.Score > 30 {
			return fmt.Errorf("%s score %d out of range", ab.name, ab.v.Score)
		}
	}
	return nil
}

// AbilityModifier returns the standard modifier for a score.
func AbilityModifier(score int) int {
	d := score - 10
	if d < 0 {
		return (d - 1) / 2
	}
	return d / 2
}
