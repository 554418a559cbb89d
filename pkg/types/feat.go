package types

import "fmt"

// Feat is a character feat. SpellsNum maps a spell level to the number of
// spells of that level the feat grants.
type Feat struct {
	Content
	Type           string      `json:"type"`
	IsSpellcasting bool        `json:"is_spellcasting"`
	SpellLists     []string    `json:"spell_lists"`
	SpellsNum      map[int]int `json:"spells_num"`
	HasPrereq      bool        `json:"has_prereq"`
	Prereq         string      `json:"prereq"`
	SetSpells      []string    `json:"set_spells"`
}

// Validate checks the name and spell grants.
func (f *Feat) Validate() error {
	if err := f.Content.Validate(); err != nil {
		return err
	}
	for level, n := range f.SpellsNum {
		if level < 0 || level > 9 {
			return fmt.Errorf("%w: %d", ErrInvalidLevel, level)
		}
		if n < 0 {
			return fmt.Errorf("negative spell count for level %d", level)
		}
	}
	return nil
}
