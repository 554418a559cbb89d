package types

// Lineage is a playable ancestry.
type Lineage struct {
	Content
	CreatureType string   `json:"creature_type"`
	Size         string   `json:"size"`
	Speed        int      `json:"speed"`
	Traits       Features `json:"traits"`
}

// Validate checks the name and traits.
func (l *Lineage) Validate() error {
	if err := l.Content.Validate(); err != nil {
		return err
	}
	return l.Traits.Validate()
}
