package types

// Background is a character background.
type Background struct {
	Content
	Skills             []string `json:"skills"`
	OtherProficiencies []string `json:"other_proficiencies"`
	AbilityScores      []string `json:"ability_scores"`
	Feats              []string `json:"feats"`
	Equipment          string   `json:"equipment"`
	Features           Features `json:"features"`
}

// Validate checks the name and features.
func (b *Background) Validate() error {
	if err := b.Content.Validate(); err != nil {
		return err
	}
	return b.Features.Validate()
}
