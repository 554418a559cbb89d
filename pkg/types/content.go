package types

import (
	"fmt"
	"strings"
)

// Kind identifies a content collection. The value doubles as the collection
// key in the document form and as the relational table name.
type Kind string

// Content kinds.
const (
	KindSpells      Kind = "spells"
	KindStatBlocks  Kind = "stat_blocks"
	KindLineages    Kind = "lineages"
	KindFeats       Kind = "feats"
	KindBackgrounds Kind = "backgrounds"
	KindClasses     Kind = "classes"
)

// Kinds lists every collection in seeding order. Stat blocks follow spells
// because they reference a parent spell by name.
var Kinds = []Kind{KindSpells, KindStatBlocks, KindLineages, KindFeats, KindBackgrounds, KindClasses}

// ParseKind resolves a collection name. Matching is case-insensitive and
// accepts the singular form ("spell", "class").
func ParseKind(s string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if key == string(k) || key+"s" == string(k) || key+"es" == string(k) {
			return k, nil
		}
	}
	if key == "stat_block" || key == "statblock" || key == "statblocks" {
		return KindStatBlocks, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Content is the shape shared by every top-level rules-content record.
type Content struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
	IsOfficial  bool   `json:"is_official"`
	IsCustom    bool   `json:"is_custom"`
	IsLegacy    bool   `json:"is_legacy"`
}

// Base returns the shared content fields.
func (c *Content) Base() *Content { return c }

// Validate checks the fields every entity requires.
func (c *Content) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidName
	}
	return nil
}

// Entity is implemented by pointers to every content type held in a store.
type Entity interface {
	Base() *Content
	Validate() error
}

// Flag selects one of the content flag views.
type Flag int

// Flag views over a collection.
const (
	FlagOfficial Flag = iota
	FlagUnofficial
	FlagCustom
	FlagLegacy
	FlagCurrent
)

func (f Flag) String() string {
	switch f {
	case FlagOfficial:
		return "official"
	case FlagUnofficial:
		return "unofficial"
	case FlagCustom:
		return "custom"
	case FlagLegacy:
		return "legacy"
	case FlagCurrent:
		return "current"
	}
	return fmt.Sprintf("Flag(%d)", int(f))
}

// ParseFlag resolves a flag view by name.
func ParseFlag(s string) (Flag, error) {
	for f := FlagOfficial; f <= FlagCurrent; f++ {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown flag %q", ErrInvalidFilter, s)
}
