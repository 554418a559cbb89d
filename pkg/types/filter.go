package types

import (
	"fmt"
	"strings"
)

// TagMode describes how a requested tag set must relate to a spell's tags.
type TagMode int

// Tag modes.
const (
	TagsHasAll TagMode = iota
	TagsHasAny
	TagsHasNone
)

func (m TagMode) String() string {
	switch m {
	case TagsHasAll:
		return "has_all"
	case TagsHasAny:
		return "has_any"
	case TagsHasNone:
		return "has_none"
	}
	return fmt.Sprintf("TagMode(%d)", int(m))
}

// ParseTagMode resolves "has_all", "has_any", or "has_none". The short
// forms "all", "any", and "none" are accepted too; empty means has_all.
func ParseTagMode(s string) (TagMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "has_all", "all":
		return TagsHasAll, nil
	case "has_any", "any":
		return TagsHasAny, nil
	case "has_none", "none":
		return TagsHasNone, nil
	}
	return 0, fmt.Errorf("%w: unknown tag mode %q", ErrInvalidFilter, s)
}

// SpellFilter selects spells. Zero-valued fields impose no constraint; the
// remaining ones combine conjunctively.
type SpellFilter struct {
	// Text matches name, description, or any tag as a case-insensitive
	// substring.
	Text  string
	Level *int
	Class string

	Ritual        *bool
	Concentration *bool
	Legacy        *bool

	// MinRange keeps spells reaching at least this many feet. Sight and
	// Touch always pass. Zero disables it.
	MinRange int

	Source      string
	CastingTime string
	Duration    string

	Verbal   *bool
	Somatic  *bool
	Material *bool

	Tags    []string
	TagMode TagMode
}

// Ptr returns a pointer to v, for the optional filter fields.
func Ptr[T any](v T) *T { return &v }
