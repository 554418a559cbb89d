package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Spell is a castable spell. Classes and Tags are the spell's many-to-many
// associations; Tags always carry exactly one protected tag matching
// IsOfficial once the spell has been stored.
type Spell struct {
	ID int64 `json:"-"`
	Content
	Level         int      `json:"level"`
	CastingTime   string   `json:"casting_time"`
	Ritual        bool     `json:"ritual"`
	RangeValue    int      `json:"range_value"`
	Components    string   `json:"components"`
	Duration      string   `json:"duration"`
	Concentration bool     `json:"concentration"`
	IsModified    bool     `json:"is_modified"`
	OriginalName  string   `json:"original_name"`
	Classes       []string `json:"classes"`
	Tags          []string `json:"tags"`
}

// Validate checks the name and level.
func (s *Spell) Validate() error {
	if err := s.Content.Validate(); err != nil {
		return err
	}
	if s.Level < 0 || s.Level > 9 {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, s.Level)
	}
	return nil
}

// HasComponent reports whether the components string lists c (V, S, or M).
func (s *Spell) HasComponent(c byte) bool {
	return strings.ContainsRune(strings.ToUpper(s.Components), rune(c))
}

// Range codes with special meaning. Positive values above these are feet,
// negative values are miles.
const (
	RangeSelf    = 0
	RangeSight   = 1
	RangeSpecial = 2
	RangeTouch   = 3
)

// RangeLabel renders a range code for display.
func RangeLabel(v int) string {
	switch {
	case v == RangeSelf:
		return "Self"
	case v == RangeSight:
		return "Sight"
	case v == RangeSpecial:
		return "Special"
	case v == RangeTouch:
		return "Touch"
	case v == -1:
		return "1 mile"
	case v < 0:
		return fmt.Sprintf("%d miles", -v)
	}
	return fmt.Sprintf("%d feet", v)
}

// ParseRange is the inverse of RangeLabel. It also accepts "ft" and "mi"
// abbreviations.
func ParseRange(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "self":
		return RangeSelf, nil
	case "sight":
		return RangeSight, nil
	case "special":
		return RangeSpecial, nil
	case "touch":
		return RangeTouch, nil
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty range")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid range %q", s)
	}
	if len(fields) == 1 {
		return n, nil
	}
	switch strings.ToLower(strings.TrimSuffix(fields[1], ".")) {
	case "foot", "feet", "ft":
		return n, nil
	case "mile", "miles", "mi":
		return -n, nil
	}
	return 0, fmt.Errorf("invalid range unit %q", fields[1])
}

// rangeRank groups range codes for display: Self, Touch, feet, Special,
// Sight, miles.
func rangeRank(v int) (int, int) {
	switch {
	case v == RangeSelf:
		return 0, 0
	case v == RangeTouch:
		return 1, 0
	case v == RangeSpecial:
		return 3, 0
	case v == RangeSight:
		return 4, 0
	case v < 0:
		return 5, -v
	}
	return 2, v
}

// SortRanges orders range codes for display in place.
func SortRanges(values []int) {
	sort.Slice(values, func(i, j int) bool {
		gi, mi := rangeRank(values[i])
		gj, mj := rangeRank(values[j])
		if gi != gj {
			return gi < gj
		}
		return mi < mj
	})
}
