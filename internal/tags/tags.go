// Package tags normalizes spell tags to their canonical spelling and owns
// the protected Official/Unofficial bookkeeping tags.
package tags

import (
	"strings"

	"golang.org/x/text/cases"
)

// Protected tags. Only the store's official/unofficial bookkeeping writes
// them.
const (
	Official   = "Official"
	Unofficial = "Unofficial"
)

var canonical = []string{
	// Spell effects
	"Light", "AOE", "Buff", "Debuff", "Healing", "Damage", "Utility", "Attack", "Saving Throw",
	// Damage types
	"Fire", "Cold", "Lightning", "Thunder", "Acid", "Poison", "Radiant", "Necrotic", "Force", "Psychic",
	// Schools
	"Abjuration", "Conjuration", "Divination", "Enchantment", "Evocation", "Illusion", "Necromancy", "Transmutation",
	// Bookkeeping
	Official, Unofficial,
}

var (
	byKey     = make(map[string]string, len(canonical))
	protected = map[string]bool{}
)

func init() {
	for _, tag := range canonical {
		byKey[Key(tag)] = tag
	}
	protected[Key(Official)] = true
	protected[Key(Unofficial)] = true
}

// Key returns the case-folded comparison key for a tag or name.
func Key(s string) string {
	// A Caser holds state, so each call gets its own.
	return cases.Fold().String(s)
}

// Normalize returns the canonical spelling of tag. Tags outside the canonical
// table are returned unchanged.
func Normalize(tag string) string {
	if c, ok := byKey[Key(tag)]; ok {
		return c
	}
	return tag
}

// IsProtected reports whether tag is one of the bookkeeping tags, ignoring case.
func IsProtected(tag string) bool {
	return protected[Key(tag)]
}

// ProtectedFor returns the bookkeeping tag for the official flag.
func ProtectedFor(official bool) string {
	if official {
		return Official
	}
	return Unofficial
}

// Reconcile prepares a tag list for storage. Each tag is trimmed and
// normalized; empty tags and case-insensitive duplicates are dropped. A
// protected tag is kept only when it agrees with the official flag, and the
// agreeing one is appended when missing. Input order is otherwise kept.
func Reconcile(list []string, official bool) []string {
	want := ProtectedFor(official)
	out := make([]string, 0, len(list)+1)
	seen := make(map[string]bool, len(list)+1)
	for _, raw := range list {
		tag := Normalize(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		k := Key(tag)
		if seen[k] {
			continue
		}
		if protected[k] && tag != want {
			continue
		}
		seen[k] = true
		out = append(out, tag)
	}
	if !seen[Key(want)] {
		out = append(out, want)
	}
	return out
}

// StripProtected returns list without bookkeeping tags.
func StripProtected(list []string) []string {
	out := make([]string, 0, len(list))
	for _, tag := range list {
		if !IsProtected(tag) {
			out = append(out, tag)
		}
	}
	return out
}
