package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/spellbook/internal/notify"
	"github.com/mesh-intelligence/spellbook/internal/tags"
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// SpellStore is the spell collection. Beyond the generic operations it
// composes filtered searches, bulk writes, and stat block children.
type SpellStore struct {
	*Store[types.Spell, *types.Spell]
	bundle bundleSource
}

func spellCodec() codec[types.Spell] {
	return codec[types.Spell]{
		kind:       types.KindSpells,
		docVersion: 1,
		columns: []column{
			{"level", ""},
			{"casting_time", ""},
			{"ritual", ""},
			{"range_value", ""},
			{"components", ""},
			{"duration", ""},
			{"concentration", ""},
			{"is_modified", ""},
			{"original_name", "''"},
		},
		encode: func(s *types.Spell) ([]any, error) {
			return []any{s.Level, s.CastingTime, s.Ritual, s.RangeValue, s.Components,
				s.Duration, s.Concentration, s.IsModified, s.OriginalName}, nil
		},
		decode: func(s *types.Spell) ([]any, func() error) {
			return []any{&s.Level, &s.CastingTime, &s.Ritual, &s.RangeValue, &s.Components,
				&s.Duration, &s.Concentration, &s.IsModified, &s.OriginalName}, func() error { return nil }
		},
		prepare: func(s *types.Spell) {
			s.Tags = tags.Reconcile(s.Tags, s.IsOfficial)
			s.Classes = cleanList(s.Classes)
		},
		setID: func(s *types.Spell, id int64) { s.ID = id },
		children: func(ctx context.Context, q dbtx, id int64, s *types.Spell) error {
			if err := replaceJunction(ctx, q, spellClasses, id, s.Classes); err != nil {
				return err
			}
			return replaceJunction(ctx, q, spellTags, id, s.Tags)
		},
		hydrate:    hydrateSpells,
		searchable: []string{"casting_time", "duration", "components", "original_name"},
	}
}

// hydrateSpells fills Classes and Tags for a batch with one query per
// relation.
func hydrateSpells(ctx context.Context, q dbtx, ids []int64, spells []*types.Spell) error {
	classes, err := hydrateJunction(ctx, q, spellClasses, ids)
	if err != nil {
		return err
	}
	tagLists, err := hydrateJunction(ctx, q, spellTags, ids)
	if err != nil {
		return err
	}
	for i, s := range spells {
		s.Classes = classes[ids[i]]
		s.Tags = tagLists[ids[i]]
	}
	return nil
}

// cleanList trims values and drops blanks and case-insensitive duplicates.
func cleanList(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, raw := range list {
		v := strings.TrimSpace(raw)
		if v == "" || seen[tags.Key(v)] {
			continue
		}
		seen[tags.Key(v)] = true
		out = append(out, v)
	}
	return out
}

// seedSpellDefaults marks a bundled spell restorable under its own name.
func seedSpellDefaults(s *types.Spell) {
	if s.OriginalName == "" {
		s.OriginalName = s.Name
	}
}

// BulkInsert adds spells in one transaction, skipping invalid spells and
// names already taken, and returns the number inserted. Spells without an
// original name get their own name as one.
func (s *SpellStore) BulkInsert(ctx context.Context, spells []types.Spell) (int, error) {
	var names []string
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, sp := range spells {
			seedSpellDefaults(&sp)
			if err := s.prepare(&sp); err != nil {
				s.logger.Warn("skipping invalid spell", "name", sp.Name, "error", err)
				continue
			}
			added, err := s.insertTx(ctx, tx, &sp)
			if err != nil {
				return err
			}
			if added {
				names = append(names, sp.Name)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(names) > 0 {
		s.publish(notify.OpImport, names...)
	}
	return len(names), nil
}

// ClearAll removes every spell with its classes, tags, and stat blocks.
func (s *SpellStore) ClearAll(ctx context.Context) error {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM stat_blocks",
			"DELETE FROM spell_tags",
			"DELETE FROM spell_classes",
			"DELETE FROM spells",
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("clearing spells: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(notify.OpClear)
	return nil
}

// Tags returns every distinct tag in use.
func (s *SpellStore) Tags(ctx context.Context) ([]string, error) {
	return distinctStrings(ctx, s.db, "SELECT DISTINCT tag FROM spell_tags ORDER BY tag COLLATE NOCASE")
}

// ClassNames returns every distinct class name spells are associated with.
func (s *SpellStore) ClassNames(ctx context.Context) ([]string, error) {
	return distinctStrings(ctx, s.db, "SELECT DISTINCT class_name FROM spell_classes ORDER BY class_name COLLATE NOCASE")
}

// CastingTimes returns every distinct non-empty casting time.
func (s *SpellStore) CastingTimes(ctx context.Context) ([]string, error) {
	return distinctStrings(ctx, s.db,
		"SELECT DISTINCT casting_time FROM spells WHERE casting_time IS NOT NULL AND casting_time != '' ORDER BY casting_time")
}

// Durations returns every distinct non-empty duration.
func (s *SpellStore) Durations(ctx context.Context) ([]string, error) {
	return distinctStrings(ctx, s.db,
		"SELECT DISTINCT duration FROM spells WHERE duration IS NOT NULL AND duration != '' ORDER BY duration")
}

// Ranges returns every distinct range code in display order.
func (s *SpellStore) Ranges(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT range_value FROM spells")
	if err != nil {
		return nil, fmt.Errorf("querying ranges: %w", err)
	}
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning range: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	types.SortRanges(out)
	return out, nil
}

// Update replaces the spell stored under name. Editing the name or any
// gameplay field of an official spell marks it modified; tag and source
// edits do not. The stored original name is kept when sp carries none, so
// the spell stays restorable.
func (s *SpellStore) Update(ctx context.Context, name string, sp types.Spell) (bool, error) {
	if err := s.prepare(&sp); err != nil {
		return false, err
	}
	var updated bool
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		current, _, found, err := s.getTx(ctx, tx, name)
		if err != nil || !found {
			return err
		}
		trackModification(&current, &sp)
		updated, err = s.updateTx(ctx, tx, name, &sp)
		return err
	})
	if err != nil || !updated {
		return false, err
	}
	s.publish(notify.OpUpdate, sp.Name)
	return true, nil
}

// trackModification carries the restore bookkeeping of current over to next.
func trackModification(current, next *types.Spell) {
	if next.OriginalName == "" {
		next.OriginalName = current.OriginalName
	}
	if current.IsModified || (current.IsOfficial && gameplayChanged(current, next)) {
		next.IsModified = true
	}
}

// gameplayChanged reports whether a and b differ in anything but tags,
// source and bookkeeping flags.
func gameplayChanged(a, b *types.Spell) bool {
	return a.Name != b.Name ||
		a.Description != b.Description ||
		a.Level != b.Level ||
		a.CastingTime != b.CastingTime ||
		a.Ritual != b.Ritual ||
		a.RangeValue != b.RangeValue ||
		a.Components != b.Components ||
		a.Duration != b.Duration ||
		a.Concentration != b.Concentration ||
		!slices.Equal(a.Classes, b.Classes)
}

// Restore resets a modified official spell to its bundled definition,
// looked up by original name. Returns false when the spell is absent or
// has no bundled definition.
func (s *SpellStore) Restore(ctx context.Context, name string) (bool, error) {
	current, found, err := s.Get(ctx, name)
	if err != nil || !found {
		return false, err
	}
	originals, err := s.bundledSpells()
	if err != nil {
		return false, err
	}
	lookup := current.OriginalName
	if lookup == "" {
		lookup = current.Name
	}
	original, ok := originals[tags.Key(lookup)]
	if !ok {
		return false, nil
	}
	// The generic update writes the bundled flags as they are, clearing
	// is_modified.
	return s.Store.Update(ctx, current.Name, original)
}

// RestoreAllOfficial restores every modified official spell and returns the
// number restored.
func (s *SpellStore) RestoreAllOfficial(ctx context.Context) (int, error) {
	official, err := s.Filter(ctx, types.FlagOfficial)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sp := range official {
		if !sp.IsModified {
			continue
		}
		ok, err := s.Restore(ctx, sp.Name)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// bundledSpells indexes the bundled spell document by folded name.
func (s *SpellStore) bundledSpells() (map[string]types.Spell, error) {
	doc, err := s.bundle.document(types.KindSpells)
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.Spell, len(doc.Records))
	for _, raw := range doc.Records {
		sp, err := types.DecodeRecord[types.Spell](raw)
		if err != nil {
			continue
		}
		seedSpellDefaults(&sp)
		sp.IsModified = false
		out[tags.Key(sp.Name)] = sp
	}
	return out, nil
}
