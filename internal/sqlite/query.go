package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/spellbook/internal/tags"
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// feetPerMile converts negative (mile) range codes for MinRange.
const feetPerMile = 5280

// predicate is one typed search constraint. Each variant contributes WHERE
// conditions with their parameters.
type predicate interface {
	apply(q *spellQuery)
}

// spellQuery accumulates the WHERE conditions of a spell SELECT. Every
// condition is a column test or an EXISTS over a child table, so each spell
// appears at most once.
type spellQuery struct {
	conds []string
	args  []any
}

func (q *spellQuery) where(cond string, args ...any) {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, args...)
}

// build renders the statement for the given select list.
func (q *spellQuery) build(selectList string) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectList)
	sb.WriteString(" FROM spells s")
	if len(q.conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.conds, " AND "))
	}
	sb.WriteString(" ORDER BY s.level, s.name COLLATE NOCASE")
	return sb.String(), q.args
}

type textMatch struct{ text string }

func (p textMatch) apply(q *spellQuery) {
	pat := likePattern(p.text)
	q.where(`(s.name LIKE ? ESCAPE '\' OR COALESCE(s.description, '') LIKE ? ESCAPE '\' OR EXISTS (`+
		`SELECT 1 FROM spell_tags tt WHERE tt.spell_id = s.id AND tt.tag LIKE ? ESCAPE '\'))`,
		pat, pat, pat)
}

type levelEq struct{ level int }

func (p levelEq) apply(q *spellQuery) { q.where("s.level = ?", p.level) }

type classMember struct{ class string }

func (p classMember) apply(q *spellQuery) {
	q.where("EXISTS (SELECT 1 FROM spell_classes sc WHERE sc.spell_id = s.id AND sc.class_name = ? COLLATE NOCASE)", p.class)
}

type flagEq struct {
	column string
	value  bool
}

func (p flagEq) apply(q *spellQuery) { q.where("s."+p.column+" = ?", p.value) }

type textEq struct {
	column string
	value  string
}

func (p textEq) apply(q *spellQuery) {
	q.where("COALESCE(s."+p.column+", '') = ? COLLATE NOCASE", p.value)
}

type minRange struct{ feet int }

func (p minRange) apply(q *spellQuery) {
	q.where(fmt.Sprintf("(s.range_value = %d OR s.range_value = %d OR s.range_value >= ? OR (s.range_value < 0 AND -s.range_value * %d >= ?))",
		types.RangeSight, types.RangeTouch, feetPerMile), p.feet, p.feet)
}

type component struct {
	letter  string
	present bool
}

func (p component) apply(q *spellQuery) {
	op := "LIKE"
	if !p.present {
		op = "NOT LIKE"
	}
	q.where(fmt.Sprintf("UPPER(s.components) %s '%%%s%%'", op, p.letter))
}

// The three tag modes are distinct predicate variants.

// hasAllTags is one existence check per tag, so a spell survives only if
// every tag is found. Case variants of one tag never multiply the row.
type hasAllTags struct{ tags []string }

func (p hasAllTags) apply(q *spellQuery) {
	for _, tag := range p.tags {
		q.where("EXISTS (SELECT 1 FROM spell_tags tl WHERE tl.spell_id = s.id AND tl.tag = ? COLLATE NOCASE)", tag)
	}
}

// hasAnyTags is one existence check over a disjunction of the tags.
type hasAnyTags struct{ tags []string }

func (p hasAnyTags) apply(q *spellQuery) {
	cond, args := tagDisjunction(p.tags)
	q.where("EXISTS (SELECT 1 FROM spell_tags ta WHERE ta.spell_id = s.id AND "+cond+")", args...)
}

// hasNoTags is the negated existence check.
type hasNoTags struct{ tags []string }

func (p hasNoTags) apply(q *spellQuery) {
	cond, args := tagDisjunction(p.tags)
	q.where("NOT EXISTS (SELECT 1 FROM spell_tags ta WHERE ta.spell_id = s.id AND "+cond+")", args...)
}

func tagDisjunction(list []string) (string, []any) {
	parts := make([]string, len(list))
	args := make([]any, len(list))
	for i, tag := range list {
		parts[i] = "ta.tag = ? COLLATE NOCASE"
		args[i] = tag
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// compileFilter turns a filter into predicates. Omitted fields produce no
// predicate.
func compileFilter(f types.SpellFilter) ([]predicate, error) {
	var preds []predicate
	if f.Text != "" {
		preds = append(preds, textMatch{f.Text})
	}
	if f.Level != nil {
		if *f.Level < 0 || *f.Level > 9 {
			return nil, fmt.Errorf("%w: %w: %d", types.ErrInvalidFilter, types.ErrInvalidLevel, *f.Level)
		}
		preds = append(preds, levelEq{*f.Level})
	}
	if f.Class != "" {
		preds = append(preds, classMember{f.Class})
	}
	for _, fl := range []struct {
		column string
		value  *bool
	}{
		{"ritual", f.Ritual},
		{"concentration", f.Concentration},
		{"is_legacy", f.Legacy},
	} {
		if fl.value != nil {
			preds = append(preds, flagEq{fl.column, *fl.value})
		}
	}
	if f.MinRange < 0 {
		return nil, fmt.Errorf("%w: negative minimum range %d", types.ErrInvalidFilter, f.MinRange)
	}
	if f.MinRange > 0 {
		preds = append(preds, minRange{f.MinRange})
	}
	for _, te := range []struct {
		column string
		value  string
	}{
		{"source", f.Source},
		{"casting_time", f.CastingTime},
		{"duration", f.Duration},
	} {
		if te.value != "" {
			preds = append(preds, textEq{te.column, te.value})
		}
	}
	for _, c := range []struct {
		letter string
		value  *bool
	}{
		{"V", f.Verbal},
		{"S", f.Somatic},
		{"M", f.Material},
	} {
		if c.value != nil {
			preds = append(preds, component{c.letter, *c.value})
		}
	}

	list := normalizedTagSet(f.Tags)
	if len(list) > 0 {
		switch f.TagMode {
		case types.TagsHasAll:
			preds = append(preds, hasAllTags{list})
		case types.TagsHasAny:
			preds = append(preds, hasAnyTags{list})
		case types.TagsHasNone:
			preds = append(preds, hasNoTags{list})
		default:
			return nil, fmt.Errorf("%w: tag mode %v", types.ErrInvalidFilter, f.TagMode)
		}
	}
	return preds, nil
}

// normalizedTagSet normalizes the requested tags and drops blanks and
// case-insensitive duplicates.
func normalizedTagSet(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, raw := range list {
		tag := tags.Normalize(strings.TrimSpace(raw))
		if tag == "" || seen[tags.Key(tag)] {
			continue
		}
		seen[tags.Key(tag)] = true
		out = append(out, tag)
	}
	return out
}

func composeSpellQuery(f types.SpellFilter) (*spellQuery, error) {
	preds, err := compileFilter(f)
	if err != nil {
		return nil, err
	}
	q := &spellQuery{}
	for _, p := range preds {
		p.apply(q)
	}
	return q, nil
}

// Search returns the spells matching f, ordered by level and then name.
func (s *SpellStore) Search(ctx context.Context, f types.SpellFilter) ([]types.Spell, error) {
	q, err := composeSpellQuery(f)
	if err != nil {
		return nil, err
	}
	query, args := q.build(s.selectList("s"))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching spells: %w", err)
	}
	spells, _, err := s.scanRows(ctx, s.db, rows)
	return spells, err
}

// SearchIDs returns the ids of the spells Search would return, in the same
// order, without loading the rows.
func (s *SpellStore) SearchIDs(ctx context.Context, f types.SpellFilter) ([]int64, error) {
	q, err := composeSpellQuery(f)
	if err != nil {
		return nil, err
	}
	query, args := q.build("s.id")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching spell ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning spell id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
