package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/spellbook/internal/notify"
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

const statBlockColumns = `name, size, creature_type, creature_subtype, alignment, armor_class,
    hit_points, speed, abilities_json, damage_resistances, damage_immunities,
    condition_immunities, senses, languages, challenge_rating, traits_json,
    actions_json, bonus_actions_json, reactions_json, legendary_actions_json`

const statBlockSelect = `SELECT b.id, sp.name, b.name, b.size, b.creature_type,
    COALESCE(b.creature_subtype, ''), COALESCE(b.alignment, ''), b.armor_class, b.hit_points, b.speed,
    COALESCE(b.abilities_json, ''), COALESCE(b.damage_resistances, ''), COALESCE(b.damage_immunities, ''),
    COALESCE(b.condition_immunities, ''), COALESCE(b.senses, ''), COALESCE(b.languages, ''),
    COALESCE(b.challenge_rating, ''), COALESCE(b.traits_json, ''), COALESCE(b.actions_json, ''),
    COALESCE(b.bonus_actions_json, ''), COALESCE(b.reactions_json, ''), COALESCE(b.legendary_actions_json, '')
FROM stat_blocks b JOIN spells sp ON sp.id = b.spell_id`

func statBlockValues(sb *types.StatBlock) ([]any, error) {
	abilities, err := types.EncodeSubDoc(sb.Abilities)
	if err != nil {
		return nil, fmt.Errorf("abilities: %w", err)
	}
	vals := []any{sb.Name, sb.Size, sb.CreatureType, sb.CreatureSubtype, sb.Alignment, sb.ArmorClass,
		sb.HitPoints, sb.Speed, abilities, sb.DamageResistances, sb.DamageImmunities,
		sb.ConditionImmunities, sb.Senses, sb.Languages, sb.ChallengeRating}
	for _, list := range []types.Features{sb.Traits, sb.Actions, sb.BonusActions, sb.Reactions, sb.LegendaryActions} {
		raw, err := types.EncodeSubDoc(list)
		if err != nil {
			return nil, err
		}
		vals = append(vals, raw)
	}
	return vals, nil
}

func scanStatBlocks(rows *sql.Rows) ([]types.StatBlock, error) {
	defer rows.Close()

	out := []types.StatBlock{}
	for rows.Next() {
		var (
			sb    types.StatBlock
			raw   [6]string
			lists = []*types.Features{&sb.Traits, &sb.Actions, &sb.BonusActions, &sb.Reactions, &sb.LegendaryActions}
		)
		err := rows.Scan(&sb.ID, &sb.SpellName, &sb.Name, &sb.Size, &sb.CreatureType,
			&sb.CreatureSubtype, &sb.Alignment, &sb.ArmorClass, &sb.HitPoints, &sb.Speed,
			&raw[0], &sb.DamageResistances, &sb.DamageImmunities, &sb.ConditionImmunities,
			&sb.Senses, &sb.Languages, &sb.ChallengeRating, &raw[1], &raw[2], &raw[3], &raw[4], &raw[5])
		if err != nil {
			return nil, fmt.Errorf("scanning stat block: %w", err)
		}
		if err := types.DecodeSubDoc(raw[0], &sb.Abilities); err != nil {
			return nil, fmt.Errorf("stat block %q abilities: %w", sb.Name, err)
		}
		for i, list := range lists {
			if err := types.DecodeSubDoc(raw[i+1], list); err != nil {
				return nil, fmt.Errorf("stat block %q: %w", sb.Name, err)
			}
		}
		out = append(out, sb)
	}
	return out, rows.Err()
}

func queryStatBlocks(ctx context.Context, q dbtx, where string, args ...any) ([]types.StatBlock, error) {
	query := statBlockSelect
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY sp.name COLLATE NOCASE, b.id"
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stat blocks: %w", err)
	}
	return scanStatBlocks(rows)
}

// insertStatBlockTx attaches sb to the spell named by sb.SpellName. It
// returns false when the spell does not exist or already owns a stat block
// with the same name.
func (s *SpellStore) insertStatBlockTx(ctx context.Context, q dbtx, sb *types.StatBlock) (int64, bool, error) {
	if err := sb.Validate(); err != nil {
		return 0, false, fmt.Errorf("invalid stat block: %w", err)
	}
	spellID, found, err := s.idOf(ctx, q, sb.SpellName)
	if err != nil || !found {
		return 0, false, err
	}
	var dup int
	err = q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM stat_blocks WHERE spell_id = ? AND name = ? COLLATE NOCASE", spellID, sb.Name).Scan(&dup)
	if err != nil {
		return 0, false, fmt.Errorf("checking stat block: %w", err)
	}
	if dup > 0 {
		return 0, false, nil
	}
	vals, err := statBlockValues(sb)
	if err != nil {
		return 0, false, err
	}
	stmt := fmt.Sprintf("INSERT INTO stat_blocks (spell_id, %s) VALUES (?, %s)", statBlockColumns, placeholders(len(vals)))
	res, err := q.ExecContext(ctx, stmt, append([]any{spellID}, vals...)...)
	if err != nil {
		return 0, false, fmt.Errorf("inserting stat block %q: %w", sb.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("reading stat block id: %w", err)
	}
	return id, true, nil
}

// AddStatBlock attaches sb to the spell named by spell and returns the new
// stat block id. It returns false when the spell is absent or already owns a
// stat block with that name.
func (s *SpellStore) AddStatBlock(ctx context.Context, spell string, sb types.StatBlock) (int64, bool, error) {
	sb.SpellName = spell
	var (
		id    int64
		added bool
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		id, added, err = s.insertStatBlockTx(ctx, tx, &sb)
		return err
	})
	if err != nil || !added {
		return 0, false, err
	}
	s.broker.Publish(notify.NewEvent(types.KindStatBlocks, notify.OpAdd, sb.Name))
	return id, true, nil
}

// UpdateStatBlock replaces the stat block with the given id. The owning
// spell does not change.
func (s *SpellStore) UpdateStatBlock(ctx context.Context, id int64, sb types.StatBlock) (bool, error) {
	if err := sb.Validate(); err != nil {
		return false, fmt.Errorf("invalid stat block: %w", err)
	}
	vals, err := statBlockValues(&sb)
	if err != nil {
		return false, err
	}
	cols := strings.Split(statBlockColumns, ",")
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = strings.TrimSpace(c) + " = ?"
	}
	stmt := fmt.Sprintf("UPDATE stat_blocks SET %s, updated_at = CURRENT_TIMESTAMP WHERE id = ?", strings.Join(sets, ", "))

	var updated bool
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, stmt, append(vals, id)...)
		if err != nil {
			return fmt.Errorf("updating stat block %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		updated = n > 0
		return err
	})
	if err != nil || !updated {
		return false, err
	}
	s.broker.Publish(notify.NewEvent(types.KindStatBlocks, notify.OpUpdate, sb.Name))
	return true, nil
}

// RemoveStatBlock deletes one stat block.
func (s *SpellStore) RemoveStatBlock(ctx context.Context, id int64) (bool, error) {
	var removed bool
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM stat_blocks WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting stat block %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		removed = n > 0
		return err
	})
	if err != nil || !removed {
		return false, err
	}
	s.broker.Publish(notify.NewEvent(types.KindStatBlocks, notify.OpRemove))
	return true, nil
}

// StatBlock returns one stat block by id.
func (s *SpellStore) StatBlock(ctx context.Context, id int64) (types.StatBlock, bool, error) {
	blocks, err := queryStatBlocks(ctx, s.db, "b.id = ?", id)
	if err != nil || len(blocks) == 0 {
		return types.StatBlock{}, false, err
	}
	return blocks[0], true, nil
}

// StatBlocks returns the stat blocks owned by the named spell.
func (s *SpellStore) StatBlocks(ctx context.Context, spell string) ([]types.StatBlock, error) {
	id, found, err := s.idOf(ctx, s.db, spell)
	if err != nil || !found {
		return []types.StatBlock{}, err
	}
	return queryStatBlocks(ctx, s.db, "b.spell_id = ?", id)
}

// AllStatBlocks returns every stat block ordered by spell name.
func (s *SpellStore) AllStatBlocks(ctx context.Context) ([]types.StatBlock, error) {
	return queryStatBlocks(ctx, s.db, "")
}

// SpellsWithStatBlocks returns the names of spells owning stat blocks.
func (s *SpellStore) SpellsWithStatBlocks(ctx context.Context) ([]string, error) {
	return distinctStrings(ctx, s.db,
		"SELECT DISTINCT sp.name FROM spells sp JOIN stat_blocks b ON b.spell_id = sp.id ORDER BY sp.name COLLATE NOCASE")
}

// importStatBlocksTx inserts the stat block records of doc. Records naming
// an unknown spell are malformed and skipped.
func (s *SpellStore) importStatBlocksTx(ctx context.Context, q dbtx, doc *types.Document) ([]string, error) {
	if doc.Kind != types.KindStatBlocks {
		return nil, fmt.Errorf("%w: got %s, want %s", types.ErrKindMismatch, doc.Kind, types.KindStatBlocks)
	}
	var names []string
	for i, raw := range doc.Records {
		sb, err := types.DecodeRecord[types.StatBlock](raw)
		if err == nil && strings.TrimSpace(sb.SpellName) == "" {
			err = fmt.Errorf("%w: missing spell_name", types.ErrMalformedRecord)
		}
		if err != nil {
			s.logger.Warn("skipping malformed record", "kind", types.KindStatBlocks, "index", i, "error", err)
			continue
		}
		_, added, err := s.insertStatBlockTx(ctx, q, &sb)
		if errors.Is(err, types.ErrMalformedSubDocument) || errors.Is(err, types.ErrInvalidName) {
			s.logger.Warn("skipping malformed record", "kind", types.KindStatBlocks, "index", i, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !added {
			s.logger.Debug("skipping stat block", "spell", sb.SpellName, "name", sb.Name)
			continue
		}
		names = append(names, sb.Name)
	}
	return names, nil
}
