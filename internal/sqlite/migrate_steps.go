// This file holds the individual schema migration steps.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/spellbook/internal/tags"
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

type migrationStep struct {
	version int
	name    string
	apply   func(m *Migrator, ctx context.Context, q dbtx, rep *MigrationReport) error
}

// migrationSteps are applied in ascending version order. Every step checks
// for existing columns and tables so that a partially migrated store can
// rerun it.
var migrationSteps = []migrationStep{
	{1, "base spell tables", (*Migrator).createBaseTables},
	{2, "spell modified flag", (*Migrator).addModifiedFlag},
	{3, "stat blocks", (*Migrator).createStatBlockTable},
	{4, "description corrections", (*Migrator).applyCorrections},
	{5, "original names", (*Migrator).addOriginalName},
	{6, "tag normalization", (*Migrator).normalizeTags},
	{7, "legacy flag", (*Migrator).addLegacyFlag},
	{8, "official and custom flags", (*Migrator).addOfficialFlags},
	{9, "lineages and feats", (*Migrator).createLineagesAndFeats},
	{10, "backgrounds and classes", (*Migrator).createBackgroundsAndClasses},
	{11, "versioned class sub-documents", (*Migrator).rewrapClassDocuments},
}

// currentEditionSources are the sources whose spells are not legacy.
var currentEditionSources = []string{
	"Player's Handbook (2024)",
	"Forgotten Realms - Heroes of Faerun",
	"Eberron - Forge of the Artificer",
}

func (m *Migrator) createBaseTables(ctx context.Context, q dbtx, _ *MigrationReport) error {
	return execAll(ctx, q, concatDDL([]string{stepSpells, createSpellClasses, createSpellTags}, spellIndexDDL))
}

func (m *Migrator) addModifiedFlag(ctx context.Context, q dbtx, _ *MigrationReport) error {
	_, err := addColumnIfMissing(ctx, q, "spells", "is_modified", "INTEGER NOT NULL DEFAULT 0")
	return err
}

func (m *Migrator) createStatBlockTable(ctx context.Context, q dbtx, _ *MigrationReport) error {
	return execAll(ctx, q, concatDDL([]string{createStatBlocks}, statBlockIndexDDL))
}

func (m *Migrator) applyCorrections(ctx context.Context, q dbtx, _ *MigrationReport) error {
	corrections, err := m.pipeline.bundle.corrections()
	if err != nil {
		return err
	}
	applied := 0
	for _, c := range corrections {
		sets, args := c.assignments()
		if c.Name == "" || len(sets) == 0 {
			continue
		}
		stmt := "UPDATE spells SET " + strings.Join(sets, ", ") + " WHERE name = ? COLLATE NOCASE"
		res, err := q.ExecContext(ctx, stmt, append(args, c.Name)...)
		if err != nil {
			return fmt.Errorf("correcting %q: %w", c.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			applied++
		}
	}
	m.logger.Debug("applied spell corrections", "available", len(corrections), "applied", applied)
	return nil
}

func (m *Migrator) addOriginalName(ctx context.Context, q dbtx, _ *MigrationReport) error {
	added, err := addColumnIfMissing(ctx, q, "spells", "original_name", "TEXT DEFAULT ''")
	if err != nil || !added {
		return err
	}
	_, err = q.ExecContext(ctx, `UPDATE spells SET original_name = name
WHERE id IN (SELECT spell_id FROM spell_tags WHERE tag = ?)`, tags.Official)
	if err != nil {
		return fmt.Errorf("backfilling original names: %w", err)
	}
	return nil
}

// normalizeTags rewrites every stored tag to its trimmed canonical spelling.
// A spell left holding several case variants of one tag keeps its earliest
// row.
func (m *Migrator) normalizeTags(ctx context.Context, q dbtx, _ *MigrationReport) error {
	stored, err := distinctStrings(ctx, q, "SELECT DISTINCT tag FROM spell_tags")
	if err != nil {
		return err
	}
	for _, tag := range stored {
		canonical := tags.Normalize(strings.TrimSpace(tag))
		if canonical == tag {
			continue
		}
		if canonical != "" {
			if _, err := q.ExecContext(ctx, "UPDATE OR IGNORE spell_tags SET tag = ? WHERE tag = ?", canonical, tag); err != nil {
				return fmt.Errorf("normalizing tag %q: %w", tag, err)
			}
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM spell_tags WHERE tag = ?", tag); err != nil {
			return fmt.Errorf("removing duplicate tag %q: %w", tag, err)
		}
	}
	res, err := q.ExecContext(ctx, `DELETE FROM spell_tags WHERE id NOT IN (
    SELECT MIN(id) FROM spell_tags GROUP BY spell_id, tag COLLATE NOCASE)`)
	if err != nil {
		return fmt.Errorf("removing case-variant tags: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		m.logger.Info("removed case-variant duplicate tags", "rows", n)
	}
	return nil
}

func (m *Migrator) addLegacyFlag(ctx context.Context, q dbtx, _ *MigrationReport) error {
	added, err := addColumnIfMissing(ctx, q, "spells", "is_legacy", "INTEGER NOT NULL DEFAULT 0")
	if err != nil || !added {
		return err
	}
	args := make([]any, len(currentEditionSources))
	for i, s := range currentEditionSources {
		args[i] = s
	}
	stmt := fmt.Sprintf(`UPDATE spells SET is_legacy = 1
WHERE source NOT IN (%s) AND source != ''`, placeholders(len(args)))
	if _, err := q.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("backfilling legacy flag: %w", err)
	}
	return nil
}

// addOfficialFlags derives is_official and is_custom from the protected tags,
// makes the tags agree with the flag, and backfills name_key.
func (m *Migrator) addOfficialFlags(ctx context.Context, q dbtx, _ *MigrationReport) error {
	addedOfficial, err := addColumnIfMissing(ctx, q, "spells", "is_official", "INTEGER NOT NULL DEFAULT 0")
	if err != nil {
		return err
	}
	addedCustom, err := addColumnIfMissing(ctx, q, "spells", "is_custom", "INTEGER NOT NULL DEFAULT 0")
	if err != nil {
		return err
	}
	if _, err := addColumnIfMissing(ctx, q, "spells", "name_key", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}

	if addedOfficial {
		_, err := q.ExecContext(ctx, `UPDATE spells SET is_official = EXISTS (
    SELECT 1 FROM spell_tags t WHERE t.spell_id = spells.id AND t.tag = ? COLLATE NOCASE)`, tags.Official)
		if err != nil {
			return fmt.Errorf("backfilling official flag: %w", err)
		}
	}
	if addedCustom {
		if _, err := q.ExecContext(ctx, "UPDATE spells SET is_custom = 1 - is_official"); err != nil {
			return fmt.Errorf("backfilling custom flag: %w", err)
		}
	}

	_, err = q.ExecContext(ctx, `DELETE FROM spell_tags
WHERE (tag = ? COLLATE NOCASE AND spell_id IN (SELECT id FROM spells WHERE is_official = 1))
   OR (tag = ? COLLATE NOCASE AND spell_id IN (SELECT id FROM spells WHERE is_official = 0))`,
		tags.Unofficial, tags.Official)
	if err != nil {
		return fmt.Errorf("removing disagreeing protected tags: %w", err)
	}
	_, err = q.ExecContext(ctx, `INSERT OR IGNORE INTO spell_tags (spell_id, tag)
SELECT id, CASE WHEN is_official = 1 THEN ? ELSE ? END FROM spells`, tags.Official, tags.Unofficial)
	if err != nil {
		return fmt.Errorf("adding protected tags: %w", err)
	}

	if err := m.backfillNameKeys(ctx, q, "spells"); err != nil {
		return err
	}
	return execAll(ctx, q, nameKeyIndexDDL)
}

// backfillNameKeys fills empty name_key values with the folded name. Names
// that fold to a key already taken, such as Straße and Strasse, get the row
// id appended so the unique index can be built; exact-name lookups still
// reach them.
func (m *Migrator) backfillNameKeys(ctx context.Context, q dbtx, table string) error {
	taken := make(map[string]bool)
	existing, err := distinctStrings(ctx, q, fmt.Sprintf("SELECT name_key FROM %s WHERE name_key != ''", table))
	if err != nil {
		return err
	}
	for _, k := range existing {
		taken[k] = true
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT id, name FROM %s WHERE name_key = '' ORDER BY id", table))
	if err != nil {
		return fmt.Errorf("reading %s names: %w", table, err)
	}
	type pending struct {
		id   int64
		name string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.name); err != nil {
			rows.Close()
			return fmt.Errorf("scanning %s name: %w", table, err)
		}
		todo = append(todo, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	stmt := fmt.Sprintf("UPDATE %s SET name_key = ? WHERE id = ?", table)
	for _, p := range todo {
		key := tags.Key(p.name)
		if taken[key] {
			folded := key
			for n := 0; taken[key]; n++ {
				key = fmt.Sprintf("%s#%d", folded, p.id)
				if n > 0 {
					key = fmt.Sprintf("%s.%d", key, n)
				}
			}
			m.logger.Warn("name folds onto an existing entry; key disambiguated",
				"table", table, "id", p.id, "name", p.name, "key", key)
		}
		taken[key] = true
		if _, err := q.ExecContext(ctx, stmt, key, p.id); err != nil {
			return fmt.Errorf("backfilling %s name key: %w", table, err)
		}
	}
	return nil
}

func (m *Migrator) createLineagesAndFeats(ctx context.Context, q dbtx, rep *MigrationReport) error {
	if err := execAll(ctx, q, []string{createLineages, createFeats}); err != nil {
		return err
	}
	return m.seed(ctx, q, rep, types.KindLineages, types.KindFeats)
}

func (m *Migrator) createBackgroundsAndClasses(ctx context.Context, q dbtx, rep *MigrationReport) error {
	if err := execAll(ctx, q, concatDDL([]string{createBackgrounds, createClasses, createSubclasses}, subclassIndexDDL)); err != nil {
		return err
	}
	return m.seed(ctx, q, rep, types.KindBackgrounds, types.KindClasses)
}

func (m *Migrator) seed(ctx context.Context, q dbtx, rep *MigrationReport, kinds ...types.Kind) error {
	counts, err := m.pipeline.seedTx(ctx, q, kinds...)
	if err != nil {
		return err
	}
	for k, n := range counts {
		rep.Seeded[k] += n
	}
	return nil
}

// rewrapClassDocuments gives every class and subclass sub-document column a
// version envelope. Subclass bundles found in the bundled classes document
// are replaced with the bundled definition.
func (m *Migrator) rewrapClassDocuments(ctx context.Context, q dbtx, _ *MigrationReport) error {
	if err := m.rewrapClassColumns(ctx, q); err != nil {
		return err
	}
	canonical, err := m.bundledSubclasses()
	if err != nil {
		return err
	}

	rows, err := q.QueryContext(ctx, `SELECT s.id, s.name, c.name, s.features_json
FROM subclasses s JOIN classes c ON c.id = s.class_id ORDER BY s.id`)
	if err != nil {
		return fmt.Errorf("reading subclasses: %w", err)
	}
	type rewrite struct {
		id     int64
		bundle string
	}
	var todo []rewrite
	for rows.Next() {
		var (
			id               int64
			name, class, raw string
		)
		if err := rows.Scan(&id, &name, &class, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("scanning subclass: %w", err)
		}
		version, err := types.SubDocVersionOf(raw)
		if err == nil && version > 0 {
			continue
		}
		var bundle types.SubclassBundle
		if sub, ok := canonical[tags.Key(class)][tags.Key(name)]; ok {
			bundle = sub.Bundle()
		} else if bundle, err = legacySubclassBundle(raw); err != nil {
			m.logger.Warn("discarding unreadable subclass features", "class", class, "subclass", name, "error", err)
			bundle = types.SubclassBundle{}
		}
		encoded, err := types.EncodeSubDoc(bundle)
		if err != nil {
			rows.Close()
			return fmt.Errorf("subclass %q: %w", name, err)
		}
		todo = append(todo, rewrite{id, encoded})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, r := range todo {
		if _, err := q.ExecContext(ctx, "UPDATE subclasses SET features_json = ? WHERE id = ?", r.bundle, r.id); err != nil {
			return fmt.Errorf("rewriting subclass features: %w", err)
		}
	}
	m.logger.Debug("rewrapped subclass bundles", "rows", len(todo))
	return nil
}

// legacySubclassBundle reads a subclass payload written before bundles were
// versioned: either a bare feature list or an unversioned bundle object.
func legacySubclassBundle(raw string) (types.SubclassBundle, error) {
	var b types.SubclassBundle
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &b.Features); err != nil {
			return b, fmt.Errorf("%w: %w", types.ErrMalformedSubDocument, err)
		}
		return b, b.Validate()
	}
	err := types.DecodeSubDoc(raw, &b)
	return b, err
}

// bundledSubclasses indexes the bundled classes document by folded class and
// subclass name.
func (m *Migrator) bundledSubclasses() (map[string]map[string]types.Subclass, error) {
	doc, err := m.pipeline.bundle.document(types.KindClasses)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]types.Subclass)
	for _, raw := range doc.Records {
		c, err := types.DecodeRecord[types.CharacterClass](raw)
		if err != nil {
			continue
		}
		subs := make(map[string]types.Subclass, len(c.Subclasses))
		for _, s := range c.Subclasses {
			subs[tags.Key(s.Name)] = s
		}
		out[tags.Key(c.Name)] = subs
	}
	return out, nil
}

// rewrapClassColumns envelopes class sub-document columns stored bare.
func (m *Migrator) rewrapClassColumns(ctx context.Context, q dbtx) error {
	rows, err := q.QueryContext(ctx, `SELECT id, name, starting_equipment_options_json, levels_json,
    trackable_features_json, class_spells_json FROM classes ORDER BY id`)
	if err != nil {
		return fmt.Errorf("reading classes: %w", err)
	}
	type rewrite struct {
		id   int64
		cols [4]string
	}
	var todo []rewrite
	for rows.Next() {
		var (
			r    rewrite
			name string
		)
		if err := rows.Scan(&r.id, &name, &r.cols[0], &r.cols[1], &r.cols[2], &r.cols[3]); err != nil {
			rows.Close()
			return fmt.Errorf("scanning class: %w", err)
		}
		var (
			options   types.EquipmentOptions
			levels    types.ClassLevels
			trackable types.TrackableFeatures
			spells    types.ClassSpells
		)
		changed := false
		for i, d := range []types.SubDocument{&options, &levels, &trackable, &spells} {
			out, ok, err := rewrapSubDoc(r.cols[i], d)
			if err != nil {
				rows.Close()
				return fmt.Errorf("class %q: %w", name, err)
			}
			if ok {
				r.cols[i] = out
				changed = true
			}
		}
		if changed {
			todo = append(todo, r)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, r := range todo {
		_, err := q.ExecContext(ctx, `UPDATE classes SET starting_equipment_options_json = ?, levels_json = ?,
    trackable_features_json = ?, class_spells_json = ? WHERE id = ?`,
			r.cols[0], r.cols[1], r.cols[2], r.cols[3], r.id)
		if err != nil {
			return fmt.Errorf("rewriting class sub-documents: %w", err)
		}
	}
	return nil
}

// rewrapSubDoc returns raw in enveloped form and whether it changed.
func rewrapSubDoc(raw string, v types.SubDocument) (string, bool, error) {
	version, err := types.SubDocVersionOf(raw)
	if err != nil {
		return "", false, err
	}
	if version > 0 {
		return raw, false, nil
	}
	if err := types.DecodeSubDoc(raw, v); err != nil {
		return "", false, err
	}
	out, err := types.EncodeSubDoc(v)
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}
