// Package sqlite implements the SQLite store for spellbook content.
// This file holds the schema DDL. The create* constants describe the latest
// schema used for fresh stores; the step* constants are the historical
// shapes applied by migrations.
package sqlite

// LatestVersion is the schema version written by this build.
const LatestVersion = 11

const createSchemaVersion = `CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
)`

// Version 1 tables.
const (
	stepSpells = `CREATE TABLE IF NOT EXISTS spells (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE COLLATE NOCASE,
    level INTEGER NOT NULL CHECK(level >= 0 AND level <= 9),
    casting_time TEXT NOT NULL,
    ritual INTEGER NOT NULL DEFAULT 0,
    range_value INTEGER NOT NULL,
    components TEXT NOT NULL,
    duration TEXT NOT NULL,
    concentration INTEGER NOT NULL DEFAULT 0,
    description TEXT,
    source TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

	createSpellClasses = `CREATE TABLE IF NOT EXISTS spell_classes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    spell_id INTEGER NOT NULL,
    class_name TEXT NOT NULL,
    FOREIGN KEY (spell_id) REFERENCES spells(id) ON DELETE CASCADE,
    UNIQUE(spell_id, class_name)
)`

	createSpellTags = `CREATE TABLE IF NOT EXISTS spell_tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    spell_id INTEGER NOT NULL,
    tag TEXT NOT NULL,
    FOREIGN KEY (spell_id) REFERENCES spells(id) ON DELETE CASCADE,
    UNIQUE(spell_id, tag)
)`
)

// createSpells is the latest spells table: version 1 plus the columns added
// by steps 2, 5, 7, and 8.
const createSpells = `CREATE TABLE IF NOT EXISTS spells (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE COLLATE NOCASE,
    level INTEGER NOT NULL CHECK(level >= 0 AND level <= 9),
    casting_time TEXT NOT NULL,
    ritual INTEGER NOT NULL DEFAULT 0,
    range_value INTEGER NOT NULL,
    components TEXT NOT NULL,
    duration TEXT NOT NULL,
    concentration INTEGER NOT NULL DEFAULT 0,
    description TEXT,
    source TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    is_modified INTEGER NOT NULL DEFAULT 0,
    original_name TEXT DEFAULT '',
    is_legacy INTEGER NOT NULL DEFAULT 0,
    is_official INTEGER NOT NULL DEFAULT 0,
    is_custom INTEGER NOT NULL DEFAULT 0,
    name_key TEXT NOT NULL DEFAULT ''
)`

const createStatBlocks = `CREATE TABLE IF NOT EXISTS stat_blocks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    spell_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    size TEXT NOT NULL DEFAULT 'Medium',
    creature_type TEXT NOT NULL DEFAULT '',
    creature_subtype TEXT DEFAULT '',
    alignment TEXT DEFAULT 'Neutral',
    armor_class TEXT NOT NULL DEFAULT '',
    hit_points TEXT NOT NULL DEFAULT '',
    speed TEXT NOT NULL DEFAULT '',
    abilities_json TEXT,
    damage_resistances TEXT DEFAULT '',
    damage_immunities TEXT DEFAULT '',
    condition_immunities TEXT DEFAULT '',
    senses TEXT DEFAULT '',
    languages TEXT DEFAULT '',
    challenge_rating TEXT DEFAULT '',
    traits_json TEXT DEFAULT '[]',
    actions_json TEXT DEFAULT '[]',
    bonus_actions_json TEXT DEFAULT '[]',
    reactions_json TEXT DEFAULT '[]',
    legendary_actions_json TEXT DEFAULT '[]',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (spell_id) REFERENCES spells(id) ON DELETE CASCADE
)`

// Version 9 tables.
const (
	createLineages = `CREATE TABLE IF NOT EXISTS lineages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL COLLATE NOCASE,
    name_key TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    is_official INTEGER NOT NULL DEFAULT 0,
    is_custom INTEGER NOT NULL DEFAULT 0,
    is_legacy INTEGER NOT NULL DEFAULT 0,
    creature_type TEXT NOT NULL DEFAULT 'Humanoid',
    size TEXT NOT NULL DEFAULT 'Medium',
    speed INTEGER NOT NULL DEFAULT 30,
    traits_json TEXT NOT NULL DEFAULT '[]'
)`

	createFeats = `CREATE TABLE IF NOT EXISTS feats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL COLLATE NOCASE,
    name_key TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    is_official INTEGER NOT NULL DEFAULT 0,
    is_custom INTEGER NOT NULL DEFAULT 0,
    is_legacy INTEGER NOT NULL DEFAULT 0,
    type TEXT NOT NULL DEFAULT '',
    is_spellcasting INTEGER NOT NULL DEFAULT 0,
    spell_lists_json TEXT NOT NULL DEFAULT '[]',
    spells_num_json TEXT NOT NULL DEFAULT '{}',
    has_prereq INTEGER NOT NULL DEFAULT 0,
    prereq TEXT NOT NULL DEFAULT '',
    set_spells_json TEXT NOT NULL DEFAULT '[]'
)`
)

// Version 10 tables.
const (
	createBackgrounds = `CREATE TABLE IF NOT EXISTS backgrounds (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL COLLATE NOCASE,
    name_key TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    is_official INTEGER NOT NULL DEFAULT 0,
    is_custom INTEGER NOT NULL DEFAULT 0,
    is_legacy INTEGER NOT NULL DEFAULT 0,
    skills_json TEXT NOT NULL DEFAULT '[]',
    other_proficiencies_json TEXT NOT NULL DEFAULT '[]',
    ability_scores_json TEXT NOT NULL DEFAULT '[]',
    feats_json TEXT NOT NULL DEFAULT '[]',
    equipment TEXT NOT NULL DEFAULT '',
    features_json TEXT NOT NULL DEFAULT '[]'
)`

	createClasses = `CREATE TABLE IF NOT EXISTS classes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL COLLATE NOCASE,
    name_key TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    is_official INTEGER NOT NULL DEFAULT 0,
    is_custom INTEGER NOT NULL DEFAULT 0,
    is_legacy INTEGER NOT NULL DEFAULT 0,
    hit_die TEXT NOT NULL DEFAULT 'd8',
    primary_ability TEXT NOT NULL DEFAULT '',
    armor_proficiencies_json TEXT NOT NULL DEFAULT '[]',
    weapon_proficiencies_json TEXT NOT NULL DEFAULT '[]',
    tool_proficiencies_json TEXT NOT NULL DEFAULT '[]',
    saving_throw_proficiencies_json TEXT NOT NULL DEFAULT '[]',
    skill_proficiency_choices INTEGER NOT NULL DEFAULT 2,
    skill_proficiency_options_json TEXT NOT NULL DEFAULT '[]',
    starting_equipment_json TEXT NOT NULL DEFAULT '[]',
    starting_equipment_options_json TEXT NOT NULL DEFAULT '[]',
    starting_gold_alternative TEXT NOT NULL DEFAULT '',
    is_spellcaster INTEGER NOT NULL DEFAULT 0,
    spellcasting_ability TEXT NOT NULL DEFAULT '',
    subclass_level INTEGER NOT NULL DEFAULT 3,
    subclass_name TEXT NOT NULL DEFAULT '',
    levels_json TEXT NOT NULL DEFAULT '{}',
    trackable_features_json TEXT NOT NULL DEFAULT '[]',
    class_table_columns_json TEXT NOT NULL DEFAULT '[]',
    class_spells_json TEXT NOT NULL DEFAULT '[]',
    unarmored_defense TEXT NOT NULL DEFAULT ''
)`

	createSubclasses = `CREATE TABLE IF NOT EXISTS subclasses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    class_id INTEGER NOT NULL,
    name TEXT NOT NULL COLLATE NOCASE,
    name_key TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    is_custom INTEGER NOT NULL DEFAULT 0,
    features_json TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (class_id) REFERENCES classes(id) ON DELETE CASCADE,
    UNIQUE(class_id, name_key)
)`
)

// Indexes, grouped by the version that introduced them.
var (
	spellIndexDDL = []string{
		"CREATE INDEX IF NOT EXISTS idx_spells_level ON spells(level)",
		"CREATE INDEX IF NOT EXISTS idx_spells_name ON spells(name)",
		"CREATE INDEX IF NOT EXISTS idx_spell_classes_spell_id ON spell_classes(spell_id)",
		"CREATE INDEX IF NOT EXISTS idx_spell_classes_class ON spell_classes(class_name)",
		"CREATE INDEX IF NOT EXISTS idx_spell_tags_spell_id ON spell_tags(spell_id)",
		"CREATE INDEX IF NOT EXISTS idx_spell_tags_tag ON spell_tags(tag)",
	}

	statBlockIndexDDL = []string{
		"CREATE INDEX IF NOT EXISTS idx_stat_blocks_spell_id ON stat_blocks(spell_id)",
	}

	nameKeyIndexDDL = []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_spells_name_key ON spells(name_key)",
	}

	subclassIndexDDL = []string{
		"CREATE INDEX IF NOT EXISTS idx_subclasses_class_id ON subclasses(class_id)",
	}
)

// latestSchemaDDL creates every table of the latest schema, in dependency
// order, followed by their indexes.
var latestSchemaDDL = concatDDL(
	[]string{
		createSpells,
		createSpellClasses,
		createSpellTags,
		createStatBlocks,
		createLineages,
		createFeats,
		createBackgrounds,
		createClasses,
		createSubclasses,
	},
	spellIndexDDL,
	statBlockIndexDDL,
	nameKeyIndexDDL,
	subclassIndexDDL,
)

func concatDDL(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
