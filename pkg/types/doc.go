// Package types defines the content entities, store interfaces, document
// form, and standard errors for the spellbook persistence core.
//
// Every top-level entity (Spell, Lineage, Feat, Background, CharacterClass)
// embeds Content, the shared name/description/source shape with the
// official, custom, and legacy flags. Names are unique case-insensitively.
package types
