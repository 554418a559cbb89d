// Package sqlite provides the public API for the SQLite spellbook store.
// It exposes the constructor and store types while keeping the
// implementation internal.
package sqlite

import (
	"context"

	"github.com/mesh-intelligence/spellbook/internal/sqlite"
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// Backend is an open store with one collection per content kind.
type Backend = sqlite.Backend

// SpellStore and ClassStore are the collections with kind-specific
// operations beyond the generic store.
type (
	SpellStore = sqlite.SpellStore
	ClassStore = sqlite.ClassStore
)

// Option configures Open.
type Option = sqlite.Option

// MigrationReport describes what opening did to the schema.
type MigrationReport = sqlite.MigrationReport

// LatestVersion is the schema version this build writes.
const LatestVersion = sqlite.LatestVersion

// WithLogger and WithBundle configure Open.
var (
	WithLogger = sqlite.WithLogger
	WithBundle = sqlite.WithBundle
)

// Open opens (creating and seeding if needed) the store described by cfg
// and migrates it to LatestVersion. The caller must Close it.
//
// Example:
//
//	b, err := sqlite.Open(ctx, types.Config{DataDir: dir})
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//	spells, err := b.Spells.Search(ctx, types.SpellFilter{Class: "Wizard"})
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*Backend, error) {
	return sqlite.Open(ctx, cfg, opts...)
}
