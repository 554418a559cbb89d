package types

import "context"

// ContentStore provides uniform operations over one content collection.
// Lookups by name are case-insensitive. NotFound and duplicate outcomes are
// reported through the boolean results, never as errors.
type ContentStore[T any] interface {
	// Get retrieves the entity with the given name.
	Get(ctx context.Context, name string) (T, bool, error)

	// Add persists a new entity. Returns false when the name is taken.
	Add(ctx context.Context, item T) (bool, error)

	// Update replaces the entity currently stored under name. Returns false
	// when no entity has that name or the new name belongs to another entity.
	Update(ctx context.Context, name string, item T) (bool, error)

	// Remove deletes the entity and every child it owns.
	Remove(ctx context.Context, name string) (bool, error)

	// All returns every entity ordered by name.
	All(ctx context.Context) ([]T, error)

	// Search matches query as a case-insensitive substring of any of the
	// given fields (name and description by default). An empty query
	// returns everything.
	Search(ctx context.Context, query string, fields ...string) ([]T, error)

	// Sources returns the distinct non-empty source labels.
	Sources(ctx context.Context) ([]string, error)

	// Export renders the given entities, or the whole collection when none
	// are given, in document form.
	Export(ctx context.Context, items ...T) (*Document, error)

	// Import inserts every record of doc whose name is free and returns the
	// number inserted.
	Import(ctx context.Context, doc *Document, markAsCustom bool) (int, error)
}
