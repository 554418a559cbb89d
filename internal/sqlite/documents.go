// This file implements the import/export pipeline between document form and
// the relational store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mesh-intelligence/spellbook/internal/notify"
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// collection is the document-facing side of one store.
type collection interface {
	exportDoc(ctx context.Context) (*types.Document, error)
	importDocTx(ctx context.Context, q dbtx, doc *types.Document, markAsCustom bool) ([]string, error)
	seedDocTx(ctx context.Context, q dbtx, doc *types.Document) ([]string, error)
	notifyImport(names []string)
}

func (s *Store[T, PT]) exportDoc(ctx context.Context) (*types.Document, error) {
	return s.Export(ctx)
}

func (s *Store[T, PT]) importDocTx(ctx context.Context, q dbtx, doc *types.Document, markAsCustom bool) ([]string, error) {
	return s.importTx(ctx, q, doc, markAsCustom, nil)
}

func (s *Store[T, PT]) seedDocTx(ctx context.Context, q dbtx, doc *types.Document) ([]string, error) {
	return s.importTx(ctx, q, doc, false, nil)
}

func (s *Store[T, PT]) notifyImport(names []string) {
	if len(names) > 0 {
		s.publish(notify.OpImport, names...)
	}
}

// seedDocTx seeds bundled spells as restorable under their own names.
func (s *SpellStore) seedDocTx(ctx context.Context, q dbtx, doc *types.Document) ([]string, error) {
	return s.importTx(ctx, q, doc, false, seedSpellDefaults)
}

// statBlockCollection adapts the stat block children of SpellStore to the
// collection interface.
type statBlockCollection struct {
	spells *SpellStore
}

func (c statBlockCollection) exportDoc(ctx context.Context) (*types.Document, error) {
	blocks, err := c.spells.AllStatBlocks(ctx)
	if err != nil {
		return nil, err
	}
	return types.NewDocument(types.KindStatBlocks, 1, blocks)
}

func (c statBlockCollection) importDocTx(ctx context.Context, q dbtx, doc *types.Document, _ bool) ([]string, error) {
	return c.spells.importStatBlocksTx(ctx, q, doc)
}

func (c statBlockCollection) seedDocTx(ctx context.Context, q dbtx, doc *types.Document) ([]string, error) {
	return c.spells.importStatBlocksTx(ctx, q, doc)
}

func (c statBlockCollection) notifyImport(names []string) {
	if len(names) > 0 {
		c.spells.broker.Publish(notify.NewEvent(types.KindStatBlocks, notify.OpImport, names...))
	}
}

// Pipeline moves collections between document form and the store.
type Pipeline struct {
	db          *sql.DB
	collections map[types.Kind]collection
	bundle      bundleSource
	logger      *slog.Logger
}

func (p *Pipeline) collection(kind types.Kind) (collection, error) {
	c, ok := p.collections[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownKind, kind)
	}
	return c, nil
}

// SeedFromDocuments inserts every bundled record, skipping names already
// present, and returns the number inserted per collection.
func (p *Pipeline) SeedFromDocuments(ctx context.Context) (map[types.Kind]int, error) {
	var counts map[types.Kind]int
	err := withTx(ctx, p.db, func(tx *sql.Tx) error {
		var err error
		counts, err = p.seedTx(ctx, tx, types.Kinds...)
		return err
	})
	return counts, err
}

// seedTx seeds the given collections from the bundle on q.
func (p *Pipeline) seedTx(ctx context.Context, q dbtx, kinds ...types.Kind) (map[types.Kind]int, error) {
	counts := make(map[types.Kind]int, len(kinds))
	for _, kind := range kinds {
		c, err := p.collection(kind)
		if err != nil {
			return nil, err
		}
		doc, err := p.bundle.document(kind)
		if err != nil {
			return nil, err
		}
		names, err := c.seedDocTx(ctx, q, doc)
		if err != nil {
			return nil, fmt.Errorf("seeding %s: %w", kind, err)
		}
		counts[kind] = len(names)
		p.logger.Debug("seeded collection", "kind", kind, "records", len(doc.Records), "inserted", len(names))
	}
	return counts, nil
}

// ExportCollection renders the whole collection in document form.
func (p *Pipeline) ExportCollection(ctx context.Context, kind types.Kind) (*types.Document, error) {
	c, err := p.collection(kind)
	if err != nil {
		return nil, err
	}
	return c.exportDoc(ctx)
}

// ImportCollection inserts the records of doc into its collection and
// returns the number inserted. Name collisions and malformed records are
// skipped.
func (p *Pipeline) ImportCollection(ctx context.Context, kind types.Kind, doc *types.Document, markAsCustom bool) (int, error) {
	c, err := p.collection(kind)
	if err != nil {
		return 0, err
	}
	var names []string
	err = withTx(ctx, p.db, func(tx *sql.Tx) error {
		var err error
		names, err = c.importDocTx(ctx, tx, doc, markAsCustom)
		return err
	})
	if err != nil {
		return 0, err
	}
	c.notifyImport(names)
	return len(names), nil
}

// ExportFile writes the collection to path atomically, in the format implied
// by the file extension.
func (p *Pipeline) ExportFile(ctx context.Context, kind types.Kind, path string) error {
	doc, err := p.ExportCollection(ctx, kind)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		return doc.Write(w, types.FormatFromPath(path))
	})
}

// ImportFile reads a document from path, in the format implied by the file
// extension, and imports it.
func (p *Pipeline) ImportFile(ctx context.Context, kind types.Kind, path string, markAsCustom bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	doc, err := types.ReadDocument(f, kind, types.FormatFromPath(path))
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	return p.ImportCollection(ctx, kind, doc, markAsCustom)
}
