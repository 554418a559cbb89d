package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/spellbook/internal/bundle"
	"github.com/mesh-intelligence/spellbook/internal/notify"
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// Backend owns the database handle and the stores built over it.
type Backend struct {
	mu     sync.Mutex
	closed bool
	config types.Config
	db     *sql.DB
	logger *slog.Logger

	Broker      *notify.Broker
	Spells      *SpellStore
	Lineages    *Store[types.Lineage, *types.Lineage]
	Feats       *Store[types.Feat, *types.Feat]
	Backgrounds *Store[types.Background, *types.Background]
	Classes     *ClassStore
	Pipeline    *Pipeline

	migrator  *Migrator
	migration MigrationReport
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger *slog.Logger
	bundle fs.FS
}

// WithLogger sets the logger used by the backend and its stores.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBundle replaces the embedded rules documents used for seeding and
// restoring. A nil fsys disables bundled content.
func WithBundle(fsys fs.FS) Option {
	return func(o *options) { o.bundle = fsys }
}

// Open opens (creating if needed) the database described by cfg and brings
// its schema to LatestVersion.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{bundle: bundle.Files()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(dataDir, cfg.DatabaseName())
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)",
		path, cfg.Timeout().Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// One connection serializes writers and keeps the pragmas in force.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}

	b := newBackend(db, cfg, o)
	rep, err := b.migrator.EnsureLatest(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	b.migration = rep
	b.logger.Debug("opened store", "path", path, "version", rep.To)
	return b, nil
}

func newBackend(db *sql.DB, cfg types.Config, o options) *Backend {
	broker := notify.NewBroker(o.logger)
	src := bundleSource{fsys: o.bundle}
	b := &Backend{
		config: cfg,
		db:     db,
		logger: o.logger,
		Broker: broker,
		Spells: &SpellStore{
			Store:  newStore[types.Spell, *types.Spell](db, spellCodec(), broker, o.logger),
			bundle: src,
		},
		Lineages:    newStore[types.Lineage, *types.Lineage](db, lineageCodec(), broker, o.logger),
		Feats:       newStore[types.Feat, *types.Feat](db, featCodec(), broker, o.logger),
		Backgrounds: newStore[types.Background, *types.Background](db, backgroundCodec(), broker, o.logger),
		Classes: &ClassStore{
			Store: newStore[types.CharacterClass, *types.CharacterClass](db, classCodec(), broker, o.logger),
		},
	}
	b.Pipeline = &Pipeline{
		db: db,
		collections: map[types.Kind]collection{
			types.KindSpells:      b.Spells,
			types.KindStatBlocks:  statBlockCollection{spells: b.Spells},
			types.KindLineages:    b.Lineages,
			types.KindFeats:       b.Feats,
			types.KindBackgrounds: b.Backgrounds,
			types.KindClasses:     b.Classes,
		},
		bundle: src,
		logger: o.logger,
	}
	b.migrator = NewMigrator(db, b.Pipeline, o.logger)
	return b
}

// Migrator returns the backend's schema migrator.
func (b *Backend) Migrator() *Migrator { return b.migrator }

// Migration reports what Open did to the schema.
func (b *Backend) Migration() MigrationReport { return b.migration }

// Config returns the configuration the backend was opened with.
func (b *Backend) Config() types.Config { return b.config }

// Close releases the database handle. Close is idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}
