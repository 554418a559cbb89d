// This file implements the versioned schema migrator.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// MigrationReport describes one EnsureLatest run.
type MigrationReport struct {
	RunID   uuid.UUID
	From    int
	To      int
	Fresh   bool
	Applied []int
	Seeded  map[types.Kind]int
}

// Migrator brings a store's schema to LatestVersion.
type Migrator struct {
	db       *sql.DB
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewMigrator returns a migrator that seeds bundled content through pipeline.
func NewMigrator(db *sql.DB, pipeline *Pipeline, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Migrator{db: db, pipeline: pipeline, logger: logger}
}

// CurrentVersion returns the stored schema version, or 0 when the store has
// none.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	v, _, err := readVersion(ctx, m.db)
	return v, err
}

// EnsureLatest applies every pending step in one transaction. A store with
// no version row is created at the latest schema and seeded directly.
func (m *Migrator) EnsureLatest(ctx context.Context) (MigrationReport, error) {
	return m.migrateTo(ctx, LatestVersion)
}

// migrateTo runs the steps up to target. Stopping short of LatestVersion is
// only used to build historical stores.
func (m *Migrator) migrateTo(ctx context.Context, target int) (MigrationReport, error) {
	rep := MigrationReport{RunID: newRunID(), To: target, Seeded: map[types.Kind]int{}}
	log := m.logger.With("run_id", rep.RunID.String())

	err := withTx(ctx, m.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createSchemaVersion); err != nil {
			return fmt.Errorf("%w: creating schema_version: %w", types.ErrMigrationFailed, err)
		}
		from, found, err := readVersion(ctx, tx)
		if err != nil {
			return err
		}
		if !found {
			// A spells table without a version row predates versioning.
			legacy, err := tableExists(ctx, tx, "spells")
			if err != nil {
				return err
			}
			if legacy {
				from = 1
			}
		}
		rep.From = from
		if from > LatestVersion {
			return fmt.Errorf("%w: store is at version %d, this build supports %d",
				types.ErrSchemaTooNew, from, LatestVersion)
		}
		if from >= target {
			rep.To = from
			return nil
		}

		if from == 0 && target == LatestVersion {
			rep.Fresh = true
			return m.createFresh(ctx, tx, &rep)
		}

		for _, step := range migrationSteps {
			if step.version <= from || step.version > target {
				continue
			}
			log.Debug("applying migration step", "step", step.version, "name", step.name)
			if err := step.apply(m, ctx, tx, &rep); err != nil {
				return fmt.Errorf("%w: step %d (%s): %w", types.ErrMigrationFailed, step.version, step.name, err)
			}
			if err := writeVersion(ctx, tx, step.version); err != nil {
				return fmt.Errorf("%w: step %d (%s): %w", types.ErrMigrationFailed, step.version, step.name, err)
			}
			rep.Applied = append(rep.Applied, step.version)
		}
		return nil
	})
	if err != nil {
		log.Error("schema migration failed", "error", err)
		return rep, err
	}
	if rep.Fresh || len(rep.Applied) > 0 {
		log.Info("schema migrated", "from", rep.From, "to", rep.To, "fresh", rep.Fresh, "applied", rep.Applied)
	}
	return rep, nil
}

// createFresh builds the latest schema and seeds every collection.
func (m *Migrator) createFresh(ctx context.Context, q dbtx, rep *MigrationReport) error {
	if err := execAll(ctx, q, latestSchemaDDL); err != nil {
		return fmt.Errorf("%w: creating schema: %w", types.ErrMigrationFailed, err)
	}
	counts, err := m.pipeline.seedTx(ctx, q, types.Kinds...)
	if err != nil {
		return fmt.Errorf("%w: seeding: %w", types.ErrMigrationFailed, err)
	}
	for k, n := range counts {
		rep.Seeded[k] += n
	}
	if err := writeVersion(ctx, q, LatestVersion); err != nil {
		return fmt.Errorf("%w: %w", types.ErrMigrationFailed, err)
	}
	return nil
}

// readVersion returns the stored version and whether a row exists. A missing
// schema_version table counts as no row.
func readVersion(ctx context.Context, q dbtx) (int, bool, error) {
	exists, err := tableExists(ctx, q, "schema_version")
	if err != nil || !exists {
		return 0, false, err
	}
	var v int
	err = q.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading schema version: %w", err)
	}
	return v, true, nil
}

// writeVersion stores v as the single version row.
func writeVersion(ctx context.Context, q dbtx, v int) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("clearing schema version: %w", err)
	}
	if _, err := q.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
		return fmt.Errorf("writing schema version %d: %w", v, err)
	}
	return nil
}

func newRunID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
