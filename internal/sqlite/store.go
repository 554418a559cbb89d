package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mesh-intelligence/spellbook/internal/notify"
	"github.com/mesh-intelligence/spellbook/internal/tags"
	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// entityPtr constrains PT to a pointer to T implementing types.Entity.
type entityPtr[T any] interface {
	*T
	types.Entity
}

// column is a type-specific column. fallback, when set, is the SQL literal
// substituted for NULL on read.
type column struct {
	name     string
	fallback string
}

// codec maps one entity type onto its table.
type codec[T any] struct {
	kind       types.Kind
	docVersion int
	columns    []column

	// encode returns values for columns, in order.
	encode func(item *T) ([]any, error)
	// decode returns scan destinations for columns and a hook that runs
	// after the scan.
	decode func(item *T) (dest []any, finish func() error)

	// Optional hooks.
	prepare  func(item *T)
	setID    func(item *T, id int64)
	children func(ctx context.Context, q dbtx, id int64, item *T) error
	hydrate  func(ctx context.Context, q dbtx, ids []int64, items []*T) error

	// searchable lists extra columns accepted by Search.
	searchable []string
}

// contentColumns are shared by every content table, in table order.
var contentColumns = []column{
	{"name", ""},
	{"description", "''"},
	{"source", "''"},
	{"is_official", "0"},
	{"is_custom", "0"},
	{"is_legacy", "0"},
}

// Store is a generic content store over one table. Lookups go through the
// name_key column, which holds the case-folded name and is unique, with an
// exact name match taking precedence.
type Store[T any, PT entityPtr[T]] struct {
	db     *sql.DB
	codec  codec[T]
	broker *notify.Broker
	logger *slog.Logger
}

var _ types.ContentStore[types.Lineage] = (*Store[types.Lineage, *types.Lineage])(nil)

func newStore[T any, PT entityPtr[T]](db *sql.DB, c codec[T], broker *notify.Broker, logger *slog.Logger) *Store[T, PT] {
	return &Store[T, PT]{db: db, codec: c, broker: broker, logger: logger}
}

// Kind returns the collection this store serves.
func (s *Store[T, PT]) Kind() types.Kind { return s.codec.kind }

func (s *Store[T, PT]) table() string { return string(s.codec.kind) }

// selectList renders the read column list, prefixed by alias.
func (s *Store[T, PT]) selectList(alias string) string {
	cols := make([]string, 0, 1+len(contentColumns)+len(s.codec.columns))
	cols = append(cols, alias+".id")
	for _, c := range append(append([]column{}, contentColumns...), s.codec.columns...) {
		if c.fallback != "" {
			cols = append(cols, fmt.Sprintf("COALESCE(%s.%s, %s)", alias, c.name, c.fallback))
		} else {
			cols = append(cols, alias+"."+c.name)
		}
	}
	return strings.Join(cols, ", ")
}

// scanRows reads every row and then runs the hydrate hook once for the batch.
func (s *Store[T, PT]) scanRows(ctx context.Context, q dbtx, rows *sql.Rows) ([]T, []int64, error) {
	var (
		items []*T
		ids   []int64
	)
	for rows.Next() {
		item := new(T)
		var id int64
		base := PT(item).Base()
		dest := []any{&id, &base.Name, &base.Description, &base.Source, &base.IsOfficial, &base.IsCustom, &base.IsLegacy}
		extra, finish := s.codec.decode(item)
		if err := rows.Scan(append(dest, extra...)...); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scanning %s row: %w", s.codec.kind, err)
		}
		if err := finish(); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("decoding %s %q: %w", s.codec.kind, base.Name, err)
		}
		if s.codec.setID != nil {
			s.codec.setID(item, id)
		}
		items = append(items, item)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, fmt.Errorf("iterating %s rows: %w", s.codec.kind, err)
	}
	rows.Close()

	if s.codec.hydrate != nil && len(items) > 0 {
		if err := s.codec.hydrate(ctx, q, ids, items); err != nil {
			return nil, nil, err
		}
	}
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = *item
	}
	return out, ids, nil
}

// list selects rows matching where (which may be empty) ordered by name.
func (s *Store[T, PT]) list(ctx context.Context, q dbtx, where string, args ...any) ([]T, []int64, error) {
	query := fmt.Sprintf("SELECT %s FROM %s e", s.selectList("e"), s.table())
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY e.name COLLATE NOCASE"
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("querying %s: %w", s.codec.kind, err)
	}
	return s.scanRows(ctx, q, rows)
}

// rowRef identifies a stored row by id, stored name and name key.
type rowRef struct {
	id   int64
	name string
	key  string
}

// lookup resolves name to a stored row. A row whose name matches exactly
// wins over one that only shares the folded key, so a row whose key was
// disambiguated during migration stays reachable.
func (s *Store[T, PT]) lookup(ctx context.Context, q dbtx, name string) (rowRef, bool, error) {
	var ref rowRef
	err := q.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, name, name_key FROM %s WHERE name_key = ? OR name = ? ORDER BY name = ? DESC, id LIMIT 1", s.table()),
		tags.Key(name), name, name).Scan(&ref.id, &ref.name, &ref.key)
	if errors.Is(err, sql.ErrNoRows) {
		return rowRef{}, false, nil
	}
	if err != nil {
		return rowRef{}, false, fmt.Errorf("looking up %s %q: %w", s.codec.kind, name, err)
	}
	return ref, true, nil
}

func (s *Store[T, PT]) getTx(ctx context.Context, q dbtx, name string) (T, int64, bool, error) {
	var zero T
	ref, found, err := s.lookup(ctx, q, name)
	if err != nil || !found {
		return zero, 0, false, err
	}
	items, ids, err := s.list(ctx, q, "e.id = ?", ref.id)
	if err != nil {
		return zero, 0, false, err
	}
	if len(items) == 0 {
		return zero, 0, false, nil
	}
	return items[0], ids[0], true, nil
}

func (s *Store[T, PT]) idOf(ctx context.Context, q dbtx, name string) (int64, bool, error) {
	ref, found, err := s.lookup(ctx, q, name)
	return ref.id, found, err
}

// prepare validates item and applies the codec's write normalization.
func (s *Store[T, PT]) prepare(item *T) error {
	base := PT(item).Base()
	base.Name = strings.TrimSpace(base.Name)
	if s.codec.prepare != nil {
		s.codec.prepare(item)
	}
	if err := PT(item).Validate(); err != nil {
		return fmt.Errorf("invalid %s: %w", s.codec.kind, err)
	}
	return nil
}

func (s *Store[T, PT]) writeValues(item *T) ([]any, error) {
	base := PT(item).Base()
	extra, err := s.codec.encode(item)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %q: %w", s.codec.kind, base.Name, err)
	}
	vals := []any{base.Name, base.Description, base.Source, base.IsOfficial, base.IsCustom, base.IsLegacy}
	return append(vals, extra...), nil
}

func (s *Store[T, PT]) columnNames() []string {
	names := make([]string, 0, len(contentColumns)+len(s.codec.columns))
	for _, c := range contentColumns {
		names = append(names, c.name)
	}
	for _, c := range s.codec.columns {
		names = append(names, c.name)
	}
	return names
}

// insertTx inserts a prepared item. It returns false when the name is taken.
func (s *Store[T, PT]) insertTx(ctx context.Context, q dbtx, item *T) (bool, error) {
	base := PT(item).Base()
	if _, found, err := s.idOf(ctx, q, base.Name); err != nil || found {
		return false, err
	}
	vals, err := s.writeValues(item)
	if err != nil {
		return false, err
	}
	cols := append(s.columnNames(), "name_key")
	vals = append(vals, tags.Key(base.Name))
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table(), strings.Join(cols, ", "), placeholders(len(cols)))
	res, err := q.ExecContext(ctx, stmt, vals...)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inserting %s %q: %w", s.codec.kind, base.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("reading %s id: %w", s.codec.kind, err)
	}
	if s.codec.children != nil {
		if err := s.codec.children(ctx, q, id, item); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Get retrieves the entity with the given name, ignoring case.
func (s *Store[T, PT]) Get(ctx context.Context, name string) (T, bool, error) {
	item, _, found, err := s.getTx(ctx, s.db, name)
	return item, found, err
}

// Add persists item and notifies subscribers. It returns false when an
// entity with the same case-insensitive name exists.
func (s *Store[T, PT]) Add(ctx context.Context, item T) (bool, error) {
	if err := s.prepare(&item); err != nil {
		return false, err
	}
	var added bool
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		added, err = s.insertTx(ctx, tx, &item)
		return err
	})
	if err != nil || !added {
		return false, err
	}
	s.publish(notify.OpAdd, PT(&item).Base().Name)
	return true, nil
}

// Update replaces the entity stored under name with item, children included.
// It returns false when name is absent or item's name belongs to a
// different entity.
func (s *Store[T, PT]) Update(ctx context.Context, name string, item T) (bool, error) {
	if err := s.prepare(&item); err != nil {
		return false, err
	}
	var updated bool
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		updated, err = s.updateTx(ctx, tx, name, &item)
		return err
	})
	if err != nil || !updated {
		return false, err
	}
	s.publish(notify.OpUpdate, PT(&item).Base().Name)
	return true, nil
}

func (s *Store[T, PT]) updateTx(ctx context.Context, q dbtx, name string, item *T) (bool, error) {
	current, found, err := s.lookup(ctx, q, name)
	if err != nil || !found {
		return false, err
	}
	id := current.id
	base := PT(item).Base()
	if other, taken, err := s.idOf(ctx, q, base.Name); err != nil {
		return false, err
	} else if taken && other != id {
		return false, nil
	}

	vals, err := s.writeValues(item)
	if err != nil {
		return false, err
	}
	// A rename that keeps the folded name keeps the stored key.
	key := tags.Key(base.Name)
	if key == tags.Key(current.name) {
		key = current.key
	}
	cols := append(s.columnNames(), "name_key")
	vals = append(vals, key, id)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", s.table(), strings.Join(sets, ", "))
	if _, err := q.ExecContext(ctx, stmt, vals...); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("updating %s %q: %w", s.codec.kind, name, err)
	}
	if s.codec.children != nil {
		if err := s.codec.children(ctx, q, id, item); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Remove deletes the entity; owned children go with it through ON DELETE
// CASCADE.
func (s *Store[T, PT]) Remove(ctx context.Context, name string) (bool, error) {
	var (
		ref     rowRef
		removed bool
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if ref, removed, err = s.lookup(ctx, tx, name); err != nil || !removed {
			return err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table()), ref.id); err != nil {
			return fmt.Errorf("deleting %s %q: %w", s.codec.kind, name, err)
		}
		return nil
	})
	if err != nil || !removed {
		return false, err
	}
	s.publish(notify.OpRemove, ref.name)
	return true, nil
}

// All returns every entity ordered by name.
func (s *Store[T, PT]) All(ctx context.Context) ([]T, error) {
	items, _, err := s.list(ctx, s.db, "")
	return items, err
}

// Count returns the number of entities.
func (s *Store[T, PT]) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table()).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.codec.kind, err)
	}
	return n, nil
}

// Search returns entities where query is a case-insensitive substring of
// any of fields. Fields default to name and description.
func (s *Store[T, PT]) Search(ctx context.Context, query string, fields ...string) ([]T, error) {
	if query == "" {
		return s.All(ctx)
	}
	if len(fields) == 0 {
		fields = []string{"name", "description"}
	}
	allowed := map[string]bool{"name": true, "description": true, "source": true}
	for _, f := range s.codec.searchable {
		allowed[f] = true
	}
	conds := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		if !allowed[f] {
			return nil, fmt.Errorf("%w: cannot search %s by %q", types.ErrInvalidFilter, s.codec.kind, f)
		}
		conds = append(conds, fmt.Sprintf(`COALESCE(e.%s, '') LIKE ? ESCAPE '\'`, f))
		args = append(args, likePattern(query))
	}
	items, _, err := s.list(ctx, s.db, "("+strings.Join(conds, " OR ")+")", args...)
	return items, err
}

// Sources returns the distinct non-empty source labels, sorted.
func (s *Store[T, PT]) Sources(ctx context.Context) ([]string, error) {
	return distinctStrings(ctx, s.db, fmt.Sprintf(
		"SELECT DISTINCT source FROM %s WHERE source IS NOT NULL AND source != '' ORDER BY source COLLATE NOCASE",
		s.table()))
}

// Filter returns the entities in one flag view.
func (s *Store[T, PT]) Filter(ctx context.Context, flag types.Flag) ([]T, error) {
	var where string
	switch flag {
	case types.FlagOfficial:
		where = "e.is_official = 1"
	case types.FlagUnofficial:
		where = "e.is_official = 0"
	case types.FlagCustom:
		where = "e.is_custom = 1"
	case types.FlagLegacy:
		where = "e.is_legacy = 1"
	case types.FlagCurrent:
		where = "e.is_legacy = 0"
	default:
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidFilter, flag)
	}
	items, _, err := s.list(ctx, s.db, where)
	return items, err
}

// BySource returns the entities whose source matches, ignoring case.
func (s *Store[T, PT]) BySource(ctx context.Context, source string) ([]T, error) {
	items, _, err := s.list(ctx, s.db, "COALESCE(e.source, '') = ? COLLATE NOCASE", source)
	return items, err
}

// Export renders items, or the whole collection when none are given.
func (s *Store[T, PT]) Export(ctx context.Context, items ...T) (*types.Document, error) {
	if len(items) == 0 {
		var err error
		if items, err = s.All(ctx); err != nil {
			return nil, err
		}
	}
	return types.NewDocument(s.codec.kind, s.codec.docVersion, items)
}

// Import inserts every well-formed record of doc whose name is free and
// returns the number inserted. Malformed records are logged and skipped.
// With markAsCustom, inserted records are flagged custom and unofficial.
func (s *Store[T, PT]) Import(ctx context.Context, doc *types.Document, markAsCustom bool) (int, error) {
	var names []string
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		names, err = s.importTx(ctx, tx, doc, markAsCustom, nil)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(names) > 0 {
		s.publish(notify.OpImport, names...)
	}
	return len(names), nil
}

// importTx inserts the records of doc on q. adjust, when set, runs on each
// decoded record before insertion.
func (s *Store[T, PT]) importTx(ctx context.Context, q dbtx, doc *types.Document, markAsCustom bool, adjust func(*T)) ([]string, error) {
	if doc.Kind != s.codec.kind {
		return nil, fmt.Errorf("%w: got %s, want %s", types.ErrKindMismatch, doc.Kind, s.codec.kind)
	}
	var names []string
	for i, raw := range doc.Records {
		item, err := types.DecodeRecord[T, PT](raw)
		if err == nil && adjust != nil {
			adjust(&item)
		}
		if err == nil && markAsCustom {
			base := PT(&item).Base()
			base.IsCustom = true
			base.IsOfficial = false
		}
		if err == nil {
			err = s.prepare(&item)
		}
		if err != nil {
			s.logger.Warn("skipping malformed record", "kind", s.codec.kind, "index", i, "error", err)
			continue
		}
		added, err := s.insertTx(ctx, q, &item)
		if err != nil {
			return nil, err
		}
		if !added {
			s.logger.Debug("skipping duplicate record", "kind", s.codec.kind, "name", PT(&item).Base().Name)
			continue
		}
		names = append(names, PT(&item).Base().Name)
	}
	return names, nil
}

// Subscribe registers fn for this collection's change events.
func (s *Store[T, PT]) Subscribe(fn notify.Listener) *notify.Subscription {
	return s.broker.Subscribe(s.codec.kind, fn)
}

func (s *Store[T, PT]) publish(op notify.Op, names ...string) {
	s.broker.Publish(notify.NewEvent(s.codec.kind, op, names...))
}

// distinctStrings runs a single-column query and collects the values.
func distinctStrings(ctx context.Context, q dbtx, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying values: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning value: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
