package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
)

// junction is a many-to-many child relation stored as (parent, value) rows.
type junction struct {
	table  string
	parent string
	value  string
}

var (
	spellClasses = junction{table: "spell_classes", parent: "spell_id", value: "class_name"}
	spellTags    = junction{table: "spell_tags", parent: "spell_id", value: "tag"}
)

// hydrateJunction resolves the child values of every parent in ids with one
// query. The id set travels as a single JSON array parameter, so the
// statement is the same for any batch size. Every id gets a key; parents
// without children map to an empty slice. Values keep insertion order.
func hydrateJunction(ctx context.Context, q dbtx, j junction, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	for _, id := range ids {
		out[id] = []string{}
	}
	if len(ids) == 0 {
		return out, nil
	}

	set, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encoding id set: %w", err)
	}
	query := fmt.Sprintf(
		"SELECT %[2]s, %[3]s FROM %[1]s WHERE %[2]s IN (SELECT value FROM json_each(?)) ORDER BY id",
		j.table, j.parent, j.value)
	rows, err := q.QueryContext(ctx, query, string(set))
	if err != nil {
		return nil, fmt.Errorf("hydrating %s: %w", j.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			parent int64
			value  string
		)
		if err := rows.Scan(&parent, &value); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", j.table, err)
		}
		out[parent] = append(out[parent], value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", j.table, err)
	}
	return out, nil
}

// replaceJunction rewrites the child values of one parent. Values are
// written in order so hydration returns them as given.
func replaceJunction(ctx context.Context, q dbtx, j junction, id int64, values []string) error {
	if _, err := q.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", j.table, j.parent), id); err != nil {
		return fmt.Errorf("clearing %s: %w", j.table, err)
	}
	stmt := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s, %s) VALUES (?, ?)", j.table, j.parent, j.value)
	for _, v := range values {
		if _, err := q.ExecContext(ctx, stmt, id, v); err != nil {
			return fmt.Errorf("writing %s: %w", j.table, err)
		}
	}
	return nil
}
