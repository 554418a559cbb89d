// This file implements loading of the bundled rules documents: one document
// per collection plus the spell description corrections applied by
// migration step 4.
package sqlite

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// correctionsFile holds the spell description corrections.
const correctionsFile = "corrections.json"

// bundleSource reads bundled documents named <kind>.json from fsys. A nil
// fsys or a missing file yields an empty document.
type bundleSource struct {
	fsys fs.FS
}

func (b bundleSource) document(kind types.Kind) (*types.Document, error) {
	empty := &types.Document{Kind: kind}
	if b.fsys == nil {
		return empty, nil
	}
	f, err := b.fsys.Open(string(kind) + ".json")
	if errors.Is(err, fs.ErrNotExist) {
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening bundled %s: %w", kind, err)
	}
	defer f.Close()

	doc, err := types.ReadDocument(f, kind, types.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("reading bundled %s: %w", kind, err)
	}
	return doc, nil
}

// spellCorrection updates selected fields of the named spell. Nil fields are
// left alone.
type spellCorrection struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Source      *string `json:"source"`
	CastingTime *string `json:"casting_time"`
	Duration    *string `json:"duration"`
	Components  *string `json:"components"`
	RangeValue  *int    `json:"range_value"`
	Level       *int    `json:"level"`
}

// assignments returns the SET fragments and arguments for the fields present.
func (c spellCorrection) assignments() ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if c.Description != nil {
		add("description", *c.Description)
	}
	if c.Source != nil {
		add("source", *c.Source)
	}
	if c.CastingTime != nil {
		add("casting_time", *c.CastingTime)
	}
	if c.Duration != nil {
		add("duration", *c.Duration)
	}
	if c.Components != nil {
		add("components", *c.Components)
	}
	if c.RangeValue != nil {
		add("range_value", *c.RangeValue)
	}
	if c.Level != nil && *c.Level >= 0 && *c.Level <= 9 {
		add("level", *c.Level)
	}
	return sets, args
}

func (b bundleSource) corrections() ([]spellCorrection, error) {
	if b.fsys == nil {
		return nil, nil
	}
	f, err := b.fsys.Open(correctionsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", correctionsFile, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", correctionsFile, err)
	}
	var doc struct {
		Corrections []spellCorrection `json:"corrections"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", types.ErrMalformedRecord, correctionsFile, err)
	}
	return doc.Corrections, nil
}
