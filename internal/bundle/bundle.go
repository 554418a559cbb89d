// Package bundle embeds the rules documents shipped with spellbook: one
// <kind>.json document per content collection plus corrections.json, the
// spell fixes applied to stores created by older releases.
package bundle

import (
	"embed"
	"io/fs"
)

//go:embed data/*.json
var data embed.FS

// Files returns the bundled documents rooted at the data directory.
func Files() fs.FS {
	sub, err := fs.Sub(data, "data")
	if err != nil {
		panic(err)
	}
	return sub
}
