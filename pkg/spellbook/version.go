// Package spellbook holds build metadata for the spellbook module.
package spellbook

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/mesh-intelligence/spellbook/pkg/spellbook.Version=...".
var Version = "0.3.0"

// ModulePath is the Go module path.
const ModulePath = "github.com/mesh-intelligence/spellbook"
