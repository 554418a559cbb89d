// Spellbook is a command-line tool for managing a local library of tabletop
// rules content.
package main

import (
	"os"

	"github.com/mesh-intelligence/spellbook/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
