// Package migrations embeds the SQL files that provision the ledger schema
// and its privileged accessors.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
)

// Files embeds every migration.
//
//go:embed *.sql
var Files embed.FS

// Names lists the migrations in apply order.
func Names() ([]string, error) {
	names, err := fs.Glob(Files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
