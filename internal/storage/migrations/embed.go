// Package migrations holds the audit schema for PostgreSQL and ClickHouse.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed postgres/*.sql clickhouse/*.sql
var embedded embed.FS

// Migration is one embedded SQL file.
type Migration struct {
	Name string // file name, e.g. 001_mint_records.sql
	SQL  string
}

// Load returns the non-empty migrations of dialect ("postgres" or "clickhouse") in apply order.
func Load(dialect string) ([]Migration, error) {
	paths, err := fs.Glob(embedded, dialect+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dialect, err)
	}
	sort.Strings(paths)

	var out []Migration
	for _, p := range paths {
		data, err := fs.ReadFile(embedded, p)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", p, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Name: strings.TrimPrefix(p, dialect+"/"), SQL: string(data)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no %s migrations embedded", dialect)
	}
	return out, nil
}
