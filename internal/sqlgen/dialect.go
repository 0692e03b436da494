// Package sqlgen emits the SQL text used by the table layer for each
// supported backend dialect.
package sqlgen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (SQLite, MySQL, DuckDB).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. (PostgreSQL).
	PlaceholderDollar
)

// UpsertStyle defines how an insert-or-replace is spelled.
type UpsertStyle int

const (
	// UpsertInsertOrReplace emits INSERT OR REPLACE INTO.
	UpsertInsertOrReplace UpsertStyle = iota
	// UpsertReplaceInto emits REPLACE INTO.
	UpsertReplaceInto
	// UpsertOnConflict emits INSERT ... ON CONFLICT (keys) DO UPDATE.
	UpsertOnConflict
)

// Dialect captures the syntax differences between backends.
type Dialect struct {
	Name string

	Placeholder PlaceholderStyle
	Upsert      UpsertStyle

	// QuoteStart and QuoteEnd wrap identifiers.
	QuoteStart string
	QuoteEnd   string

	// Types maps storage classes to column type names.
	Types map[core.SQLType]string

	// KeyTypes overrides Types for key columns (MySQL cannot index bare TEXT).
	KeyTypes map[core.SQLType]string

	// UnboundedLimit is the LIMIT literal used when only an offset is
	// requested. Empty means the dialect accepts OFFSET on its own.
	UnboundedLimit string
}

// FormatPlaceholder returns the placeholder for a 1-based parameter index.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	default:
		return "?"
	}
}

// QuoteIdentifier quotes name, doubling any embedded quote end characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.QuoteEnd, d.QuoteEnd+d.QuoteEnd)
	return d.QuoteStart + escaped + d.QuoteEnd
}

// TypeName returns the column type for t.
func (d *Dialect) TypeName(t core.SQLType, key bool) string {
	if key {
		if name, ok := d.KeyTypes[t]; ok {
			return name
		}
	}
	if name, ok := d.Types[t]; ok {
		return name
	}
	return t.String()
}

var (
	// SQLite is the dialect of modernc.org/sqlite and other SQLite builds.
	SQLite = &Dialect{
		Name:        "sqlite",
		Placeholder: PlaceholderQuestion,
		Upsert:      UpsertInsertOrReplace,
		QuoteStart:  `"`,
		QuoteEnd:    `"`,
		Types: map[core.SQLType]string{
			core.TypeInteger: "INTEGER",
			core.TypeText:    "TEXT",
			core.TypeReal:    "REAL",
			core.TypeBlob:    "BLOB",
		},
		UnboundedLimit: "-1",
	}

	// MySQL is the MySQL/MariaDB dialect.
	MySQL = &Dialect{
		Name:        "mysql",
		Placeholder: PlaceholderQuestion,
		Upsert:      UpsertReplaceInto,
		QuoteStart:  "`",
		QuoteEnd:    "`",
		Types: map[core.SQLType]string{
			core.TypeInteger: "BIGINT",
			core.TypeText:    "TEXT",
			core.TypeReal:    "DOUBLE",
			core.TypeBlob:    "BLOB",
		},
		KeyTypes: map[core.SQLType]string{
			core.TypeText: "VARCHAR(255)",
			core.TypeBlob: "VARBINARY(255)",
		},
		UnboundedLimit: "18446744073709551615",
	}

	// Postgres is the PostgreSQL dialect.
	Postgres = &Dialect{
		Name:        "postgres",
		Placeholder: PlaceholderDollar,
		Upsert:      UpsertOnConflict,
		QuoteStart:  `"`,
		QuoteEnd:    `"`,
		Types: map[core.SQLType]string{
			core.TypeInteger: "BIGINT",
			core.TypeText:    "TEXT",
			core.TypeReal:    "DOUBLE PRECISION",
			core.TypeBlob:    "BYTEA",
		},
	}

	// DuckDB is the DuckDB dialect.
	DuckDB = &Dialect{
		Name:        "duckdb",
		Placeholder: PlaceholderQuestion,
		Upsert:      UpsertInsertOrReplace,
		QuoteStart:  `"`,
		QuoteEnd:    `"`,
		Types: map[core.SQLType]string{
			core.TypeInteger: "BIGINT",
			core.TypeText:    "VARCHAR",
			core.TypeReal:    "DOUBLE",
			core.TypeBlob:    "BLOB",
		},
	}
)

var dialects = map[string]*Dialect{
	SQLite.Name:   SQLite,
	MySQL.Name:    MySQL,
	Postgres.Name: Postgres,
	DuckDB.Name:   DuckDB,
	"sqlite3":     SQLite,
	"pgx":         Postgres,
	"postgresql":  Postgres,
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (*Dialect, error) {
	if d, ok := dialects[strings.ToLower(name)]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("unknown SQL dialect %q (available: %s)", name, strings.Join(Names(), ", "))
}

// Names returns the canonical dialect names, sorted.
func Names() []string {
	seen := make(map[string]struct{})
	for _, d := range dialects {
		seen[d.Name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
