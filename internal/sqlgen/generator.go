package sqlgen

import (
	"strconv"
	"strings"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

// Generator implements core.SQLGenerator for one table descriptor.
type Generator struct {
	dialect *Dialect
	desc    *core.TableDescriptor
}

var _ core.SQLGenerator = (*Generator)(nil)

// New returns a generator emitting SQL for desc in dialect d.
func New(d *Dialect, desc *core.TableDescriptor) *Generator {
	return &Generator{dialect: d, desc: desc}
}

// Dialect returns the generator's dialect.
func (g *Generator) Dialect() *Dialect { return g.dialect }

// params hands out placeholders in the order they appear in the text.
type params struct {
	d *Dialect
	n int
}

func (p *params) next() string {
	p.n++
	return p.d.FormatPlaceholder(p.n)
}

func (g *Generator) quote(name string) string { return g.dialect.QuoteIdentifier(name) }

func (g *Generator) columnList() string {
	names := make([]string, len(g.desc.Columns))
	for i, c := range g.desc.Columns {
		names[i] = g.quote(c.Name)
	}
	return strings.Join(names, ", ")
}

func (g *Generator) where(keys []string, p *params) string {
	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = g.quote(k) + " = " + p.next()
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func (g *Generator) isKey(keys []string, name string) bool {
	for _, k := range keys {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// CreateTable emits a CREATE TABLE statement.
func (g *Generator) CreateTable(name string, keys []string, ifNotExists bool) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(g.quote(name))
	b.WriteString(" (")

	for i, c := range g.desc.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		key := g.isKey(keys, c.Name)
		b.WriteString(g.quote(c.Name))
		b.WriteString(" ")
		b.WriteString(g.dialect.TypeName(c.Type, key))
		if c.IsNotNull() || key {
			b.WriteString(" NOT NULL")
		}
		if c.Constraints.Has(core.ConstraintUnique) {
			b.WriteString(" UNIQUE")
		}
		if c.Default != nil {
			b.WriteString(" DEFAULT ")
			b.WriteString(*c.Default)
		}
	}

	if len(keys) > 0 {
		quoted := make([]string, len(keys))
		for i, k := range keys {
			quoted[i] = g.quote(k)
		}
		b.WriteString(", PRIMARY KEY (")
		b.WriteString(strings.Join(quoted, ", "))
		b.WriteString(")")
	}
	b.WriteString(")")
	return b.String()
}

// InsertInto emits an INSERT with one placeholder per column.
func (g *Generator) InsertInto(name string, replace bool) string {
	p := &params{d: g.dialect}
	holders := make([]string, len(g.desc.Columns))
	for i := range g.desc.Columns {
		holders[i] = p.next()
	}

	verb := "INSERT INTO "
	if replace {
		switch g.dialect.Upsert {
		case UpsertInsertOrReplace:
			verb = "INSERT OR REPLACE INTO "
		case UpsertReplaceInto:
			verb = "REPLACE INTO "
		}
	}

	sql := verb + g.quote(name) + " (" + g.columnList() + ") VALUES (" + strings.Join(holders, ", ") + ")"
	if replace && g.dialect.Upsert == UpsertOnConflict {
		sql += g.onConflict()
	}
	return sql
}

func (g *Generator) conflictKeys() []string {
	var keys []string
	for _, c := range g.desc.Columns {
		if c.IsPrimaryKey() {
			keys = append(keys, c.Name)
		}
	}
	if len(keys) == 0 {
		keys = g.desc.Keys
	}
	return keys
}

func (g *Generator) onConflict() string {
	keys := g.conflictKeys()
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = g.quote(k)
	}

	var sets []string
	for _, c := range g.desc.Columns {
		if g.isKey(keys, c.Name) {
			continue
		}
		q := g.quote(c.Name)
		sets = append(sets, q+" = EXCLUDED."+q)
	}

	clause := " ON CONFLICT (" + strings.Join(quoted, ", ") + ")"
	if len(sets) == 0 {
		return clause + " DO NOTHING"
	}
	return clause + " DO UPDATE SET " + strings.Join(sets, ", ")
}

// SelectFrom emits a SELECT of every column.
func (g *Generator) SelectFrom(name string, opts core.SelectOptions) string {
	return "SELECT " + g.columnList() + " FROM " + g.quote(name) + g.tail(opts)
}

// SelectKeysFrom emits a SELECT of the key columns only.
func (g *Generator) SelectKeysFrom(name string, keys []string, opts core.SelectOptions) string {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = g.quote(k)
	}
	return "SELECT " + strings.Join(quoted, ", ") + " FROM " + g.quote(name) + g.tail(opts)
}

func (g *Generator) tail(opts core.SelectOptions) string {
	var b strings.Builder
	if opts.OrderBy != nil {
		b.WriteString(" ORDER BY ")
		b.WriteString(g.quote(opts.OrderBy.Name))
		if opts.Asc {
			b.WriteString(" ASC")
		} else {
			b.WriteString(" DESC")
		}
	}

	switch {
	case opts.Limit > 0:
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.FormatUint(opts.Limit, 10))
	case opts.Offset > 0 && g.dialect.UnboundedLimit != "":
		b.WriteString(" LIMIT ")
		b.WriteString(g.dialect.UnboundedLimit)
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.FormatUint(opts.Offset, 10))
	}
	return b.String()
}

// SeekFrom emits a SELECT of every column filtered by keys.
func (g *Generator) SeekFrom(name string, keys []string) string {
	p := &params{d: g.dialect}
	return "SELECT " + g.columnList() + " FROM " + g.quote(name) + g.where(keys, p)
}

// UpdateSet emits an UPDATE binding non-key columns first and keys last.
// A table made only of keys updates nothing but still matches its row.
func (g *Generator) UpdateSet(name string, keys []string) string {
	p := &params{d: g.dialect}
	var sets []string
	for _, c := range g.desc.Columns {
		if g.isKey(keys, c.Name) {
			continue
		}
		sets = append(sets, g.quote(c.Name)+" = "+p.next())
	}
	if len(sets) == 0 && len(keys) > 0 {
		q := g.quote(keys[0])
		sets = append(sets, q+" = "+q)
	}
	return "UPDATE " + g.quote(name) + " SET " + strings.Join(sets, ", ") + g.where(keys, p)
}

// DeleteFrom emits a DELETE filtered by keys.
func (g *Generator) DeleteFrom(name string, keys []string) string {
	p := &params{d: g.dialect}
	return "DELETE FROM " + g.quote(name) + g.where(keys, p)
}

// DropTable emits a DROP TABLE.
func (g *Generator) DropTable(name string) string {
	return "DROP TABLE " + g.quote(name)
}

// TableAggregate emits SELECT fn(column) FROM name. A nil column becomes
// fn(*), which only COUNT accepts.
func (g *Generator) TableAggregate(name string, fn core.AggregateFunc, column *core.Column, distinct bool) string {
	arg := "*"
	if column != nil {
		arg = g.quote(column.Name)
		if distinct {
			arg = "DISTINCT " + arg
		}
	}
	return "SELECT " + string(fn) + "(" + arg + ") FROM " + g.quote(name)
}

// TableCount emits a COUNT aggregate.
func (g *Generator) TableCount(name string, column *core.Column, distinct bool) string {
	return g.TableAggregate(name, core.AggregateCount, column, distinct)
}

// TableAverage emits an AVG aggregate.
func (g *Generator) TableAverage(name string, column *core.Column, distinct bool) string {
	return g.TableAggregate(name, core.AggregateAverage, column, distinct)
}

// TableSum emits a SUM aggregate.
func (g *Generator) TableSum(name string, column *core.Column, distinct bool) string {
	return g.TableAggregate(name, core.AggregateSum, column, distinct)
}

// TableMin emits a MIN aggregate.
func (g *Generator) TableMin(name string, column *core.Column, distinct bool) string {
	return g.TableAggregate(name, core.AggregateMin, column, distinct)
}

// TableMax emits a MAX aggregate.
func (g *Generator) TableMax(name string, column *core.Column, distinct bool) string {
	return g.TableAggregate(name, core.AggregateMax, column, distinct)
}
