package table

import (
	"github.com/rzpsarthak13/recordstore/internal/core"
	"github.com/rzpsarthak13/recordstore/internal/schema"
)

// binder sits between a mapper and a prepared statement. Mappers always
// bind in descriptor order; the binder validates each value, remembers it
// for the change feed and forwards it to the statement position that the
// SQL actually uses.
type binder struct {
	core.Statement

	validator *schema.SchemaValidator
	remap     []int // descriptor position -> statement position; nil is identity
	values    []core.Value
	bound     []bool
}

func newBinder(stmt core.Statement, desc *core.TableDescriptor, validator *schema.SchemaValidator, remap []int) *binder {
	return &binder{
		Statement: stmt,
		validator: validator,
		remap:     remap,
		values:    make([]core.Value, len(desc.Columns)),
		bound:     make([]bool, len(desc.Columns)),
	}
}

func (b *binder) Bind(pos int, v core.Value) error {
	if err := b.validator.ValidateBind(pos, v); err != nil {
		return err
	}
	b.values[pos] = v
	b.bound[pos] = true

	target := pos
	if b.remap != nil {
		target = b.remap[pos]
	}
	return b.Statement.Bind(target, v)
}

// complete reports the first column the mapper never bound.
func (b *binder) complete(desc *core.TableDescriptor) error {
	for i, ok := range b.bound {
		if !ok {
			return &core.SchemaError{Position: i, Column: desc.Columns[i].Name, Want: "bound value", Got: "unbound parameter"}
		}
	}
	return nil
}

// reset prepares the binder for the next entity of a batch.
func (b *binder) reset() {
	for i := range b.values {
		b.values[i] = core.Null()
		b.bound[i] = false
	}
}

// updateRemap maps descriptor positions to UPDATE parameter positions:
// non-key columns first in declaration order, then keys in key order.
func updateRemap(desc *core.TableDescriptor) []int {
	remap := make([]int, len(desc.Columns))
	next := 0
	for i, c := range desc.Columns {
		if !desc.IsKey(c.Name) {
			remap[i] = next
			next++
		}
	}
	for k, name := range desc.Keys {
		remap[desc.ColumnIndex(name)] = next + k
	}
	return remap
}
