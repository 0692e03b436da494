package core

import "strings"

// SQLType is the storage class of a column.
type SQLType int

const (
	// TypeInteger is a 64-bit signed integer column.
	TypeInteger SQLType = iota + 1

	// TypeText is a variable length string column.
	TypeText

	// TypeReal is a double precision floating point column.
	TypeReal

	// TypeBlob is a raw byte column.
	TypeBlob
)

// String returns the canonical upper-case name of the type.
func (t SQLType) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeText:
		return "TEXT"
	case TypeReal:
		return "REAL"
	case TypeBlob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// Constraint is a bitset of column constraints.
type Constraint uint8

// ConstraintNone marks a column without constraints.
const ConstraintNone Constraint = 0

const (
	// ConstraintPrimaryKey marks a column as part of the primary key.
	ConstraintPrimaryKey Constraint = 1 << iota

	// ConstraintNotNull forbids NULL values in the column.
	ConstraintNotNull

	// ConstraintUnique requires distinct values in the column.
	ConstraintUnique
)

// Has reports whether every bit of other is set in c.
func (c Constraint) Has(other Constraint) bool {
	return other != 0 && c&other == other
}

// Column describes a single column of an entity table.
type Column struct {
	// Name is the column name as it appears in SQL.
	Name string

	// Type is the storage class of the column.
	Type SQLType

	// Default is the literal SQL default, if any (e.g. "0" or "'n/a'").
	Default *string

	// Constraints holds the declared constraint flags.
	Constraints Constraint
}

// IsPrimaryKey reports whether the column is flagged as a primary key.
func (c Column) IsPrimaryKey() bool { return c.Constraints.Has(ConstraintPrimaryKey) }

// IsNotNull reports whether the column rejects NULL values.
// Primary key columns are always treated as not null.
func (c Column) IsNotNull() bool {
	return c.Constraints.Has(ConstraintNotNull) || c.IsPrimaryKey()
}

// TableDescriptor is the static column metadata for one entity type.
// Column order is significant: it fixes bind and extraction positions.
type TableDescriptor struct {
	// Name is the table name.
	Name string

	// Columns lists every column in declaration order.
	Columns []Column

	// Keys names the key columns in key order.
	Keys []string
}

// Column returns the column with the given name.
func (d *TableDescriptor) Column(name string) (*Column, bool) {
	i := d.ColumnIndex(name)
	if i < 0 {
		return nil, false
	}
	return &d.Columns[i], true
}

// ColumnIndex returns the declaration position of name, or -1.
func (d *TableDescriptor) ColumnIndex(name string) int {
	for i := range d.Columns {
		if strings.EqualFold(d.Columns[i].Name, name) {
			return i
		}
	}
	return -1
}

// IsKey reports whether name is one of the key columns.
func (d *TableDescriptor) IsKey(name string) bool {
	for _, k := range d.Keys {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// RecordTranslator converts between column records and key-value payloads.
type RecordTranslator interface {
	// ToKV converts a record to a key and a serialized value.
	ToKV(record map[string]interface{}, desc *TableDescriptor) (string, []byte, error)

	// FromKV deserializes a key-value pair back into a record.
	FromKV(key string, value []byte, desc *TableDescriptor) (map[string]interface{}, error)
}
