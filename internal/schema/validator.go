package schema

import (
	"fmt"
	"strings"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

// SchemaValidator validates descriptors and the values bound against them.
type SchemaValidator struct {
	desc   *core.TableDescriptor
	mapper *TypeMapper
}

// NewSchemaValidator creates a new schema validator.
func NewSchemaValidator(desc *core.TableDescriptor) *SchemaValidator {
	return &SchemaValidator{
		desc:   desc,
		mapper: NewTypeMapper(),
	}
}

// ValidateDescriptor checks that the descriptor is usable: a table name,
// at least one column, unique column names, and keys that name columns.
func (sv *SchemaValidator) ValidateDescriptor() error {
	if sv.desc == nil {
		return fmt.Errorf("descriptor cannot be nil")
	}
	if strings.TrimSpace(sv.desc.Name) == "" {
		return fmt.Errorf("table name is required")
	}
	if len(sv.desc.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", sv.desc.Name)
	}

	seen := make(map[string]struct{}, len(sv.desc.Columns))
	for _, c := range sv.desc.Columns {
		name := strings.ToLower(c.Name)
		if name == "" {
			return fmt.Errorf("table %s has a column without a name", sv.desc.Name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("table %s declares column %s twice", sv.desc.Name, c.Name)
		}
		seen[name] = struct{}{}
		if c.Type < core.TypeInteger || c.Type > core.TypeBlob {
			return fmt.Errorf("column %s has unknown type %d", c.Name, c.Type)
		}
	}

	if len(sv.desc.Keys) == 0 {
		return fmt.Errorf("table %s has no key columns", sv.desc.Name)
	}
	for _, k := range sv.desc.Keys {
		if _, ok := sv.desc.Column(k); !ok {
			return fmt.Errorf("key %s is not a column of table %s", k, sv.desc.Name)
		}
	}
	return nil
}

// ValidateBind checks a value about to be bound at a descriptor position.
func (sv *SchemaValidator) ValidateBind(pos int, v core.Value) error {
	if pos < 0 || pos >= len(sv.desc.Columns) {
		return &core.SchemaError{Position: pos, Want: fmt.Sprintf("position below %d", len(sv.desc.Columns)), Got: fmt.Sprint(pos)}
	}
	column := sv.desc.Columns[pos]
	if v.IsNull() {
		if column.IsNotNull() {
			return &core.SchemaError{Position: pos, Column: column.Name, Want: "non-NULL value", Got: "NULL"}
		}
		return nil
	}
	if !compatible(column.Type, v.Kind()) {
		return &core.SchemaError{Position: pos, Column: column.Name, Want: column.Type.String(), Got: kindName(v.Kind())}
	}
	return nil
}

// ValidateRecord validates a column record such as a KV payload.
func (sv *SchemaValidator) ValidateRecord(record map[string]interface{}) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	for i, column := range sv.desc.Columns {
		value, exists := record[column.Name]
		if !exists || value == nil {
			if column.IsNotNull() {
				return fmt.Errorf("column '%s' cannot be NULL", column.Name)
			}
			continue
		}
		v, err := sv.mapper.ToValue(value, column.Type)
		if err != nil {
			return fmt.Errorf("column '%s': %w", column.Name, err)
		}
		if err := sv.ValidateBind(i, v); err != nil {
			return err
		}
	}
	return nil
}

func compatible(t core.SQLType, k core.ValueKind) bool {
	switch t {
	case core.TypeInteger:
		return k == core.KindInt
	case core.TypeReal:
		return k == core.KindReal || k == core.KindInt
	case core.TypeText:
		return k == core.KindText
	default:
		return true
	}
}

func kindName(k core.ValueKind) string {
	switch k {
	case core.KindInt:
		return "INTEGER"
	case core.KindReal:
		return "REAL"
	case core.KindText:
		return "TEXT"
	default:
		return "NULL"
	}
}
