package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

// Translator converts between bound column values, column records and
// key-value payloads.
type Translator struct {
	mapper *TypeMapper
}

var _ core.RecordTranslator = (*Translator)(nil)

// NewTranslator creates a new schema translator.
func NewTranslator() *Translator {
	return &Translator{mapper: NewTypeMapper()}
}

// Record builds a column record from values bound in descriptor order.
func (t *Translator) Record(desc *core.TableDescriptor, values []core.Value) (map[string]interface{}, error) {
	if len(values) != len(desc.Columns) {
		return nil, fmt.Errorf("table %s has %d columns, got %d values", desc.Name, len(desc.Columns), len(values))
	}
	record := make(map[string]interface{}, len(values))
	for i, c := range desc.Columns {
		record[c.Name] = t.mapper.FromValue(values[i])
	}
	return record, nil
}

// Values converts a record back to bindable values in descriptor order.
// Missing columns become NULL.
func (t *Translator) Values(desc *core.TableDescriptor, record map[string]interface{}) ([]core.Value, error) {
	values := make([]core.Value, len(desc.Columns))
	for i, c := range desc.Columns {
		v, err := t.mapper.ToValue(record[c.Name], c.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to convert value for column '%s': %w", c.Name, err)
		}
		values[i] = v
	}
	return values, nil
}

// KeyString joins the key column values of a record with ":".
func (t *Translator) KeyString(desc *core.TableDescriptor, record map[string]interface{}) (string, error) {
	parts := make([]string, len(desc.Keys))
	for i, k := range desc.Keys {
		v, ok := record[k]
		if !ok || v == nil {
			return "", fmt.Errorf("key column '%s' not found in record", k)
		}
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ":"), nil
}

// ToKV validates record against desc and returns its row key and JSON
// payload. The payload holds exactly the descriptor's columns, with values
// normalized to their storage class.
func (t *Translator) ToKV(record map[string]interface{}, desc *core.TableDescriptor) (string, []byte, error) {
	if record == nil {
		return "", nil, fmt.Errorf("record cannot be nil")
	}
	if desc == nil {
		return "", nil, fmt.Errorf("descriptor cannot be nil")
	}

	if err := NewSchemaValidator(desc).ValidateRecord(record); err != nil {
		return "", nil, fmt.Errorf("validation failed: %w", err)
	}
	values, err := t.Values(desc, record)
	if err != nil {
		return "", nil, err
	}
	normalized, err := t.Record(desc, values)
	if err != nil {
		return "", nil, err
	}

	key, err := t.KeyString(desc, normalized)
	if err != nil {
		return "", nil, err
	}
	value, err := json.Marshal(normalized)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal record to JSON: %w", err)
	}
	return key, value, nil
}

// FromKV decodes a JSON payload into a record typed by desc: integer
// columns come back as int64, real columns as float64. Fields that are not
// columns of desc are kept as decoded.
func (t *Translator) FromKV(key string, value []byte, desc *core.TableDescriptor) (map[string]interface{}, error) {
	if value == nil {
		return nil, fmt.Errorf("value cannot be nil")
	}
	if desc == nil {
		return nil, fmt.Errorf("descriptor cannot be nil")
	}

	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON for %s: %w", key, err)
	}

	record := make(map[string]interface{}, len(raw))
	for name, v := range raw {
		column, ok := desc.Column(name)
		if !ok || v == nil {
			record[name] = v
			continue
		}
		converted, err := t.mapper.ToValue(v, column.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to convert value for column '%s': %w", name, err)
		}
		record[name] = converted.Interface()
	}
	return record, nil
}
