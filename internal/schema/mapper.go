package schema

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

// ErrIncompatibleType is returned when a driver value cannot be read as
// the requested Go type.
var ErrIncompatibleType = errors.New("incompatible type")

// TypeMapper converts between driver values, Go values and column types.
type TypeMapper struct{}

// NewTypeMapper creates a new type mapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// Unwrap resolves driver.Valuer wrappers. A nil result means SQL NULL.
func (tm *TypeMapper) Unwrap(value interface{}) (interface{}, error) {
	if valuer, ok := value.(driver.Valuer); ok {
		v, err := valuer.Value()
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return value, nil
}

// DescribeValue names the dynamic type of a driver value for errors.
func (tm *TypeMapper) DescribeValue(value interface{}) string {
	if value == nil {
		return "NULL"
	}
	return fmt.Sprintf("%T", value)
}

// ToInt64 reads an integer cell. Text values are rejected; []byte is
// accepted only when it spells an integer (MySQL text protocol).
func (tm *TypeMapper) ToInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > 1<<63-1 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrIncompatibleType, v)
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case *big.Int:
		if !v.IsInt64() {
			return 0, fmt.Errorf("%w: %s overflows int64", ErrIncompatibleType, v)
		}
		return v.Int64(), nil
	case []byte:
		i, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: cannot convert bytes %q to int64", ErrIncompatibleType, v)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: cannot convert %T to int64", ErrIncompatibleType, value)
	}
}

// ToFloat64 reads a REAL cell. Integers widen; text is rejected. []byte
// is accepted only when it spells a number, which is how MySQL returns
// DECIMAL and AVG results.
func (tm *TypeMapper) ToFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64, int, int8, int16, int32, uint8, uint16, uint32, uint64, *big.Int:
		i, err := tm.ToInt64(v)
		if err != nil {
			return 0, err
		}
		return float64(i), nil
	case []byte:
		return tm.parseFloat(string(v))
	default:
		return 0, fmt.Errorf("%w: cannot convert %T to float64", ErrIncompatibleType, value)
	}
}

// ToDecimal reads an aggregate result. It also accepts the decimal string
// that pgx returns for NUMERIC, e.g. AVG over an integer column.
func (tm *TypeMapper) ToDecimal(value interface{}) (float64, error) {
	if s, ok := value.(string); ok {
		return tm.parseFloat(s)
	}
	return tm.ToFloat64(value)
}

func (tm *TypeMapper) parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot convert %q to float64", ErrIncompatibleType, s)
	}
	return f, nil
}

// ToString reads a text cell.
func (tm *TypeMapper) ToString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	default:
		return "", fmt.Errorf("%w: cannot convert %T to string", ErrIncompatibleType, value)
	}
}

// ToValue converts a Go value to a bindable core.Value of the given
// storage class. It is used when records arrive as maps (KV payloads,
// CLI input) instead of typed entities.
func (tm *TypeMapper) ToValue(value interface{}, t core.SQLType) (core.Value, error) {
	if value == nil {
		return core.Null(), nil
	}
	if n, ok := value.(json.Number); ok {
		value = n.String()
	}
	switch t {
	case core.TypeInteger:
		if f, ok := value.(float64); ok {
			// encoding/json decodes every number as float64
			if f != float64(int64(f)) {
				return core.Value{}, fmt.Errorf("%w: %v is not an integer", ErrIncompatibleType, f)
			}
			return core.Int(int64(f)), nil
		}
		if s, ok := value.(string); ok {
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return core.Value{}, fmt.Errorf("%w: cannot convert %q to int64", ErrIncompatibleType, s)
			}
			return core.Int(i), nil
		}
		i, err := tm.ToInt64(value)
		if err != nil {
			return core.Value{}, err
		}
		return core.Int(i), nil
	case core.TypeReal:
		f, err := tm.ToDecimal(value)
		if err != nil {
			return core.Value{}, err
		}
		return core.Real(f), nil
	default:
		s, err := tm.ToString(value)
		if err != nil {
			s = fmt.Sprint(value)
		}
		return core.Text(s), nil
	}
}

// FromValue converts a core.Value to a plain Go value for records.
func (tm *TypeMapper) FromValue(v core.Value) interface{} {
	return v.Interface()
}
