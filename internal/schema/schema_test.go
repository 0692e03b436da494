package schema

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/recordstore/internal/core"
)

func testDescriptor() *core.TableDescriptor {
	return &core.TableDescriptor{
		Name: "event",
		Columns: []core.Column{
			{Name: "uuid", Type: core.TypeInteger, Constraints: core.ConstraintPrimaryKey},
			{Name: "name", Type: core.TypeInteger, Constraints: core.ConstraintNotNull},
			{Name: "score", Type: core.TypeReal},
			{Name: "note", Type: core.TypeText},
		},
		Keys: []string{"uuid"},
	}
}

func TestTypeMapper_ToInt64(t *testing.T) {
	tm := NewTypeMapper()

	tests := []struct {
		name    string
		in      interface{}
		want    int64
		wantErr bool
	}{
		{"int64", int64(42), 42, false},
		{"int32", int32(-7), -7, false},
		{"mysql text protocol", []byte("19"), 19, false},
		{"huge int", big.NewInt(5), 5, false},
		{"string rejected", "42", 0, true},
		{"float rejected", 1.5, 0, true},
		{"bytes not a number", []byte("abc"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tm.ToInt64(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrIncompatibleType))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeMapper_ToFloat64(t *testing.T) {
	tm := NewTypeMapper()

	f, err := tm.ToFloat64(int64(3))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, f, 1e-9)

	f, err = tm.ToFloat64([]byte("3.0000"))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, f, 1e-9)

	// a TEXT cell is not a double even when it spells one
	_, err = tm.ToFloat64("2.5")
	assert.ErrorIs(t, err, ErrIncompatibleType)

	_, err = tm.ToFloat64([]byte("not a number"))
	assert.ErrorIs(t, err, ErrIncompatibleType)
}

func TestTypeMapper_ToDecimal(t *testing.T) {
	tm := NewTypeMapper()

	f, err := tm.ToDecimal("2.5000000000000000")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, f, 1e-9)

	f, err = tm.ToDecimal(float64(4))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, f, 1e-9)

	_, err = tm.ToDecimal("n/a")
	assert.ErrorIs(t, err, ErrIncompatibleType)
}

func TestValidator_ValidateDescriptor(t *testing.T) {
	require.NoError(t, NewSchemaValidator(testDescriptor()).ValidateDescriptor())

	tests := []struct {
		name   string
		mutate func(d *core.TableDescriptor)
		want   string
	}{
		{"no name", func(d *core.TableDescriptor) { d.Name = " " }, "table name is required"},
		{"no columns", func(d *core.TableDescriptor) { d.Columns = nil }, "has no columns"},
		{"duplicate", func(d *core.TableDescriptor) { d.Columns[1].Name = "UUID" }, "twice"},
		{"no keys", func(d *core.TableDescriptor) { d.Keys = nil }, "no key columns"},
		{"unknown key", func(d *core.TableDescriptor) { d.Keys = []string{"missing"} }, "is not a column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDescriptor()
			tt.mutate(d)
			err := NewSchemaValidator(d).ValidateDescriptor()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidator_ValidateBind(t *testing.T) {
	sv := NewSchemaValidator(testDescriptor())

	require.NoError(t, sv.ValidateBind(0, core.Int(1)))
	require.NoError(t, sv.ValidateBind(2, core.Int(1)))
	require.NoError(t, sv.ValidateBind(3, core.Null()))

	err := sv.ValidateBind(1, core.Null())
	var se *core.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "name", se.Column)

	err = sv.ValidateBind(3, core.Int(4))
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "TEXT", se.Want)

	assert.True(t, core.IsSchemaError(sv.ValidateBind(9, core.Int(1))))
}

func TestTranslator_KVRoundTrip(t *testing.T) {
	tr := NewTranslator()
	desc := testDescriptor()

	record, err := tr.Record(desc, []core.Value{core.Int(7), core.Int(1), core.Real(0.5), core.Null()})
	require.NoError(t, err)

	key, payload, err := tr.ToKV(record, desc)
	require.NoError(t, err)
	assert.Equal(t, "7", key)

	back, err := tr.FromKV(key, payload, desc)
	require.NoError(t, err)
	assert.Equal(t, int64(7), back["uuid"])
	assert.Equal(t, int64(1), back["name"])
	assert.InDelta(t, 0.5, back["score"], 1e-9)
	assert.Nil(t, back["note"])
}

func TestTranslator_ToKVNormalizes(t *testing.T) {
	tr := NewTranslator()
	desc := testDescriptor()

	// a record that went through a JSON queue: numbers are float64
	record := map[string]interface{}{
		"uuid":  float64(1700000000000001),
		"name":  float64(2),
		"score": float64(1),
		"extra": "dropped",
	}
	key, payload, err := tr.ToKV(record, desc)
	require.NoError(t, err)
	assert.Equal(t, "1700000000000001", key)
	assert.JSONEq(t, `{"uuid": 1700000000000001, "name": 2, "score": 1, "note": null}`, string(payload))

	back, err := tr.FromKV(key, payload, desc)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000001), back["uuid"])
	assert.Equal(t, float64(1), back["score"])
}

func TestTranslator_ToKVRejectsMissingRequired(t *testing.T) {
	tr := NewTranslator()
	_, _, err := tr.ToKV(map[string]interface{}{"uuid": int64(1)}, testDescriptor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestTranslator_Values(t *testing.T) {
	tr := NewTranslator()
	values, err := tr.Values(testDescriptor(), map[string]interface{}{"uuid": float64(3), "name": "9", "note": "x"})
	require.NoError(t, err)
	assert.Equal(t, []core.Value{core.Int(3), core.Int(9), core.Null(), core.Text("x")}, values)

	_, err = tr.Values(testDescriptor(), map[string]interface{}{"uuid": 1.5})
	require.Error(t, err)
}
