package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/P-wig/cyphersql/internal/schema"
)

func TestValueSealed(t *testing.T) {
	// Verify all types implement Value (compile-time check via assignment)
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Float(1.5)
	var _ Value = Bool(true)
	var _ Value = List{String("a"), Int(1)}
}

func TestValueAny(t *testing.T) {
	assert.Nil(t, Null{}.Any())
	assert.Equal(t, "x", String("x").Any())
	assert.Equal(t, int64(3), Int(3).Any())
	assert.Equal(t, 2.5, Float(2.5).Any())
	assert.Equal(t, true, Bool(true).Any())
	assert.Equal(t, []any{int64(1), "a", nil}, List{Int(1), String("a"), Null{}}.Any())
}

func TestTypeOfValue(t *testing.T) {
	assert.Equal(t, schema.TypeString, TypeOfValue(String("")))
	assert.Equal(t, schema.TypeInt, TypeOfValue(Int(0)))
	assert.Equal(t, schema.TypeFloat, TypeOfValue(Float(0)))
	assert.Equal(t, schema.TypeBool, TypeOfValue(Bool(false)))
	assert.Equal(t, schema.Type(""), TypeOfValue(Null{}))
	assert.Equal(t, schema.Type(""), TypeOfValue(List{}))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", FormatValue(Null{}))
	assert.Equal(t, `"a\"b"`, FormatValue(String(`a"b`)))
	assert.Equal(t, "-7", FormatValue(Int(-7)))
	assert.Equal(t, "0.5", FormatValue(Float(0.5)))
	assert.Equal(t, "[1, true]", FormatValue(List{Int(1), Bool(true)}))
}
