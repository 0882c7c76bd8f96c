package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/P-wig/cyphersql/internal/schema"
)

// Value is a sealed interface representing a literal constant.
// Only Null, String, Int, Float, Bool and List implement this.
type Value interface {
	value() // Sealed - only these types implement it

	// Any returns the value as a database/sql argument.
	Any() any
}

// Null is the Cypher null literal.
type Null struct{}

// String is a string literal.
type String string

// Int is an integer literal. Always int64.
type Int int64

// Float is a floating point literal.
type Float float64

// Bool is a boolean literal.
type Bool bool

// List is a list literal of constants.
type List []Value

func (Null) value()   {}
func (String) value() {}
func (Int) value()    {}
func (Float) value()  {}
func (Bool) value()   {}
func (List) value()   {}

func (Null) Any() any     { return nil }
func (v String) Any() any { return string(v) }
func (v Int) Any() any    { return int64(v) }
func (v Float) Any() any  { return float64(v) }
func (v Bool) Any() any   { return bool(v) }

func (v List) Any() any {
	out := make([]any, len(v))
	for i, elem := range v {
		out[i] = elem.Any()
	}
	return out
}

// TypeOfValue returns the declared type a value is compatible with, or ""
// for null and lists.
func TypeOfValue(v Value) schema.Type {
	switch v.(type) {
	case String:
		return schema.TypeString
	case Int:
		return schema.TypeInt
	case Float:
		return schema.TypeFloat
	case Bool:
		return schema.TypeBool
	default:
		return ""
	}
}

// FormatValue renders v the way Cypher writes it. Used in diagnostics.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case Null:
		return "null"
	case String:
		return strconv.Quote(string(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case List:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = FormatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}
