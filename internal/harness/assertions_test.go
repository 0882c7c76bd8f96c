package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs value", nil, int64(1), false},
		{"value vs nil", "a", nil, false},
		{"string", "ann", "ann", true},
		{"string from bytes", "ann", []byte("ann"), true},
		{"string mismatch", "ann", "bob", false},
		{"yaml int vs int64", 3, int64(3), true},
		{"int mismatch", 3, int64(4), false},
		{"int vs string", 3, "3", false},
		{"int vs float", 3, float64(3), true},
		{"float", 1.5, float64(1.5), true},
		{"float vs int64", 2.0, int64(2), true},
		{"bool vs int64", true, int64(1), true},
		{"false vs int64", false, int64(0), true},
		{"bool mismatch", true, int64(0), false},
		{"bool", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesEqual(tt.expected, tt.actual))
		})
	}
}

func TestCompareRows(t *testing.T) {
	actual := [][]any{{"ann", int64(1)}, {"bob", int64(2)}, {"ann", int64(1)}}

	assert.Empty(t, compareRows([][]any{{"bob", 2}, {"ann", 1}, {"ann", 1}}, actual, false))
	assert.Empty(t, compareRows([][]any{{"ann", 1}, {"bob", 2}, {"ann", 1}}, actual, true))

	assert.Contains(t, compareRows([][]any{{"bob", 2}, {"ann", 1}, {"ann", 1}}, actual, true), "row 0")
	assert.Contains(t, compareRows([][]any{{"bob", 2}, {"bob", 2}, {"ann", 1}}, actual, false), "not found")
	assert.Contains(t, compareRows([][]any{{"ann", 1}}, actual, false), "expected 1, got 3")
	assert.Contains(t, compareRows([][]any{{"ann"}, {"bob"}, {"ann"}}, actual, false), "not found")
}

func TestBuildWhereClause(t *testing.T) {
	sql, args := buildWhereClause(nil)
	assert.Empty(t, sql)
	assert.Nil(t, args)

	sql, args = buildWhereClause(map[string]any{"name": "ann", "age": nil, `we"ird`: 1})
	assert.Equal(t, ` WHERE "age" IS NULL AND "name" = ? AND "we""ird" = ?`, sql)
	assert.Equal(t, []any{"ann", 1}, args)
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "a=1 AND b=x", formatWhereClause(map[string]any{"b": "x", "a": 1}))
}

func TestEvaluateAssertions_NoStore(t *testing.T) {
	errs := EvaluateAssertions([]Assertion{{Type: AssertRowCount, Table: "t"}}, nil)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires database context")
}

func TestAssertionError(t *testing.T) {
	err := &AssertionError{Type: AssertRowCount, Expected: "1 rows", Actual: "2 rows"}
	assert.Equal(t, "Assertion failed: row_count\n  Expected: 1 rows\n  Actual: 2 rows", err.Error())
}
