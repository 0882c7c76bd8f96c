package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/querysql"
)

func TestTranslateText(t *testing.T) {
	out, _, err := runCommand(t, NewTranslateCommand, &RootOptions{Format: "text", Schema: socialSchema},
		"MATCH (n:Person) WHERE n.age > $min RETURN n.name")
	require.NoError(t, err)

	want := `SELECT "n0"."name" AS "name" FROM "person" AS "n0" WHERE "n0"."age" > ?

Params:
  1: $min

Columns:
  name string
`
	assert.Equal(t, want, out)
}

func TestTranslateJSON(t *testing.T) {
	opts := &RootOptions{Format: "json", Schema: socialSchema, IDs: NewFixedGenerator("trace-1")}
	out, _, err := runCommand(t, NewTranslateCommand, opts, "MATCH (n:Person) WHERE n.age > $min RETURN n.name")
	require.NoError(t, err)

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "trace-1", resp.TraceID)

	var output querysql.Output
	require.NoError(t, json.Unmarshal(data, &output))
	assert.Equal(t, queryir.KindSelect, output.Kind)
	assert.Equal(t, querysql.SQLite, output.Dialect)
	assert.Equal(t, []string{"min"}, output.ParamNames())
	assert.Equal(t, []querysql.Column{{Name: "name", Type: queryir.TypeString}}, output.Columns)
}

func TestTranslatePostgres(t *testing.T) {
	opts := &RootOptions{Format: "text", Schema: socialSchema, Dialect: "postgres"}
	out, _, err := runCommand(t, NewTranslateCommand, opts, "MATCH (n:Person) WHERE n.name = $who OR n.name = $who RETURN n.name")
	require.NoError(t, err)
	assert.Contains(t, out, `WHERE "n0"."name" = $1 OR "n0"."name" = $1`)
	assert.NotContains(t, out, "$2")
}

func TestTranslateErrorCodes(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  string
		kind  string
	}{
		{"lex", "MATCH (n) RETURN #", ErrCodeLex, "LexError"},
		{"parse", "MATCH (n RETURN n", ErrCodeParse, "ParseError"},
		{"unsupported", "MATCH (n:Person:City) RETURN n", ErrCodeUnsupported, "UnsupportedConstruct"},
		{"unknown label", "MATCH (n:Robot) RETURN n", "E401", "UnknownLabel"},
		{"unknown property", "MATCH (n:Person) RETURN n.height", "E403", "UnknownProperty"},
		{"undefined variable", "MATCH (n:Person) RETURN m.name", "E405", "UndefinedVariable"},
		{"unbounded", "MATCH (a:Person)-[:KNOWS*]->(b:Person) RETURN b.name", "E502", "UnboundedRecursionRejected"},
		{"disconnected", "MATCH (a:Person), (b:City) RETURN a.name, b.name", "E501", "DisconnectedPattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &RootOptions{Format: "json", Schema: socialSchema}
			out, _, err := runCommand(t, NewTranslateCommand, opts, tt.query)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			resp, _ := decodeResponse(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)

			details, ok := resp.Error.Details.(map[string]any)
			require.True(t, ok, "details should be the diagnostic: %v", resp.Error.Details)
			assert.Equal(t, tt.kind, details["kind"])
		})
	}
}

func TestTranslateErrorText(t *testing.T) {
	out, _, err := runCommand(t, NewTranslateCommand, &RootOptions{Format: "text", Schema: socialSchema}, "MATCH (n:Robot) RETURN n")
	require.Error(t, err)
	assert.Contains(t, out, "Error [E401]: SemanticError::UnknownLabel")
	assert.Contains(t, out, "Robot")
}

func TestTranslateMaxDepth(t *testing.T) {
	opts := &RootOptions{Format: "text", Schema: socialSchema, MaxDepth: 3}
	out, _, err := runCommand(t, NewTranslateCommand, opts, "MATCH (a:Person)-[:KNOWS*]->(b:Person) RETURN b.name")
	require.NoError(t, err)
	assert.Contains(t, out, "WITH RECURSIVE")
}

func TestTranslateNoSchema(t *testing.T) {
	out, _, err := runCommand(t, NewTranslateCommand, &RootOptions{Format: "text"}, "MATCH (n) RETURN n")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestTranslateSchemaNotFound(t *testing.T) {
	opts := &RootOptions{Format: "text", Schema: filepath.Join(t.TempDir(), "missing.cue")}
	out, _, err := runCommand(t, NewTranslateCommand, opts, "MATCH (n) RETURN n")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]: schema not found")
}

func TestTranslateMissingArg(t *testing.T) {
	_, _, err := runCommand(t, NewTranslateCommand, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestParseCommand(t *testing.T) {
	out, _, err := runCommand(t, NewParseCommand, &RootOptions{Format: "text"}, "match (n:Person) return n.name")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n:Person) RETURN n.name\n", out)

	out, _, err = runCommand(t, NewParseCommand, &RootOptions{Format: "json", IDs: NewFixedGenerator("p-1")}, "match (n) return n")
	require.NoError(t, err)
	resp, data := decodeResponse(t, out)
	assert.Equal(t, "p-1", resp.TraceID)
	var result ParseResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "MATCH (n) RETURN n", result.Canonical)
}

func TestParseCommandNeedsNoSchema(t *testing.T) {
	// Labels are not resolved when parsing.
	out, _, err := runCommand(t, NewParseCommand, &RootOptions{Format: "text"}, "MATCH (n:Robot) RETURN n")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n:Robot) RETURN n\n", out)
}

func TestParseCommandError(t *testing.T) {
	out, _, err := runCommand(t, NewParseCommand, &RootOptions{Format: "text"}, "MATCH (n RETURN n")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E202]")
}

func TestExplainCommand(t *testing.T) {
	out, _, err := runCommand(t, NewExplainCommand, &RootOptions{Format: "text", Schema: socialSchema},
		"MATCH (a:Person)-[:LIVES_IN]->(c:City) RETURN c.name")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan:\n{")
	assert.Contains(t, out, `"Kind": "select"`)
	assert.Contains(t, out, `"Table": "lives_in"`)
	assert.Contains(t, out, "SQL:\nSELECT")
}

func TestExplainCommandJSON(t *testing.T) {
	out, _, err := runCommand(t, NewExplainCommand, &RootOptions{Format: "json", Schema: socialSchema}, "MATCH (n:Person) RETURN n.name")
	require.NoError(t, err)

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	var result struct {
		Plan map[string]any `json:"plan"`
		SQL  string         `json:"sql"`
	}
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "select", result.Plan["Kind"])
	assert.Equal(t, `SELECT "n0"."name" AS "name" FROM "person" AS "n0"`, result.SQL)
}

func TestExplainCommandError(t *testing.T) {
	out, _, err := runCommand(t, NewExplainCommand, &RootOptions{Format: "text", Schema: socialSchema}, "MATCH (n:Robot) RETURN n")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E401]")
}
