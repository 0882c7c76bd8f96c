package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// socialSchema is the shared social graph fixture.
var socialSchema = filepath.Join("..", "testutil", "social.cue")

// runCommand executes a command built by newCmd and returns stdout, stderr
// and the command error.
func runCommand(t *testing.T, newCmd func(*RootOptions) *cobra.Command, opts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CYPHERSQL_SCHEMA", "")
	t.Setenv("CYPHERSQL_DIALECT", "")

	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := newCmd(opts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), errBuf.String(), err
}

// decodeResponse decodes a JSON response, with Data left raw.
func decodeResponse(t *testing.T, out string) (CLIResponse, json.RawMessage) {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	return raw.CLIResponse, raw.Data
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "cyphersql", cmd.Use)
	assert.Contains(t, cmd.Long, "parameterized SQL")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"translate"},
		{"parse"},
		{"explain"},
		{"exec"},
		{"schema"},
		{"schema", "validate"},
		{"schema", "ddl"},
		{"test"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	schemaFlag := cmd.PersistentFlags().Lookup("schema")
	require.NotNil(t, schemaFlag)
	assert.Equal(t, "s", schemaFlag.Shorthand)

	depthFlag := cmd.PersistentFlags().Lookup("max-depth")
	require.NotNil(t, depthFlag)
	assert.Equal(t, "-1", depthFlag.DefValue)

	for _, name := range []string{"config", "dialect"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestExecCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	execCmd, _, err := cmd.Find([]string{"exec"})
	require.NoError(t, err)

	paramFlag := execCmd.Flags().Lookup("param")
	require.NotNil(t, paramFlag)
	assert.Equal(t, "p", paramFlag.Shorthand)

	for _, name := range []string{"db-driver", "dsn", "apply-schema"} {
		assert.NotNil(t, execCmd.Flags().Lookup(name), name)
	}
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	errBuf := &bytes.Buffer{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"--format", "xml", "parse", "MATCH (n) RETURN n"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errBuf.String(), `invalid format "xml"`)
}

func TestRootCommand_SchemaFlag(t *testing.T) {
	t.Setenv("CYPHERSQL_SCHEMA", "")

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--schema", socialSchema, "translate", "MATCH (n:Person) RETURN n.name"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `SELECT "n0"."name" AS "name" FROM "person" AS "n0"`)
}

func TestRootCommand_ConfigFile(t *testing.T) {
	schemaPath, err := filepath.Abs(socialSchema)
	require.NoError(t, err)

	configPath := filepath.Join(t.TempDir(), "cyphersql.toml")
	config := "schema = " + quoteTOML(schemaPath) + "\ndialect = \"postgres\"\n"
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	out, _, err := runCommand(t, NewTranslateCommand, &RootOptions{Format: "text", ConfigPath: configPath},
		"MATCH (n:Person) WHERE n.age > $min RETURN n.name")
	require.NoError(t, err)
	assert.Contains(t, out, `"n0"."age" > $1`)

	// Flags win over the file.
	out, _, err = runCommand(t, NewTranslateCommand, &RootOptions{Format: "text", ConfigPath: configPath, Dialect: "sqlite"},
		"MATCH (n:Person) WHERE n.age > $min RETURN n.name")
	require.NoError(t, err)
	assert.Contains(t, out, `"n0"."age" > ?`)
}

func TestRootCommand_BadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "cyphersql.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("dialcet = \"sqlite\"\n"), 0644))

	out, _, err := runCommand(t, NewTranslateCommand, &RootOptions{Format: "text", ConfigPath: configPath}, "MATCH (n) RETURN n")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
	assert.Contains(t, out, "unknown keys: dialcet")
}

func TestRootCommand_BadDialectFlag(t *testing.T) {
	out, _, err := runCommand(t, NewTranslateCommand, &RootOptions{Format: "text", Schema: socialSchema, Dialect: "oracle"}, "MATCH (n) RETURN n")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestVerboseLogsToStderr(t *testing.T) {
	opts := &RootOptions{Format: "json", Schema: socialSchema, Verbose: true, IDs: NewFixedGenerator("trace-v")}
	out, stderr, err := runCommand(t, NewTranslateCommand, opts, "MATCH (n:Person) RETURN n.name")
	require.NoError(t, err)

	resp, _ := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Contains(t, stderr, "Loaded schema")
	assert.Contains(t, stderr, "query translated")
	assert.Contains(t, stderr, "trace_id=trace-v")
}

func quoteTOML(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
