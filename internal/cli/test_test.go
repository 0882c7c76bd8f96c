package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")

// writeScenario writes a scenario next to a copy of the social schema.
func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	src, err := os.ReadFile(socialSchema)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "social.cue"), src, 0644))

	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const passingScenario = `name: people
description: "Reads a fixture row back"
schema: social.cue
fixtures:
  person:
    - {id: 1, name: ann, age: 34}
steps:
  - query: "MATCH (n:Person) RETURN n.name"
    expect:
      columns: [name]
      rows: [[ann]]
`

const failingScenario = `name: wrong_rows
description: "Expects a row that is not there"
schema: social.cue
fixtures:
  person:
    - {id: 1, name: ann, age: 34}
steps:
  - query: "MATCH (n:Person) RETURN n.name"
    expect:
      rows: [[bob]]
`

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := runCommand(t, NewTestCommand, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := runCommand(t, NewTestCommand, &RootOptions{Format: "text"}, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, _, err := runCommand(t, NewTestCommand, &RootOptions{Format: "text"}, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, _, err := runCommand(t, NewTestCommand, &RootOptions{Format: "json"}, t.TempDir())
	require.NoError(t, err)

	resp, _ := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, _, err := runCommand(t, NewTestCommand, &RootOptions{Format: "text"}, scenariosDir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ social_reads")
	assert.Contains(t, out, "✓ translation_errors")
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, _, err := runCommand(t, NewTestCommand, &RootOptions{Format: "json"}, scenariosDir, "--filter", "social_*")
	require.NoError(t, err)

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	var result TestResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Passed)
	for _, s := range result.Scenarios {
		assert.True(t, strings.HasPrefix(s.Name, "social_"), s.Name)
	}
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "people", passingScenario)
	writeScenario(t, dir, "wrong_rows", failingScenario)

	out, _, err := runCommand(t, NewTestCommand, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ people")
	assert.Contains(t, out, "✗ wrong_rows")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandFailureJSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_rows", failingScenario)

	out, _, err := runCommand(t, NewTestCommand, &RootOptions{Format: "json"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp, data := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)

	var result TestResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Scenarios, 1)
	assert.False(t, result.Scenarios[0].Pass)
	assert.NotEmpty(t, result.Scenarios[0].Errors)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: x\nbogus: 1\n"), 0644))

	out, _, err := runCommand(t, NewTestCommand, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "people", passingScenario)
	goldenPath := filepath.Join(dir, "golden", "people.golden")

	// --update writes the snapshot.
	out, _, err := runCommand(t, NewTestCommand, &RootOptions{Format: "text"}, dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ people (golden updated)")

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario":"people"`)
	assert.Contains(t, string(data), `"rows":[["ann"]]`)

	// A matching snapshot passes.
	_, _, err = runCommand(t, NewTestCommand, &RootOptions{Format: "text"}, dir)
	require.NoError(t, err)

	// A stale snapshot fails.
	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	out, _, err = runCommand(t, NewTestCommand, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "social-reads.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "social-writes.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "library.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "social-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	for _, f := range files {
		assert.True(t, strings.HasPrefix(filepath.Base(f), "social-"), "Expected file to start with 'social-': %s", f)
	}

	_, err = findScenarioFiles(tmpDir, "[")
	assert.ErrorContains(t, err, "invalid filter pattern")
}

func TestFindScenarioFilesSkipsGolden(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	goldenDir := filepath.Join(tmpDir, "golden")
	require.NoError(t, os.MkdirAll(subDir, 0755))
	require.NoError(t, os.MkdirAll(goldenDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "old.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/path/to/scenario.yaml", "/path/to/golden/scenario.golden"},
		{"/path/to/scenario.yml", "/path/to/golden/scenario.golden"},
		{"scenarios/test.yaml", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.input))
	}
}
