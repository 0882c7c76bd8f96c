package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path of the schema description. LoadScenario resolves it
	// relative to the scenario file.
	Schema string `yaml:"schema"`

	// MaxDepth caps unbounded variable-length relationships.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// Fixtures maps table names to the rows loaded before the first step.
	Fixtures map[string][]map[string]any `yaml:"fixtures,omitempty"`

	// Steps run in order against the same database.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final database state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one statement with its expected outcome.
type Step struct {
	Query  string         `yaml:"query"`
	Params map[string]any `yaml:"params,omitempty"`

	// Expect is optional; without it the step only has to succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome of a step. Only set fields are checked.
type Expect struct {
	Columns []string `yaml:"columns,omitempty"`
	Rows    [][]any  `yaml:"rows,omitempty"`

	// Ordered compares rows in order; otherwise as a multiset.
	Ordered bool `yaml:"ordered,omitempty"`

	RowsAffected *int64 `yaml:"rows_affected,omitempty"`

	// SQLContains lists fragments the generated SQL must contain.
	SQLContains []string `yaml:"sql_contains,omitempty"`

	// Error expects translation to fail.
	Error *ExpectError `yaml:"error,omitempty"`
}

// ExpectError matches a translation error by category and, optionally,
// kind.
type ExpectError struct {
	Category string `yaml:"category"`
	Kind     string `yaml:"kind,omitempty"`
}

// Assertion validates the final database state.
type Assertion struct {
	// Type is final_state or row_count.
	Type string `yaml:"type"`

	Table string `yaml:"table"`

	// Where filters rows; all fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected values (final_state, subset match).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of matching rows (row_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every .yaml and .yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema file not found: %s", s.Schema)
	}
	if s.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if strings.TrimSpace(step.Query) == "" {
			return fmt.Errorf("steps[%d]: query is required", i)
		}
		if e := step.Expect; e != nil && e.Error != nil {
			if e.Error.Category == "" {
				return fmt.Errorf("steps[%d].expect.error: category is required", i)
			}
			if e.Columns != nil || e.Rows != nil || e.RowsAffected != nil {
				return fmt.Errorf("steps[%d].expect: error excludes columns, rows and rows_affected", i)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Table == "" {
		return fmt.Errorf("assertions[%d]: table is required for %s", index, a.Type)
	}

	switch a.Type {
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
