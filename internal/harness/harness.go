package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/schema"
	"github.com/P-wig/cyphersql/internal/store"
	"github.com/P-wig/cyphersql/internal/transform"
)

// Harness is the test execution engine for one scenario.
type Harness struct {
	store       *store.Store
	transformer *transform.Transformer
	logger      *slog.Logger
}

// Run executes a test scenario with logs discarded.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunContext executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load the schema and create its tables
// 2. Load fixtures, tables in sorted order
// 3. Translate and execute each step, checking its expectations
// 4. Evaluate assertions against the final database state
//
// The returned error reports a scenario that could not be set up; failed
// expectations are reported in the Result.
func RunContext(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Result, error) {
	desc, err := schema.Load(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.ApplySchema(ctx, desc); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	tr, err := transform.New(schema.NewHolder(desc),
		transform.WithDialect(st.Dialect()),
		transform.WithMaxDepth(scenario.MaxDepth),
		transform.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	h := &Harness{store: st, transformer: tr, logger: logger}

	if err := h.loadFixtures(ctx, scenario.Fixtures); err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	logger.Info("scenario completed",
		"scenario", scenario.Name,
		"steps", len(scenario.Steps),
		"pass", result.Pass)
	return result, nil
}

func (h *Harness) loadFixtures(ctx context.Context, fixtures map[string][]map[string]any) error {
	tables := make([]string, 0, len(fixtures))
	for t := range fixtures {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	for _, t := range tables {
		if err := h.store.InsertRows(ctx, t, fixtures[t]); err != nil {
			return err
		}
	}
	return nil
}

// executeStep translates and runs one step. Failures are recorded in result
// and never stop the scenario.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) {
	trace := StepTrace{Query: step.Query}
	defer func() { result.Trace = append(result.Trace, trace) }()

	expect := step.Expect
	if expect == nil {
		expect = &Expect{}
	}

	out, err := h.transformer.Transform(step.Query)
	if err != nil {
		trace.Error = describe(err)
		if msg := checkError(expect.Error, err); msg != "" {
			result.AddError(fmt.Sprintf("steps[%d]: %s", i, msg))
		}
		return
	}

	trace.SQL = out.SQL
	trace.Params = out.Params
	trace.Columns = out.Columns

	if expect.Error != nil {
		result.AddError(fmt.Sprintf("steps[%d]: expected %s, translation succeeded", i, expect.Error))
		return
	}
	for _, frag := range expect.SQLContains {
		if !strings.Contains(out.SQL, frag) {
			result.AddError(fmt.Sprintf("steps[%d]: SQL does not contain %q: %s", i, frag, out.SQL))
		}
	}

	res, err := h.store.Run(ctx, out, step.Params)
	if err != nil {
		trace.Error = err.Error()
		result.AddError(fmt.Sprintf("steps[%d]: execute: %v", i, err))
		return
	}

	h.logger.Debug("step executed", "step", i, "sql", out.SQL)

	if res.Table == nil {
		trace.RowsAffected = res.RowsAffected
		if expect.RowsAffected != nil && *expect.RowsAffected != res.RowsAffected {
			result.AddError(fmt.Sprintf("steps[%d]: rows affected: expected %d, got %d", i, *expect.RowsAffected, res.RowsAffected))
		}
		if expect.Columns != nil || expect.Rows != nil {
			result.AddError(fmt.Sprintf("steps[%d]: expected rows from a %s statement", i, out.Kind))
		}
		return
	}

	trace.Rows = res.Table.Rows
	if expect.Columns != nil && !equalStrings(expect.Columns, res.Table.Columns) {
		result.AddError(fmt.Sprintf("steps[%d]: columns: expected %v, got %v", i, expect.Columns, res.Table.Columns))
	}
	if expect.Rows != nil {
		if msg := compareRows(expect.Rows, res.Table.Rows, expect.Ordered); msg != "" {
			result.AddError(fmt.Sprintf("steps[%d]: %s", i, msg))
		}
	}
}

func (e *ExpectError) String() string {
	if e.Kind == "" {
		return e.Category
	}
	return e.Category + "::" + e.Kind
}

// describe renders translation errors as Category::Kind, which stays stable
// when messages are reworded.
func describe(err error) string {
	de, ok := diag.As(err)
	if !ok {
		return err.Error()
	}
	return (&ExpectError{Category: string(de.Category), Kind: string(de.Kind)}).String()
}

func checkError(want *ExpectError, err error) string {
	if want == nil {
		return fmt.Sprintf("translate: %v", err)
	}
	de, ok := diag.As(err)
	if !ok {
		return fmt.Sprintf("expected %s, got %v", want, err)
	}
	if string(de.Category) != want.Category || (want.Kind != "" && string(de.Kind) != want.Kind) {
		return fmt.Sprintf("expected %s, got %s: %s", want, describe(err), de.Message)
	}
	return ""
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// compareRows returns a description of the first mismatch, or "".
func compareRows(expected, actual [][]any, ordered bool) string {
	if len(expected) != len(actual) {
		return fmt.Sprintf("rows: expected %d, got %d: %v", len(expected), len(actual), actual)
	}
	if ordered {
		for i := range expected {
			if !rowEqual(expected[i], actual[i]) {
				return fmt.Sprintf("row %d: expected %v, got %v", i, expected[i], actual[i])
			}
		}
		return ""
	}

	used := make([]bool, len(actual))
	for _, want := range expected {
		found := false
		for j, got := range actual {
			if !used[j] && rowEqual(want, got) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return fmt.Sprintf("row %v not found in %v", want, actual)
		}
	}
	return ""
}

func rowEqual(expected, actual []any) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i := range expected {
		if !valuesEqual(expected[i], actual[i]) {
			return false
		}
	}
	return true
}
