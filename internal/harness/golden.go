package harness

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/P-wig/cyphersql/internal/canon"
)

// Snapshot converts a result into canonical JSON: per step the query, the
// generated SQL, its parameters and result shape, and the rows or the error.
// Floats are rendered as strings since canonical JSON forbids them.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Trace))
	for i, st := range result.Trace {
		step := map[string]any{"query": st.Query}
		if st.Error != "" {
			step["error"] = st.Error
		}
		if st.SQL != "" {
			step["sql"] = st.SQL
		}
		if len(st.Params) > 0 {
			params := make([]any, len(st.Params))
			for j, p := range st.Params {
				if p.Name != "" {
					params[j] = "$" + p.Name
				} else {
					params[j] = snapshotValue(p.Value)
				}
			}
			step["params"] = params
		}
		if st.Columns != nil {
			cols := make([]any, len(st.Columns))
			for j, c := range st.Columns {
				cols[j] = c.Name + " " + string(c.Type)
			}
			step["columns"] = cols
		}
		if st.Rows != nil {
			rows := make([]any, len(st.Rows))
			for j, row := range st.Rows {
				cells := make([]any, len(row))
				for k, v := range row {
					cells[k] = snapshotValue(v)
				}
				rows[j] = cells
			}
			step["rows"] = rows
		} else if st.SQL != "" && st.Error == "" && st.Columns == nil {
			step["rows_affected"] = st.RowsAffected
		}
		steps[i] = step
	}

	data, err := canon.Marshal(map[string]any{
		"scenario": scenarioName,
		"pass":     result.Pass,
		"steps":    steps,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", scenarioName, err)
	}
	return append(data, '\n'), nil
}

func snapshotValue(v any) any {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case []byte:
		return string(x)
	}
	return v
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
