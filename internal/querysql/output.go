package querysql

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/P-wig/cyphersql/internal/queryir"
)

// Output is one translated statement.
type Output struct {
	SQL string `json:"sql"`
	// Params lists the bind parameters in placeholder order.
	Params []Param `json:"params"`
	// Columns is the result shape of a select, in select-list order.
	Columns []Column     `json:"columns,omitempty"`
	Kind    queryir.Kind `json:"kind"`
	Dialect Dialect      `json:"dialect"`
}

// Param is one bind parameter: a literal Value, or the Name of a query
// parameter supplied at execution time.
type Param struct {
	Name  string `json:"name,omitempty"`
	Value any    `json:"value,omitempty"`
	// List marks a query parameter that must hold a list.
	List bool `json:"list,omitempty"`
}

// Column is one result column.
type Column struct {
	Name string       `json:"name"`
	Type queryir.Type `json:"type"`
}

// Args resolves the bind parameters against named query parameter values
// and returns them in placeholder order, ready for database/sql.
//
// List parameters are passed through for postgres (= ANY($n)) and encoded
// as a JSON array for sqlite (json_each).
func (o *Output) Args(named map[string]any) ([]any, error) {
	args := make([]any, 0, len(o.Params))
	for _, p := range o.Params {
		if p.Name == "" {
			args = append(args, p.Value)
			continue
		}
		v, ok := named[p.Name]
		if !ok {
			return nil, fmt.Errorf("missing parameter $%s", p.Name)
		}
		if p.List {
			kind := reflect.ValueOf(v).Kind()
			if kind != reflect.Slice && kind != reflect.Array {
				return nil, fmt.Errorf("parameter $%s: want a list, got %T", p.Name, v)
			}
			if o.Dialect == SQLite {
				data, err := json.Marshal(v)
				if err != nil {
					return nil, fmt.Errorf("encode parameter $%s: %w", p.Name, err)
				}
				v = string(data)
			}
		}
		args = append(args, v)
	}
	return args, nil
}

// ParamNames lists the distinct query parameters the statement needs, in
// first-use order.
func (o *Output) ParamNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range o.Params {
		if p.Name != "" && !seen[p.Name] {
			seen[p.Name] = true
			out = append(out, p.Name)
		}
	}
	return out
}

// Clone returns a copy sharing nothing mutable with o.
func (o *Output) Clone() *Output {
	c := *o
	c.Params = append([]Param(nil), o.Params...)
	if o.Columns != nil {
		c.Columns = append([]Column(nil), o.Columns...)
	}
	return &c
}
