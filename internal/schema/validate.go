package schema

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Validation error codes (E300-E399)
const (
	ErrNoNodes                = "E301" // at least one label required
	ErrSharedNodeTable        = "E302" // shared node table without distinct discriminators
	ErrUnknownEndpointLabel   = "E303" // endpoint label not declared
	ErrDuplicateColumn        = "E304" // two properties of one owner map to one column
	ErrRelationshipSideTable  = "E305" // side tables are only allowed on node properties
	ErrSameEndpointColumns    = "E306" // start and end share a column
	ErrSharedEdgeTable        = "E307" // shared edge table without distinct discriminators
	ErrNodeEdgeTableConflict  = "E308" // one table used for nodes and edges
	ErrSharedTableKeyMismatch = "E309" // labels sharing a table disagree on the key
	ErrEmptyName              = "E310" // label, type, table or column empty
	ErrInvalidPropertyType    = "E311" // type not in string|int|float|bool
	ErrDuplicateName          = "E312" // label or relationship type declared twice
	ErrSideTableConflict      = "E313" // side table also stores nodes or edges
	ErrSharedSideTable        = "E314" // side table used by different owners or keys
)

// ValidationError is one semantic problem in a schema description.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in a description.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks that the mapping from labels and types to tables is
// total and non-overlapping. Returns all errors found (does not fail-fast).
func Validate(d *Description) ValidationErrors {
	var errs ValidationErrors

	// E301: a schema without labels cannot map any pattern.
	if len(d.Nodes) == 0 {
		errs = append(errs, ValidationError{
			Field:   "nodes",
			Message: "at least one label is required",
			Code:    ErrNoNodes,
		})
	}

	labels := make(map[string]bool, len(d.Nodes))
	nodeTables := make(map[string][]*Node)
	sideTables := make(map[string][]sideUse)
	for _, n := range d.Nodes {
		field := "nodes." + n.Label
		line := n.pos.Line()
		if labels[n.Label] {
			errs = append(errs, ValidationError{Field: field, Message: "label declared more than once", Code: ErrDuplicateName, Line: line})
		}
		labels[n.Label] = true
		errs = append(errs, requireNames(field, line, map[string]string{
			"label": n.Label,
			"table": n.Table,
			"key":   n.Key,
		})...)
		errs = append(errs, validateProperties(field, line, n.Properties, true)...)
		nodeTables[n.Table] = append(nodeTables[n.Table], n)
		for _, p := range n.Properties {
			if p.Side != nil {
				sideTables[p.Side.Table] = append(sideTables[p.Side.Table], sideUse{
					field: field + ".properties." + p.Name + ".side_table",
					line:  line,
					owner: n.Table,
					key:   p.Side.Key,
				})
			}
		}
	}

	for table, nodes := range sortedGroups(nodeTables) {
		if len(nodes) < 2 {
			continue
		}
		for _, n := range nodes[1:] {
			if n.Key != nodes[0].Key {
				errs = append(errs, ValidationError{
					Field:   "nodes." + n.Label + ".key",
					Message: fmt.Sprintf("table %q is keyed by %q for label %s", table, nodes[0].Key, nodes[0].Label),
					Code:    ErrSharedTableKeyMismatch,
					Line:    n.pos.Line(),
				})
			}
		}
		discs := make([]*Discriminator, len(nodes))
		names := make([]string, len(nodes))
		for i, n := range nodes {
			discs[i] = n.Discriminator
			names[i] = n.Label
		}
		if msg := checkDiscriminators(discs); msg != "" {
			errs = append(errs, ValidationError{
				Field:   "nodes." + strings.Join(names, ","),
				Message: fmt.Sprintf("labels share table %q: %s", table, msg),
				Code:    ErrSharedNodeTable,
				Line:    nodes[1].pos.Line(),
			})
		}
	}

	types := make(map[string]bool, len(d.Relationships))
	edgeTables := make(map[string][]*Relationship)
	for _, r := range d.Relationships {
		field := "relationships." + r.Type
		line := r.pos.Line()
		if types[r.Type] {
			errs = append(errs, ValidationError{Field: field, Message: "relationship type declared more than once", Code: ErrDuplicateName, Line: line})
		}
		types[r.Type] = true
		errs = append(errs, requireNames(field, line, map[string]string{
			"type":         r.Type,
			"table":        r.Table,
			"start.column": r.Start.Column,
			"end.column":   r.End.Column,
		})...)

		if r.Start.Column != "" && r.Start.Column == r.End.Column {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("start and end both use column %q", r.Start.Column),
				Code:    ErrSameEndpointColumns,
				Line:    line,
			})
		}
		for _, ep := range []struct {
			name  string
			label string
		}{{"start", r.Start.Label}, {"end", r.End.Label}} {
			if ep.label != "" && !labels[ep.label] {
				errs = append(errs, ValidationError{
					Field:   field + "." + ep.name + ".label",
					Message: fmt.Sprintf("unknown label %q", ep.label),
					Code:    ErrUnknownEndpointLabel,
					Line:    line,
				})
			}
		}
		if _, ok := nodeTables[r.Table]; ok {
			errs = append(errs, ValidationError{
				Field:   field + ".table",
				Message: fmt.Sprintf("table %q already stores nodes", r.Table),
				Code:    ErrNodeEdgeTableConflict,
				Line:    line,
			})
		}
		errs = append(errs, validateProperties(field, line, r.Properties, false)...)
		edgeTables[r.Table] = append(edgeTables[r.Table], r)
	}

	for table, rels := range sortedGroups(edgeTables) {
		if len(rels) < 2 {
			continue
		}
		discs := make([]*Discriminator, len(rels))
		names := make([]string, len(rels))
		for i, r := range rels {
			discs[i] = r.Discriminator
			names[i] = r.Type
		}
		if msg := checkDiscriminators(discs); msg != "" {
			errs = append(errs, ValidationError{
				Field:   "relationships." + strings.Join(names, ","),
				Message: fmt.Sprintf("types share table %q: %s", table, msg),
				Code:    ErrSharedEdgeTable,
				Line:    rels[1].pos.Line(),
			})
		}
	}

	errs = append(errs, validateSideTables(sideTables, nodeTables, edgeTables)...)
	return errs
}

// sideUse is one property stored in a side table.
type sideUse struct {
	field string
	line  int
	owner string
	key   string
}

// validateSideTables checks that every side table holds at most one row
// per owner: it belongs to a single owner table, is keyed by one column
// and stores no nodes or edges.
func validateSideTables(sides map[string][]sideUse, nodeTables map[string][]*Node, edgeTables map[string][]*Relationship) []ValidationError {
	var errs []ValidationError
	for table, uses := range sortedGroups(sides) {
		_, isNode := nodeTables[table]
		_, isEdge := edgeTables[table]
		if isNode || isEdge {
			errs = append(errs, ValidationError{
				Field:   uses[0].field,
				Message: fmt.Sprintf("side table %q also stores nodes or relationships", table),
				Code:    ErrSideTableConflict,
				Line:    uses[0].line,
			})
		}
		for _, u := range uses[1:] {
			if u.owner != uses[0].owner || u.key != uses[0].key {
				errs = append(errs, ValidationError{
					Field:   u.field,
					Message: fmt.Sprintf("side table %q is keyed by %q on table %q", table, uses[0].key, uses[0].owner),
					Code:    ErrSharedSideTable,
					Line:    u.line,
				})
			}
		}
	}
	return errs
}

func requireNames(field string, line int, names map[string]string) []ValidationError {
	var errs []ValidationError
	for _, k := range sortedKeys(names) {
		if strings.TrimSpace(names[k]) == "" {
			errs = append(errs, ValidationError{
				Field:   field + "." + k,
				Message: "must be non-empty",
				Code:    ErrEmptyName,
				Line:    line,
			})
		}
	}
	return errs
}

func validateProperties(field string, line int, props []*Property, allowSide bool) []ValidationError {
	var errs []ValidationError
	columns := make(map[string]string)
	for _, p := range props {
		pfield := field + ".properties." + p.Name
		switch p.Type {
		case TypeString, TypeInt, TypeFloat, TypeBool:
		default:
			errs = append(errs, ValidationError{
				Field:   pfield + ".type",
				Message: fmt.Sprintf("invalid type %q (must be string, int, float or bool)", p.Type),
				Code:    ErrInvalidPropertyType,
				Line:    line,
			})
		}
		if p.Side != nil {
			if !allowSide {
				errs = append(errs, ValidationError{
					Field:   pfield + ".side_table",
					Message: "side tables are only supported on node properties",
					Code:    ErrRelationshipSideTable,
					Line:    line,
				})
			}
			continue
		}
		if other, ok := columns[p.Column]; ok {
			errs = append(errs, ValidationError{
				Field:   pfield + ".column",
				Message: fmt.Sprintf("column %q is already mapped by property %q", p.Column, other),
				Code:    ErrDuplicateColumn,
				Line:    line,
			})
			continue
		}
		columns[p.Column] = p.Name
	}
	return errs
}

// checkDiscriminators returns a reason when rows sharing a table cannot be
// told apart, or "" when every owner has a distinct value on one column.
func checkDiscriminators(discs []*Discriminator) string {
	seen := make(map[string]bool, len(discs))
	for _, d := range discs {
		if d == nil {
			return "every owner of a shared table needs a discriminator"
		}
		if d.Column != discs[0].Column {
			return fmt.Sprintf("discriminators use different columns %q and %q", discs[0].Column, d.Column)
		}
		if seen[d.Value] {
			return fmt.Sprintf("discriminator value %q is used twice", d.Value)
		}
		seen[d.Value] = true
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// sortedGroups iterates m in key order.
func sortedGroups[V any](m map[string]V) iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for _, k := range sortedKeys(m) {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}
