package ir

import (
	"fmt"

	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/schema"
)

// VarKind tells node variables from relationship variables.
type VarKind int

const (
	VarNode VarKind = iota
	VarRel
)

func (k VarKind) String() string {
	if k == VarRel {
		return "relationship"
	}
	return "node"
}

// Var is one resolved pattern variable.
//
// A node variable resolves to exactly one label (Node). A relationship
// variable resolves to one or more types (Rels, in Types order).
type Var struct {
	Name      string
	Kind      VarKind
	Synthetic bool

	Label string
	Node  *schema.Node

	Types []string
	Rels  []*schema.Relationship

	// Span is the first declaration.
	Span diag.Span
}

// Direction of a relationship step relative to Left → Right.
type Direction int

const (
	DirOut  Direction = iota // (Left)-->(Right)
	DirIn                    // (Left)<--(Right)
	DirBoth                  // (Left)--(Right)
)

func (d Direction) String() string {
	switch d {
	case DirIn:
		return "in"
	case DirBoth:
		return "both"
	default:
		return "out"
	}
}

// Hops is a resolved hop range.
type Hops struct {
	Min       int
	Max       int
	Unbounded bool
}

// Fixed reports whether the range is exactly one hop.
func (h Hops) Fixed() bool {
	return h.Min == 1 && h.Max == 1 && !h.Unbounded
}

// String renders the range in pattern syntax, as *1..5 or *2.. .
func (h Hops) String() string {
	if h.Unbounded {
		return fmt.Sprintf("*%d..", h.Min)
	}
	return fmt.Sprintf("*%d..%d", h.Min, h.Max)
}

// Step is one relationship of a path.
type Step struct {
	Var       *Var
	Left      *Var
	Right     *Var
	Direction Direction
	Hops      Hops
	// VarLength is set for any *-range, including *1..1.
	VarLength bool
	Span      diag.Span
}

// Orientations reports in which stored orientations rel can match the step
// given the endpoint labels: forward means Left is the relationship's source.
func (s *Step) Orientations(rel *schema.Relationship) (forward, backward bool) {
	fits := func(ep schema.Endpoint, v *Var) bool {
		return ep.Label == "" || v.Label == "" || ep.Label == v.Label
	}
	out := fits(rel.Source(), s.Left) && fits(rel.Target(), s.Right)
	in := fits(rel.Source(), s.Right) && fits(rel.Target(), s.Left)
	switch s.Direction {
	case DirOut:
		return out, false
	case DirIn:
		return false, in
	default:
		return out, in
	}
}

// Path is a chain of nodes joined by steps. A single-node path has no steps.
type Path struct {
	Nodes []*Var
	Steps []*Step
	Span  diag.Span
}

// Match is one MATCH or OPTIONAL MATCH clause.
type Match struct {
	Optional bool
	Paths    []*Path
	// Filters come from inline property maps.
	Filters []Expr
	Where   Expr
	Span    diag.Span
}

// Vars lists the variables the clause mentions in first-appearance order.
func (m *Match) Vars() []*Var {
	seen := make(map[*Var]bool)
	var out []*Var
	add := func(v *Var) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, p := range m.Paths {
		for i, n := range p.Nodes {
			add(n)
			if i < len(p.Steps) {
				add(p.Steps[i].Var)
			}
		}
	}
	return out
}

// ReturnItem is one projected expression.
type ReturnItem struct {
	Expr Expr
	// Name is the result column name: the alias, or a name derived from the
	// expression.
	Name    string
	Aliased bool
	Span    diag.Span
}

// SortItem is one ORDER BY key. Item is the index of the return item it
// names, or -1 for an arbitrary expression.
type SortItem struct {
	Expr       Expr
	Item       int
	Descending bool
}

// Return is the RETURN clause.
type Return struct {
	Distinct bool
	Items    []*ReturnItem
	OrderBy  []*SortItem
	Skip     Expr
	Limit    Expr
	Span     diag.Span
}

// Query is a bound statement.
type Query struct {
	Vars   []*Var
	Reads  []*Match
	Return *Return
	Write  Write
	// Params lists parameter names in first-appearance order.
	Params []string
}

// Write is a sealed interface for the single updating clause of a query.
type Write interface {
	writeNode()
	WriteSpan() diag.Span
}

// PropertyValue assigns an expression to a mapped property.
type PropertyValue struct {
	Prop  *schema.Property
	Value Expr
}

// CreateNode inserts one node.
type CreateNode struct {
	Var    *Var
	Values []PropertyValue
	Span   diag.Span
}

// CreateRel inserts one relationship between two matched nodes.
type CreateRel struct {
	Var    *Var
	From   *Var
	To     *Var
	Values []PropertyValue
	Span   diag.Span
}

// MergeNode inserts a node unless one with the same property values exists.
type MergeNode struct {
	Var      *Var
	Match    []PropertyValue
	OnCreate []PropertyValue
	Span     diag.Span
}

// MergeRel inserts a relationship between two matched nodes unless one
// with the same property values already connects them.
type MergeRel struct {
	Var      *Var
	From     *Var
	To       *Var
	Match    []PropertyValue
	OnCreate []PropertyValue
	Span     diag.Span
}

// Update assigns properties of one matched variable.
type Update struct {
	Var    *Var
	Values []PropertyValue
	Span   diag.Span
}

// Delete removes one matched variable's rows.
type Delete struct {
	Var  *Var
	Span diag.Span
}

func (*CreateNode) writeNode() {}
func (*CreateRel) writeNode()  {}
func (*MergeNode) writeNode()  {}
func (*MergeRel) writeNode()   {}
func (*Update) writeNode()     {}
func (*Delete) writeNode()     {}

func (w *CreateNode) WriteSpan() diag.Span { return w.Span }
func (w *CreateRel) WriteSpan() diag.Span  { return w.Span }
func (w *MergeNode) WriteSpan() diag.Span  { return w.Span }
func (w *MergeRel) WriteSpan() diag.Span   { return w.Span }
func (w *Update) WriteSpan() diag.Span     { return w.Span }
func (w *Delete) WriteSpan() diag.Span     { return w.Span }
