package cypher

import "github.com/P-wig/cyphersql/internal/diag"

// Node is implemented by every AST node.
type Node interface {
	Span() diag.Span
	String() string
}

// Clause is a top-level clause of a statement.
//
// This is a sealed interface: only types in this package implement it.
type Clause interface {
	Node
	clauseNode()
}

// Expr is an expression.
//
// This is a sealed interface: only types in this package implement it.
type Expr interface {
	Node
	exprNode()
}

// Statement is a parsed query: an ordered list of clauses.
type Statement struct {
	Clauses []Clause
	Loc     diag.Span
}

func (s *Statement) Span() diag.Span { return s.Loc }

// MatchClause is [OPTIONAL] MATCH pattern, ... [WHERE expr].
type MatchClause struct {
	Optional bool
	Patterns []*PathPattern
	Where    Expr
	Loc      diag.Span
}

// ReturnClause is the projection of a read query.
type ReturnClause struct {
	Distinct bool
	Items    []*ReturnItem
	OrderBy  []*SortItem
	Skip     Expr
	Limit    Expr
	Loc      diag.Span
}

// ReturnItem is expr [AS alias].
type ReturnItem struct {
	Expr  Expr
	Alias string
	Loc   diag.Span
}

// SortItem is one ORDER BY key.
type SortItem struct {
	Expr       Expr
	Descending bool
	Loc        diag.Span
}

// CreateClause is CREATE pattern, ....
type CreateClause struct {
	Patterns []*PathPattern
	Loc      diag.Span
}

// MergeClause is MERGE pattern with optional ON CREATE / ON MATCH actions.
type MergeClause struct {
	Pattern  *PathPattern
	OnCreate []*SetItem
	OnMatch  []*SetItem
	Loc      diag.Span
}

// SetClause is SET item, ....
type SetClause struct {
	Items []*SetItem
	Loc   diag.Span
}

// SetItem assigns Value to the property Target.
type SetItem struct {
	Target *PropertyAccess
	Value  Expr
	Loc    diag.Span
}

// DeleteClause is [DETACH] DELETE expr, ....
type DeleteClause struct {
	Detach  bool
	Targets []Expr
	Loc     diag.Span
}

func (*MatchClause) clauseNode()  {}
func (*ReturnClause) clauseNode() {}
func (*CreateClause) clauseNode() {}
func (*MergeClause) clauseNode()  {}
func (*SetClause) clauseNode()    {}
func (*DeleteClause) clauseNode() {}

func (c *MatchClause) Span() diag.Span  { return c.Loc }
func (c *ReturnClause) Span() diag.Span { return c.Loc }
func (c *CreateClause) Span() diag.Span { return c.Loc }
func (c *MergeClause) Span() diag.Span  { return c.Loc }
func (c *SetClause) Span() diag.Span    { return c.Loc }
func (c *DeleteClause) Span() diag.Span { return c.Loc }
func (i *ReturnItem) Span() diag.Span   { return i.Loc }
func (i *SortItem) Span() diag.Span     { return i.Loc }
func (i *SetItem) Span() diag.Span      { return i.Loc }

// PathPattern is an alternating chain node (rel node)*.
// len(Rels) is always len(Nodes)-1.
type PathPattern struct {
	Nodes []*NodePattern
	Rels  []*RelationshipPattern
	Loc   diag.Span
}

func (p *PathPattern) Span() diag.Span { return p.Loc }

// Elements returns the pattern elements in source order.
func (p *PathPattern) Elements() []Node {
	out := make([]Node, 0, len(p.Nodes)+len(p.Rels))
	for i, n := range p.Nodes {
		if i > 0 {
			out = append(out, p.Rels[i-1])
		}
		out = append(out, n)
	}
	return out
}

// NodePattern is (var:Label {props}).
type NodePattern struct {
	Variable   string
	Labels     []string
	Properties *MapLiteral
	Loc        diag.Span
}

func (n *NodePattern) Span() diag.Span { return n.Loc }

// Direction of a relationship pattern as written.
type Direction int

const (
	// DirRight is (a)-[]->(b).
	DirRight Direction = iota
	// DirLeft is (a)<-[]-(b).
	DirLeft
	// DirBoth is (a)-[]-(b), matched in either direction.
	DirBoth
)

func (d Direction) String() string {
	switch d {
	case DirRight:
		return "right"
	case DirLeft:
		return "left"
	default:
		return "both"
	}
}

// RelationshipPattern is -[var:TYPE|OTHER *hops {props}]->.
// Hops is nil for a plain single-hop relationship.
type RelationshipPattern struct {
	Variable   string
	Types      []string
	Direction  Direction
	Hops       *HopRange
	Properties *MapLiteral
	Loc        diag.Span
}

func (r *RelationshipPattern) Span() diag.Span { return r.Loc }

// HopRange is the variable-length suffix of a relationship pattern as
// written: "*", "*n", "*n..m", "*..m" or "*n..".
type HopRange struct {
	Lower    int
	Upper    int
	HasLower bool
	HasUpper bool
	IsRange  bool
	Loc      diag.Span
}

// Bounds returns the effective hop range. Missing lower bounds default to 1;
// unbounded reports a missing upper bound.
func (h *HopRange) Bounds() (lower, upper int, unbounded bool) {
	if h == nil {
		return 1, 1, false
	}
	if !h.IsRange && h.HasLower {
		return h.Lower, h.Lower, false
	}
	lower = 1
	if h.HasLower {
		lower = h.Lower
	}
	if !h.HasUpper {
		return lower, 0, true
	}
	return lower, h.Upper, false
}

// Literal expressions.
type (
	IntLiteral struct {
		Value int64
		Loc   diag.Span
	}
	FloatLiteral struct {
		Value float64
		Loc   diag.Span
	}
	StringLiteral struct {
		Value string
		Loc   diag.Span
	}
	BoolLiteral struct {
		Value bool
		Loc   diag.Span
	}
	NullLiteral struct {
		Loc diag.Span
	}
)

// Parameter is $name.
type Parameter struct {
	Name string
	Loc  diag.Span
}

// Variable references a pattern variable or a RETURN alias.
type Variable struct {
	Name string
	Loc  diag.Span
}

// PropertyAccess is subject.key.
type PropertyAccess struct {
	Subject Expr
	Key     string
	Loc     diag.Span
}

// FunctionCall is name([DISTINCT] args) or count(*).
type FunctionCall struct {
	Name     string
	Distinct bool
	Star     bool
	Args     []Expr
	Loc      diag.Span
}

// BinaryOp is an infix operator.
type BinaryOp int

const (
	OpOr BinaryOp = iota
	OpXor
	OpAnd
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLte
	OpGte
	OpIn
	OpStartsWith
	OpEndsWith
	OpContains
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
)

var binaryOpText = [...]string{
	OpOr:         "OR",
	OpXor:        "XOR",
	OpAnd:        "AND",
	OpEq:         "=",
	OpNeq:        "<>",
	OpLt:         "<",
	OpGt:         ">",
	OpLte:        "<=",
	OpGte:        ">=",
	OpIn:         "IN",
	OpStartsWith: "STARTS WITH",
	OpEndsWith:   "ENDS WITH",
	OpContains:   "CONTAINS",
	OpAdd:        "+",
	OpSub:        "-",
	OpMul:        "*",
	OpDiv:        "/",
	OpMod:        "%",
}

func (op BinaryOp) String() string { return binaryOpText[op] }

// BinaryExpr is left op right.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
	Loc   diag.Span
}

// UnaryOp is a prefix operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
	OpPos
)

// UnaryExpr is op operand.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
	Loc     diag.Span
}

// IsNullExpr is operand IS [NOT] NULL.
type IsNullExpr struct {
	Operand Expr
	Negated bool
	Loc     diag.Span
}

// ListLiteral is [a, b, ...].
type ListLiteral struct {
	Items []Expr
	Loc   diag.Span
}

// MapLiteral is {key: value, ...}; only valid inside patterns.
type MapLiteral struct {
	Keys   []string
	Values []Expr
	Loc    diag.Span
}

// PatternExpr is a path pattern used as a boolean predicate.
type PatternExpr struct {
	Pattern *PathPattern
	Loc     diag.Span
}

func (*IntLiteral) exprNode()     {}
func (*FloatLiteral) exprNode()   {}
func (*StringLiteral) exprNode()  {}
func (*BoolLiteral) exprNode()    {}
func (*NullLiteral) exprNode()    {}
func (*Parameter) exprNode()      {}
func (*Variable) exprNode()       {}
func (*PropertyAccess) exprNode() {}
func (*FunctionCall) exprNode()   {}
func (*BinaryExpr) exprNode()     {}
func (*UnaryExpr) exprNode()      {}
func (*IsNullExpr) exprNode()     {}
func (*ListLiteral) exprNode()    {}
func (*MapLiteral) exprNode()     {}
func (*PatternExpr) exprNode()    {}

func (e *IntLiteral) Span() diag.Span     { return e.Loc }
func (e *FloatLiteral) Span() diag.Span   { return e.Loc }
func (e *StringLiteral) Span() diag.Span  { return e.Loc }
func (e *BoolLiteral) Span() diag.Span    { return e.Loc }
func (e *NullLiteral) Span() diag.Span    { return e.Loc }
func (e *Parameter) Span() diag.Span      { return e.Loc }
func (e *Variable) Span() diag.Span       { return e.Loc }
func (e *PropertyAccess) Span() diag.Span { return e.Loc }
func (e *FunctionCall) Span() diag.Span   { return e.Loc }
func (e *BinaryExpr) Span() diag.Span     { return e.Loc }
func (e *UnaryExpr) Span() diag.Span      { return e.Loc }
func (e *IsNullExpr) Span() diag.Span     { return e.Loc }
func (e *ListLiteral) Span() diag.Span    { return e.Loc }
func (e *MapLiteral) Span() diag.Span     { return e.Loc }
func (e *PatternExpr) Span() diag.Span    { return e.Loc }
