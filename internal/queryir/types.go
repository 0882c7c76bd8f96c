package queryir

import "github.com/P-wig/cyphersql/internal/ir"

// Kind is the statement a Plan renders to.
type Kind string

const (
	KindSelect Kind = "select"
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Type is the result type of a projected column.
type Type string

const (
	TypeString Type = "string"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeBool   Type = "bool"
	TypeAny    Type = "any"
)

// Plan is one SQL statement.
//
// For KindSelect the clauses map one to one onto
//
//	WITH <CTEs> SELECT [DISTINCT] <Projections> FROM <From> <Joins>
//	WHERE <Filter> GROUP BY <GroupBy> ORDER BY <OrderBy> LIMIT/OFFSET
//
// A select plan without From selects its projections from no table. An
// empty projection list selects the constant 1, which is what EXISTS
// subqueries use.
type Plan struct {
	Kind        Kind
	CTEs        []*CTE
	From        *TableBinding
	Joins       []*Join
	Filter      Expr
	Projections []*Projection
	// GroupBy holds 1-based projection ordinals.
	GroupBy  []int
	Distinct bool
	OrderBy  []*Order
	Skip     Expr
	Limit    Expr

	Insert *Insert
	Update *Update
	Delete *Delete
}

// TableBinding binds an alias to a table or a CTE.
type TableBinding struct {
	Alias string
	Table string
	// CTE marks Table as the name of a common table expression.
	CTE bool
	// Var is the query variable the binding serves, for explain output.
	Var string
}

// JoinKind is the join operator.
type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
	JoinCross JoinKind = "cross"
)

// Join adds one binding to the row source. A join with Nested bindings is
// a parenthesized group: Binding is the first table of the group and
// Nested joins the rest of it before On is applied to the whole group.
// OPTIONAL MATCH uses groups so a partial match never leaks into the
// result.
type Join struct {
	Kind    JoinKind
	Binding *TableBinding
	Nested  []*Join
	On      Expr

	// Relationship, Direction and Hops describe the traversal the join
	// implements; code generators ignore them.
	Relationship string
	Direction    string
	Hops         *HopRange
}

// HopRange is the traversal depth of a recursive join.
type HopRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// CTE is a common table expression: either an edge union or a recursive
// path fragment.
type CTE struct {
	Name    string
	Columns []string

	Union     *EdgeUnion
	Recursive *Recursive
}

// EdgeUnion concatenates edge rows of several tables or orientations. Each
// branch projects the CTE columns in order.
type EdgeUnion struct {
	Branches []*Plan
}

// Recursive is a path fragment. Base produces the first rows, Step extends
// the running rows by one more edge while the depth stays below MaxHops.
// The columns are start key, end key and depth.
type Recursive struct {
	Base    *Plan
	Step    *Plan
	MinHops int
	MaxHops int
}

// Projection is one result column.
type Projection struct {
	Name      string
	Expr      Expr
	Type      Type
	Aggregate bool
}

// Order is one ORDER BY key: a 1-based projection ordinal, or an
// expression when Ordinal is zero.
type Order struct {
	Ordinal    int
	Expr       Expr
	Descending bool
}

// Insert adds rows to Table. Exactly one of Values and Select is set;
// Select projects one expression per column.
type Insert struct {
	Table   string
	Columns []string
	Values  []Expr
	Select  *Plan
}

// Update assigns columns of the rows of Table matching Filter. Column
// references in Sets and Filter that name the table itself use Table as
// their alias.
type Update struct {
	Table  string
	Sets   []*Assignment
	Filter Expr
}

// Assignment is one SET column = value.
type Assignment struct {
	Column string
	Value  Expr
}

// Delete removes the rows of Table matching Filter.
type Delete struct {
	Table  string
	Filter Expr
}

// Expr is a sealed interface for plan expressions.
type Expr interface {
	exprNode()
}

type (
	// Column is "Alias"."Name". An empty Alias renders the bare name.
	Column struct {
		Alias string
		Name  string
	}

	// Literal is a constant; code generators bind it as a parameter.
	Literal struct {
		Value ir.Value
	}

	// Param is a named query parameter. List marks a parameter bound to a
	// list, as on the right of IN.
	Param struct {
		Name string
		List bool
	}

	// Null is the NULL keyword.
	Null struct{}

	// Number is an integer the planner derives from the query structure,
	// such as a hop depth. It is rendered inline, never bound.
	Number struct {
		Value int
	}

	// Binary applies an SQL operator: comparison, AND, OR, arithmetic or
	// || for string concatenation.
	Binary struct {
		Op    string
		Left  Expr
		Right Expr
	}

	// Unary applies NOT or - to its operand.
	Unary struct {
		Op      string
		Operand Expr
	}

	// Func calls a function by its portable name; see the Func* constants.
	Func struct {
		Name     string
		Args     []Expr
		Distinct bool
		Star     bool
	}

	// StringMatch tests a prefix, suffix or substring. Dialects render it
	// with their own string functions.
	StringMatch struct {
		Match   MatchKind
		Subject Expr
		Pattern Expr
	}

	IsNull struct {
		Operand Expr
		Negated bool
	}

	// In tests membership in a list of expressions or in a list
	// parameter. An empty List never matches.
	In struct {
		Operand Expr
		List    []Expr
		Param   *Param
	}

	// InSelect tests membership in the single column of a subquery.
	InSelect struct {
		Operand Expr
		Plan    *Plan
	}

	// Exists tests whether a correlated subquery returns a row.
	Exists struct {
		Plan    *Plan
		Negated bool
	}

	// Case maps the value of Operand to a result; no match yields NULL.
	Case struct {
		Operand Expr
		Whens   []When
	}
)

// When is one branch of a Case.
type When struct {
	Value  Expr
	Result Expr
}

// MatchKind selects the string test of a StringMatch.
type MatchKind string

const (
	MatchPrefix   MatchKind = "prefix"
	MatchSuffix   MatchKind = "suffix"
	MatchContains MatchKind = "contains"
)

// Portable function names.
const (
	FuncCount    = "count"
	FuncSum      = "sum"
	FuncAvg      = "avg"
	FuncMin      = "min"
	FuncMax      = "max"
	FuncUpper    = "upper"
	FuncLower    = "lower"
	FuncTrim     = "trim"
	FuncLength   = "length"
	FuncAbs      = "abs"
	FuncCoalesce = "coalesce"
)

func (*Column) exprNode()      {}
func (*Literal) exprNode()     {}
func (*Param) exprNode()       {}
func (*Null) exprNode()        {}
func (*Number) exprNode()      {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Func) exprNode()        {}
func (*StringMatch) exprNode() {}
func (*IsNull) exprNode()      {}
func (*In) exprNode()          {}
func (*InSelect) exprNode()    {}
func (*Exists) exprNode()      {}
func (*Case) exprNode()        {}

// Col is shorthand for a qualified column reference.
func Col(alias, name string) *Column {
	return &Column{Alias: alias, Name: name}
}

// And conjoins the non-nil expressions; it returns nil when there are none.
func And(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		switch {
		case e == nil:
		case out == nil:
			out = e
		default:
			out = &Binary{Op: "AND", Left: out, Right: e}
		}
	}
	return out
}

// Or disjoins the non-nil expressions; it returns nil when there are none.
func Or(exprs ...Expr) Expr {
	var out Expr
	for _, e := range exprs {
		switch {
		case e == nil:
		case out == nil:
			out = e
		default:
			out = &Binary{Op: "OR", Left: out, Right: e}
		}
	}
	return out
}

// Eq is left = right.
func Eq(left, right Expr) Expr {
	return &Binary{Op: "=", Left: left, Right: right}
}

// Bindings lists the bindings a join adds, group members included.
func (j *Join) Bindings() []*TableBinding {
	out := []*TableBinding{j.Binding}
	for _, n := range j.Nested {
		out = append(out, n.Bindings()...)
	}
	return out
}

// Walk calls fn for e and every expression below it. Nested plans are not
// entered.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch x := e.(type) {
	case *Binary:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	case *Unary:
		Walk(x.Operand, fn)
	case *Func:
		for _, a := range x.Args {
			Walk(a, fn)
		}
	case *StringMatch:
		Walk(x.Subject, fn)
		Walk(x.Pattern, fn)
	case *IsNull:
		Walk(x.Operand, fn)
	case *In:
		Walk(x.Operand, fn)
		for _, item := range x.List {
			Walk(item, fn)
		}
		if x.Param != nil {
			Walk(x.Param, fn)
		}
	case *InSelect:
		Walk(x.Operand, fn)
	case *Case:
		Walk(x.Operand, fn)
		for _, w := range x.Whens {
			Walk(w.Value, fn)
			Walk(w.Result, fn)
		}
	}
}
