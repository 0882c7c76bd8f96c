package ir

import (
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/schema"
)

// Expr is a sealed interface for bound expressions.
type Expr interface {
	exprNode()
	Span() diag.Span
}

// Op is a binary or unary operator.
type Op string

const (
	OpOr         Op = "OR"
	OpXor        Op = "XOR"
	OpAnd        Op = "AND"
	OpNot        Op = "NOT"
	OpEq         Op = "="
	OpNeq        Op = "<>"
	OpLt         Op = "<"
	OpGt         Op = ">"
	OpLte        Op = "<="
	OpGte        Op = ">="
	OpStartsWith Op = "STARTS WITH"
	OpEndsWith   Op = "ENDS WITH"
	OpContains   Op = "CONTAINS"
	OpAdd        Op = "+"
	OpSub        Op = "-"
	OpMul        Op = "*"
	OpDiv        Op = "/"
	OpMod        Op = "%"
	OpNeg        Op = "NEG"
)

// IsComparison reports whether op compares two values.
func (op Op) IsComparison() bool {
	switch op {
	case OpEq, OpNeq, OpLt, OpGt, OpLte, OpGte:
		return true
	}
	return false
}

// IsStringPredicate reports whether op is STARTS WITH, ENDS WITH or CONTAINS.
func (op Op) IsStringPredicate() bool {
	return op == OpStartsWith || op == OpEndsWith || op == OpContains
}

// IsLogical reports whether op combines booleans.
func (op Op) IsLogical() bool {
	return op == OpAnd || op == OpOr || op == OpXor || op == OpNot
}

// IsArithmetic reports whether op computes a number.
func (op Op) IsArithmetic() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpNeg:
		return true
	}
	return false
}

// Literal is a constant.
type Literal struct {
	Value Value
	Loc   diag.Span
}

// Param is a query parameter ($name).
type Param struct {
	Name string
	Loc  diag.Span
}

// Property reads a mapped property of a variable.
type Property struct {
	Var  *Var
	Prop *schema.Property
	Loc  diag.Span
}

// VarRef is a whole node or relationship variable.
type VarRef struct {
	Var *Var
	Loc diag.Span
}

// Binary applies a binary operator.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
	Loc   diag.Span
}

// Unary applies NOT or numeric negation.
type Unary struct {
	Op      Op
	Operand Expr
	Loc     diag.Span
}

// IsNull tests for null.
type IsNull struct {
	Operand Expr
	Negated bool
	Loc     diag.Span
}

// In tests list membership. List is a *List or a *Param holding a list.
type In struct {
	Operand Expr
	List    Expr
	Loc     diag.Span
}

// ListExpr is a list of expressions.
type ListExpr struct {
	Items []Expr
	Loc   diag.Span
}

// Call invokes a function from the function table.
type Call struct {
	Func     *Function
	Args     []Expr
	Distinct bool
	// Star is count(*).
	Star bool
	Loc  diag.Span
}

// Exists is a pattern predicate: true when the path has a match correlated
// with the enclosing variables.
type Exists struct {
	Path *Path
	// Filters come from inline property maps inside the pattern.
	Filters []Expr
	Loc     diag.Span
}

func (*Literal) exprNode()  {}
func (*Param) exprNode()    {}
func (*Property) exprNode() {}
func (*VarRef) exprNode()   {}
func (*Binary) exprNode()   {}
func (*Unary) exprNode()    {}
func (*IsNull) exprNode()   {}
func (*In) exprNode()       {}
func (*ListExpr) exprNode() {}
func (*Call) exprNode()     {}
func (*Exists) exprNode()   {}

func (e *Literal) Span() diag.Span  { return e.Loc }
func (e *Param) Span() diag.Span    { return e.Loc }
func (e *Property) Span() diag.Span { return e.Loc }
func (e *VarRef) Span() diag.Span   { return e.Loc }
func (e *Binary) Span() diag.Span   { return e.Loc }
func (e *Unary) Span() diag.Span    { return e.Loc }
func (e *IsNull) Span() diag.Span   { return e.Loc }
func (e *In) Span() diag.Span       { return e.Loc }
func (e *ListExpr) Span() diag.Span { return e.Loc }
func (e *Call) Span() diag.Span     { return e.Loc }
func (e *Exists) Span() diag.Span   { return e.Loc }

// Walk calls fn for e and every expression below it, depth first. Walking
// stops at Exists: its pattern is a separate scope. fn returning false
// prunes the subtree.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch x := e.(type) {
	case *Binary:
		Walk(x.Left, fn)
		Walk(x.Right, fn)
	case *Unary:
		Walk(x.Operand, fn)
	case *IsNull:
		Walk(x.Operand, fn)
	case *In:
		Walk(x.Operand, fn)
		Walk(x.List, fn)
	case *ListExpr:
		for _, item := range x.Items {
			Walk(item, fn)
		}
	case *Call:
		for _, arg := range x.Args {
			Walk(arg, fn)
		}
	}
}

// HasAggregate reports whether e contains an aggregate call.
func HasAggregate(e Expr) bool {
	found := false
	Walk(e, func(x Expr) bool {
		if c, ok := x.(*Call); ok && c.Func.Aggregate {
			found = true
		}
		return !found
	})
	return found
}

// HasNonAggregateRef reports whether e reads a variable outside of any
// aggregate call.
func HasNonAggregateRef(e Expr) bool {
	found := false
	Walk(e, func(x Expr) bool {
		switch v := x.(type) {
		case *Call:
			if v.Func.Aggregate {
				return false
			}
		case *Property, *VarRef, *Exists:
			found = true
		}
		return !found
	})
	return found
}

// TypeOf infers the static type of e, or "" when it cannot be known before
// execution (parameters, null, mixed branches).
func TypeOf(e Expr) schema.Type {
	switch x := e.(type) {
	case *Literal:
		return TypeOfValue(x.Value)
	case *Property:
		return x.Prop.Type
	case *VarRef:
		if x.Var.Kind == VarNode {
			return x.Var.Node.KeyType()
		}
		return schema.TypeInt
	case *Binary:
		switch {
		case x.Op.IsLogical(), x.Op.IsComparison(), x.Op.IsStringPredicate():
			return schema.TypeBool
		}
		l, r := TypeOf(x.Left), TypeOf(x.Right)
		switch {
		case x.Op == OpAdd && (l == schema.TypeString || r == schema.TypeString):
			return schema.TypeString
		case l == schema.TypeFloat || r == schema.TypeFloat:
			return schema.TypeFloat
		case l == schema.TypeInt && r == schema.TypeInt:
			return schema.TypeInt
		}
		return ""
	case *Unary:
		if x.Op == OpNot {
			return schema.TypeBool
		}
		return TypeOf(x.Operand)
	case *IsNull, *In, *Exists:
		return schema.TypeBool
	case *Call:
		return x.Func.ResultType(x.Args)
	}
	return ""
}
