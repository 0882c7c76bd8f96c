package binder

import (
	"github.com/P-wig/cyphersql/internal/cypher"
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
	"github.com/P-wig/cyphersql/internal/schema"
)

var binaryOps = map[cypher.BinaryOp]ir.Op{
	cypher.OpOr:         ir.OpOr,
	cypher.OpXor:        ir.OpXor,
	cypher.OpAnd:        ir.OpAnd,
	cypher.OpEq:         ir.OpEq,
	cypher.OpNeq:        ir.OpNeq,
	cypher.OpLt:         ir.OpLt,
	cypher.OpGt:         ir.OpGt,
	cypher.OpLte:        ir.OpLte,
	cypher.OpGte:        ir.OpGte,
	cypher.OpStartsWith: ir.OpStartsWith,
	cypher.OpEndsWith:   ir.OpEndsWith,
	cypher.OpContains:   ir.OpContains,
	cypher.OpAdd:        ir.OpAdd,
	cypher.OpSub:        ir.OpSub,
	cypher.OpMul:        ir.OpMul,
	cypher.OpDiv:        ir.OpDiv,
	cypher.OpMod:        ir.OpMod,
}

// bindExpr resolves e with the variables visible from clause.
func (b *binder) bindExpr(e cypher.Expr, clause int) (ir.Expr, error) {
	switch x := e.(type) {
	case *cypher.IntLiteral:
		return &ir.Literal{Value: ir.Int(x.Value), Loc: x.Loc}, nil
	case *cypher.FloatLiteral:
		return &ir.Literal{Value: ir.Float(x.Value), Loc: x.Loc}, nil
	case *cypher.StringLiteral:
		return &ir.Literal{Value: ir.String(x.Value), Loc: x.Loc}, nil
	case *cypher.BoolLiteral:
		return &ir.Literal{Value: ir.Bool(x.Value), Loc: x.Loc}, nil
	case *cypher.NullLiteral:
		return &ir.Literal{Value: ir.Null{}, Loc: x.Loc}, nil

	case *cypher.Parameter:
		b.addParam(x.Name)
		return &ir.Param{Name: x.Name, Loc: x.Loc}, nil

	case *cypher.Variable:
		bd, err := b.lookup(x.Name, clause, x.Loc)
		if err != nil {
			return nil, err
		}
		if bd.varLength {
			return nil, diag.Unsupported(diag.StageBind, "reference to a variable-length relationship", x.Loc)
		}
		return &ir.VarRef{Var: bd.v, Loc: x.Loc}, nil

	case *cypher.PropertyAccess:
		subject, ok := x.Subject.(*cypher.Variable)
		if !ok {
			return nil, diag.Unsupported(diag.StageBind, "property access on an expression", x.Loc)
		}
		bd, err := b.lookup(subject.Name, clause, subject.Loc)
		if err != nil {
			return nil, err
		}
		if bd.varLength {
			return nil, diag.Unsupported(diag.StageBind, "reference to a variable-length relationship", x.Loc)
		}
		p, err := property(bd.v, x.Key, x.Loc)
		if err != nil {
			return nil, err
		}
		return &ir.Property{Var: bd.v, Prop: p, Loc: x.Loc}, nil

	case *cypher.FunctionCall:
		return b.bindCall(x, clause)

	case *cypher.BinaryExpr:
		if x.Op == cypher.OpIn {
			return b.bindIn(x, clause)
		}
		left, err := b.bindExpr(x.Left, clause)
		if err != nil {
			return nil, err
		}
		right, err := b.bindExpr(x.Right, clause)
		if err != nil {
			return nil, err
		}
		out := &ir.Binary{Op: binaryOps[x.Op], Left: left, Right: right, Loc: x.Loc}
		if err := checkBinary(out); err != nil {
			return nil, err
		}
		return out, nil

	case *cypher.UnaryExpr:
		operand, err := b.bindExpr(x.Operand, clause)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case cypher.OpPos:
			if err := requireNumeric(operand); err != nil {
				return nil, err
			}
			return operand, nil
		case cypher.OpNeg:
			if err := requireNumeric(operand); err != nil {
				return nil, err
			}
			return &ir.Unary{Op: ir.OpNeg, Operand: operand, Loc: x.Loc}, nil
		default:
			if err := requireBool(operand); err != nil {
				return nil, err
			}
			return &ir.Unary{Op: ir.OpNot, Operand: operand, Loc: x.Loc}, nil
		}

	case *cypher.IsNullExpr:
		operand, err := b.bindExpr(x.Operand, clause)
		if err != nil {
			return nil, err
		}
		return &ir.IsNull{Operand: operand, Negated: x.Negated, Loc: x.Loc}, nil

	case *cypher.PatternExpr:
		return b.bindPattern(x.Pattern, clause, x.Loc)

	case *cypher.ListLiteral:
		return nil, diag.Unsupported(diag.StageBind, "list value outside IN", x.Loc)

	case *cypher.MapLiteral:
		return nil, diag.Unsupported(diag.StageBind, "map literal", x.Loc)
	}
	return nil, diag.Unsupported(diag.StageBind, "expression "+e.String(), e.Span())
}

func (b *binder) bindIn(x *cypher.BinaryExpr, clause int) (ir.Expr, error) {
	operand, err := b.bindExpr(x.Left, clause)
	if err != nil {
		return nil, err
	}
	var list ir.Expr
	switch r := x.Right.(type) {
	case *cypher.ListLiteral:
		items := make([]ir.Expr, len(r.Items))
		for i, item := range r.Items {
			if items[i], err = b.bindExpr(item, clause); err != nil {
				return nil, err
			}
			if err := checkComparable(operand, items[i], item.Span()); err != nil {
				return nil, err
			}
		}
		list = &ir.ListExpr{Items: items, Loc: r.Loc}
	case *cypher.Parameter:
		b.addParam(r.Name)
		list = &ir.Param{Name: r.Name, Loc: r.Loc}
	default:
		return nil, diag.Unsupported(diag.StageBind, "IN over a non-list expression", x.Right.Span())
	}
	return &ir.In{Operand: operand, List: list, Loc: x.Loc}, nil
}

func (b *binder) bindCall(x *cypher.FunctionCall, clause int) (ir.Expr, error) {
	f, ok := ir.LookupFunction(x.Name)
	if !ok {
		return nil, diag.Unsupported(diag.StageBind, "function "+x.Name, x.Loc)
	}

	if x.Star {
		if f.Name != "count" {
			return nil, diag.Semantic(diag.KindInvalidArgument, x.Name, x.Loc, "only count accepts *")
		}
		return &ir.Call{Func: f, Star: true, Loc: x.Loc}, nil
	}
	if x.Distinct && !f.Aggregate {
		return nil, diag.Semantic(diag.KindInvalidArgument, x.Name, x.Loc,
			"DISTINCT is only allowed in aggregate functions")
	}
	if len(x.Args) < f.MinArgs || (f.MaxArgs >= 0 && len(x.Args) > f.MaxArgs) {
		return nil, diag.Semantic(diag.KindInvalidArgument, x.Name, x.Loc,
			"%s takes %s, got %d", f.Name, arity(f), len(x.Args))
	}

	if f.Name == "exists" {
		switch arg := x.Args[0].(type) {
		case *cypher.PatternExpr:
			return b.bindPattern(arg.Pattern, clause, x.Loc)
		case *cypher.PropertyAccess:
			operand, err := b.bindExpr(arg, clause)
			if err != nil {
				return nil, err
			}
			return &ir.IsNull{Operand: operand, Negated: true, Loc: x.Loc}, nil
		default:
			return nil, diag.Semantic(diag.KindInvalidArgument, x.Name, x.Loc,
				"exists takes a pattern or a property")
		}
	}

	args := make([]ir.Expr, len(x.Args))
	for i, arg := range x.Args {
		var err error
		if args[i], err = b.bindExpr(arg, clause); err != nil {
			return nil, err
		}
	}
	call := &ir.Call{Func: f, Args: args, Distinct: x.Distinct, Loc: x.Loc}
	if err := checkCall(call); err != nil {
		return nil, err
	}
	return call, nil
}

func arity(f *ir.Function) string {
	switch {
	case f.MaxArgs < 0:
		return "at least 1 argument"
	case f.MaxArgs == 1:
		return "1 argument"
	default:
		return "more arguments"
	}
}

// bindPattern binds a pattern predicate. Anonymous elements are resolved
// locally; named ones must already be in scope.
func (b *binder) bindPattern(p *cypher.PathPattern, clause int, span diag.Span) (ir.Expr, error) {
	path, maps, err := b.declarePath(p, clause, true)
	if err != nil {
		return nil, err
	}
	if len(path.Steps) == 0 {
		return nil, diag.Unsupported(diag.StageBind, "pattern predicate without a relationship", span)
	}
	if err := b.resolve(path.Steps); err != nil {
		return nil, err
	}
	for _, s := range path.Steps {
		if s.VarLength {
			return nil, diag.Unsupported(diag.StageBind, "variable-length pattern predicate", s.Span)
		}
	}
	filters, err := b.bindMaps(maps, clause)
	if err != nil {
		return nil, err
	}
	return &ir.Exists{Path: path, Filters: filters, Loc: span}, nil
}

// Type checks run only when both static types are known; parameters and
// nulls are checked by the database.

func numeric(t schema.Type) bool {
	return t == schema.TypeInt || t == schema.TypeFloat
}

func mismatch(e ir.Expr, format string, args ...any) error {
	return diag.Semantic(diag.KindTypeMismatch, "", e.Span(), format, args...)
}

func requireBool(e ir.Expr) error {
	if t := ir.TypeOf(e); t != "" && t != schema.TypeBool {
		return mismatch(e, "expected a boolean, found %s", t)
	}
	return nil
}

func requireNumeric(e ir.Expr) error {
	if t := ir.TypeOf(e); t != "" && !numeric(t) {
		return mismatch(e, "expected a number, found %s", t)
	}
	return nil
}

func checkComparable(left, right ir.Expr, span diag.Span) error {
	lt, rt := ir.TypeOf(left), ir.TypeOf(right)
	if lt == "" || rt == "" || lt == rt || (numeric(lt) && numeric(rt)) {
		return nil
	}
	return diag.Semantic(diag.KindTypeMismatch, "", span, "cannot compare %s with %s", lt, rt)
}

func checkBinary(e *ir.Binary) error {
	switch {
	case e.Op.IsLogical():
		if err := requireBool(e.Left); err != nil {
			return err
		}
		return requireBool(e.Right)
	case e.Op.IsComparison():
		return checkComparable(e.Left, e.Right, e.Loc)
	case e.Op.IsStringPredicate():
		for _, side := range []ir.Expr{e.Left, e.Right} {
			if t := ir.TypeOf(side); t != "" && t != schema.TypeString {
				return mismatch(side, "%s expects strings, found %s", e.Op, t)
			}
		}
		return nil
	case e.Op == ir.OpAdd:
		lt, rt := ir.TypeOf(e.Left), ir.TypeOf(e.Right)
		if lt == "" || rt == "" || (lt == schema.TypeString && rt == schema.TypeString) || (numeric(lt) && numeric(rt)) {
			return nil
		}
		return mismatch(e, "cannot add %s and %s", lt, rt)
	default:
		if err := requireNumeric(e.Left); err != nil {
			return err
		}
		return requireNumeric(e.Right)
	}
}

func checkCall(c *ir.Call) error {
	switch c.Func.Name {
	case "sum", "avg", "abs":
		return requireNumeric(c.Args[0])
	case "toUpper", "toLower", "trim":
		if t := ir.TypeOf(c.Args[0]); t != "" && t != schema.TypeString {
			return mismatch(c.Args[0], "%s expects a string, found %s", c.Func.Name, t)
		}
	case "id":
		if _, ok := c.Args[0].(*ir.VarRef); !ok {
			return diag.Semantic(diag.KindInvalidArgument, c.Func.Name, c.Loc, "id takes a variable")
		}
	case "type":
		if ref, ok := c.Args[0].(*ir.VarRef); !ok || ref.Var.Kind != ir.VarRel {
			return diag.Semantic(diag.KindInvalidArgument, c.Func.Name, c.Loc, "type takes a relationship variable")
		}
	case "size", "length":
		if t := ir.TypeOf(c.Args[0]); t != "" && t != schema.TypeString {
			return mismatch(c.Args[0], "%s expects a string, found %s", c.Func.Name, t)
		}
	}
	return nil
}
