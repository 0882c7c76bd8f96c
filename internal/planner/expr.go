package planner

import (
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/schema"
)

var sqlOps = map[ir.Op]string{
	ir.OpOr:  "OR",
	ir.OpAnd: "AND",
	ir.OpXor: "<>",
	ir.OpEq:  "=",
	ir.OpNeq: "<>",
	ir.OpLt:  "<",
	ir.OpGt:  ">",
	ir.OpLte: "<=",
	ir.OpGte: ">=",
	ir.OpAdd: "+",
	ir.OpSub: "-",
	ir.OpMul: "*",
	ir.OpDiv: "/",
	ir.OpMod: "%",
}

var stringMatches = map[ir.Op]queryir.MatchKind{
	ir.OpStartsWith: queryir.MatchPrefix,
	ir.OpEndsWith:   queryir.MatchSuffix,
	ir.OpContains:   queryir.MatchContains,
}

var sqlFuncs = map[string]string{
	"count":    queryir.FuncCount,
	"sum":      queryir.FuncSum,
	"avg":      queryir.FuncAvg,
	"min":      queryir.FuncMin,
	"max":      queryir.FuncMax,
	"toUpper":  queryir.FuncUpper,
	"toLower":  queryir.FuncLower,
	"trim":     queryir.FuncTrim,
	"size":     queryir.FuncLength,
	"length":   queryir.FuncLength,
	"abs":      queryir.FuncAbs,
	"coalesce": queryir.FuncCoalesce,
}

// expr translates a bound expression against the builder's bindings.
func (b *builder) expr(e ir.Expr) (queryir.Expr, error) {
	switch x := e.(type) {
	case *ir.Literal:
		if _, ok := x.Value.(ir.Null); ok {
			return &queryir.Null{}, nil
		}
		return &queryir.Literal{Value: x.Value}, nil

	case *ir.Param:
		return &queryir.Param{Name: x.Name}, nil

	case *ir.Property:
		return b.property(x.Var, x.Prop, x.Loc)

	case *ir.VarRef:
		return b.key(x.Var, x.Loc)

	case *ir.Binary:
		left, err := b.expr(x.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.expr(x.Right)
		if err != nil {
			return nil, err
		}
		if kind, ok := stringMatches[x.Op]; ok {
			return &queryir.StringMatch{Match: kind, Subject: left, Pattern: right}, nil
		}
		op := sqlOps[x.Op]
		if x.Op == ir.OpAdd && ir.TypeOf(x) == schema.TypeString {
			op = "||"
		}
		return &queryir.Binary{Op: op, Left: left, Right: right}, nil

	case *ir.Unary:
		operand, err := b.expr(x.Operand)
		if err != nil {
			return nil, err
		}
		op := "NOT"
		if x.Op == ir.OpNeg {
			op = "-"
		}
		return &queryir.Unary{Op: op, Operand: operand}, nil

	case *ir.IsNull:
		operand, err := b.expr(x.Operand)
		if err != nil {
			return nil, err
		}
		return &queryir.IsNull{Operand: operand, Negated: x.Negated}, nil

	case *ir.In:
		operand, err := b.expr(x.Operand)
		if err != nil {
			return nil, err
		}
		switch list := x.List.(type) {
		case *ir.Param:
			return &queryir.In{Operand: operand, Param: &queryir.Param{Name: list.Name, List: true}}, nil
		case *ir.ListExpr:
			in := &queryir.In{Operand: operand}
			for _, item := range list.Items {
				v, err := b.expr(item)
				if err != nil {
					return nil, err
				}
				in.List = append(in.List, v)
			}
			return in, nil
		}
		return nil, diag.Unsupported(diag.StagePlan, "IN over a non-list expression", x.Loc)

	case *ir.Call:
		return b.call(x)

	case *ir.Exists:
		return b.exists(x)
	}
	return nil, diag.Unsupported(diag.StagePlan, "expression", e.Span())
}

func (b *builder) call(x *ir.Call) (queryir.Expr, error) {
	switch x.Func.Name {
	case "id":
		ref := x.Args[0].(*ir.VarRef)
		return b.key(ref.Var, x.Loc)
	case "type":
		ref := x.Args[0].(*ir.VarRef)
		return b.relType(ref.Var, x.Loc)
	}

	name, ok := sqlFuncs[x.Func.Name]
	if !ok {
		return nil, diag.Unsupported(diag.StagePlan, "function "+x.Func.Name, x.Loc)
	}
	f := &queryir.Func{Name: name, Distinct: x.Distinct, Star: x.Star}
	for _, arg := range x.Args {
		if x.Func.Aggregate && ir.HasAggregate(arg) {
			return nil, diag.Plan(diag.KindMisplacedAggregate, arg.Span(), "aggregate functions cannot be nested")
		}
		v, err := b.expr(arg)
		if err != nil {
			return nil, err
		}
		f.Args = append(f.Args, v)
	}
	return f, nil
}

// property resolves a property to its column: on the node table, on a
// side table, on the edge table, or on an edge union by name.
func (b *builder) property(v *ir.Var, p *schema.Property, span diag.Span) (queryir.Expr, error) {
	if v.Kind == ir.VarNode {
		if p.Side != nil {
			alias, ok := b.sideAlias(v, p.Side.Table)
			if !ok {
				return nil, diag.Plan(diag.KindInvalidPlan, span, "side table %s of %s is not joined", p.Side.Table, v.Name)
			}
			return queryir.Col(alias, p.Column), nil
		}
		alias, ok := b.nodeAlias(v)
		if !ok {
			return nil, diag.Plan(diag.KindInvalidPlan, span, "variable %s is not bound", v.Name)
		}
		return queryir.Col(alias, p.Column), nil
	}

	ref, ok := b.edge(v)
	if !ok {
		return nil, diag.Plan(diag.KindInvalidPlan, span, "relationship %s is not bound", v.Name)
	}
	if ref.src.cte {
		return queryir.Col(ref.alias, p.Name), nil
	}
	return queryir.Col(ref.alias, p.Column), nil
}

// key resolves a variable to its key column.
func (b *builder) key(v *ir.Var, span diag.Span) (queryir.Expr, error) {
	if v.Kind == ir.VarNode {
		alias, ok := b.nodeAlias(v)
		if !ok {
			return nil, diag.Plan(diag.KindInvalidPlan, span, "variable %s is not bound", v.Name)
		}
		return nodeKey(alias, v), nil
	}
	ref, ok := b.edge(v)
	if !ok {
		return nil, diag.Plan(diag.KindInvalidPlan, span, "relationship %s is not bound", v.Name)
	}
	if ref.src.key == "" {
		return nil, diag.Plan(diag.KindMissingKey, span,
			"relationship %s has no key column; declare one in the schema to use its identity", v.Name)
	}
	return queryir.Col(ref.alias, ref.src.key), nil
}

// relType resolves type(r): a constant for one type, the discriminator
// mapped back to type names for a shared table, or the union's type
// column.
func (b *builder) relType(v *ir.Var, span diag.Span) (queryir.Expr, error) {
	ref, ok := b.edge(v)
	if !ok {
		return nil, diag.Plan(diag.KindInvalidPlan, span, "relationship %s is not bound", v.Name)
	}
	switch {
	case ref.src.cte:
		return queryir.Col(ref.alias, colType), nil
	case len(ref.src.rels) == 1:
		return &queryir.Literal{Value: ir.String(ref.src.rels[0].Type)}, nil
	}
	c := &queryir.Case{Operand: queryir.Col(ref.alias, ref.src.rels[0].Discriminator.Column)}
	for _, rel := range ref.src.rels {
		c.Whens = append(c.Whens, queryir.When{
			Value:  &queryir.Literal{Value: ir.String(rel.Discriminator.Value)},
			Result: &queryir.Literal{Value: ir.String(rel.Type)},
		})
	}
	return c, nil
}

// exists plans a pattern predicate as a correlated subquery.
func (b *builder) exists(x *ir.Exists) (queryir.Expr, error) {
	sub := b.p.newBuilder(b)
	if err := sub.joinPattern(x.Path.Nodes, x.Path.Steps, false); err != nil {
		return nil, err
	}
	for _, f := range x.Filters {
		e, err := sub.expr(f)
		if err != nil {
			return nil, err
		}
		sub.filters = append(sub.filters, e)
	}
	return &queryir.Exists{Plan: sub.finish()}, nil
}

// columnType maps a static type onto a result column type.
func columnType(t schema.Type) queryir.Type {
	switch t {
	case schema.TypeString:
		return queryir.TypeString
	case schema.TypeInt:
		return queryir.TypeInt
	case schema.TypeFloat:
		return queryir.TypeFloat
	case schema.TypeBool:
		return queryir.TypeBool
	}
	return queryir.TypeAny
}
