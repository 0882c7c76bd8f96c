package planner

import (
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/schema"
)

// project plans RETURN: the projection list, grouping, DISTINCT, ordering
// and paging.
func (b *builder) project(r *ir.Return) error {
	plan := b.plan
	plan.Distinct = r.Distinct

	aggregating := false
	for _, item := range r.Items {
		if ir.HasAggregate(item.Expr) {
			aggregating = true
			if ir.HasNonAggregateRef(item.Expr) {
				return diag.Plan(diag.KindMixedAggregate, item.Span,
					"%s mixes aggregate and non-aggregate terms", item.Name)
			}
		}
	}

	// first[i] is the ordinal of the first column of item i.
	first := make([]int, len(r.Items))
	for i, item := range r.Items {
		first[i] = len(plan.Projections) + 1
		cols, err := b.columns(item)
		if err != nil {
			return err
		}
		plan.Projections = append(plan.Projections, cols...)
		if aggregating && !ir.HasAggregate(item.Expr) && ir.HasNonAggregateRef(item.Expr) {
			for j := range cols {
				plan.GroupBy = append(plan.GroupBy, first[i]+j)
			}
		}
	}

	for _, s := range r.OrderBy {
		if s.Item >= 0 {
			plan.OrderBy = append(plan.OrderBy, &queryir.Order{Ordinal: first[s.Item], Descending: s.Descending})
			continue
		}
		if r.Distinct || aggregating {
			return diag.Unsupported(diag.StagePlan,
				"ORDER BY an expression outside the RETURN list of a DISTINCT or aggregating RETURN", s.Expr.Span())
		}
		if ir.HasAggregate(s.Expr) {
			return diag.Plan(diag.KindMisplacedAggregate, s.Expr.Span(), "ORDER BY an aggregate requires it in RETURN")
		}
		e, err := b.expr(s.Expr)
		if err != nil {
			return err
		}
		plan.OrderBy = append(plan.OrderBy, &queryir.Order{Expr: e, Descending: s.Descending})
	}

	var err error
	if plan.Skip, err = b.count(r.Skip); err != nil {
		return err
	}
	if plan.Limit, err = b.count(r.Limit); err != nil {
		return err
	}
	return nil
}

func (b *builder) count(e ir.Expr) (queryir.Expr, error) {
	if e == nil {
		return nil, nil
	}
	return b.expr(e)
}

// columns expands one return item. A node becomes its key column followed
// by its other properties, a relationship its key, endpoints and
// properties; any other expression is one column.
func (b *builder) columns(item *ir.ReturnItem) ([]*queryir.Projection, error) {
	if ref, ok := item.Expr.(*ir.VarRef); ok {
		if ref.Var.Kind == ir.VarNode {
			return b.nodeColumns(item.Name, ref.Var, ref.Loc)
		}
		return b.relColumns(item.Name, ref.Var, ref.Loc)
	}

	e, err := b.expr(item.Expr)
	if err != nil {
		return nil, err
	}
	return []*queryir.Projection{{
		Name:      item.Name,
		Expr:      e,
		Type:      columnType(ir.TypeOf(item.Expr)),
		Aggregate: ir.HasAggregate(item.Expr),
	}}, nil
}

func (b *builder) nodeColumns(prefix string, v *ir.Var, span diag.Span) ([]*queryir.Projection, error) {
	alias, ok := b.nodeAlias(v)
	if !ok {
		return nil, diag.Plan(diag.KindInvalidPlan, span, "variable %s is not bound", v.Name)
	}
	node := v.Node

	keyName, keyProp := node.Key, (*schema.Property)(nil)
	for _, p := range node.Properties {
		if p.Side == nil && p.Column == node.Key {
			keyName, keyProp = p.Name, p
			break
		}
	}
	out := []*queryir.Projection{{
		Name: prefix + "." + keyName,
		Expr: nodeKey(alias, v),
		Type: columnType(node.KeyType()),
	}}
	for _, p := range node.Properties {
		if p == keyProp {
			continue
		}
		e, err := b.property(v, p, span)
		if err != nil {
			return nil, err
		}
		out = append(out, &queryir.Projection{Name: prefix + "." + p.Name, Expr: e, Type: columnType(p.Type)})
	}
	return out, nil
}

func (b *builder) relColumns(prefix string, v *ir.Var, span diag.Span) ([]*queryir.Projection, error) {
	ref, ok := b.edge(v)
	if !ok {
		return nil, diag.Plan(diag.KindInvalidPlan, span, "relationship %s is not bound", v.Name)
	}
	if ref.src.cte {
		return nil, diag.Unsupported(diag.StagePlan, "returning a relationship stored in several tables", span)
	}
	rel := ref.src.rels[0]

	var out []*queryir.Projection
	if rel.Key != "" {
		out = append(out, &queryir.Projection{Name: prefix + "." + rel.Key, Expr: queryir.Col(ref.alias, rel.Key), Type: queryir.TypeInt})
	}
	for _, ep := range []schema.Endpoint{rel.Source(), rel.Target()} {
		out = append(out, &queryir.Projection{Name: prefix + "." + ep.Column, Expr: queryir.Col(ref.alias, ep.Column), Type: columnType(ref.endpointType(ep))})
	}
	for _, p := range rel.Properties {
		shared := true
		for _, other := range ref.src.rels[1:] {
			if _, ok := other.Property(p.Name); !ok {
				shared = false
			}
		}
		if shared {
			out = append(out, &queryir.Projection{Name: prefix + "." + p.Name, Expr: queryir.Col(ref.alias, p.Column), Type: columnType(p.Type)})
		}
	}
	return out, nil
}
