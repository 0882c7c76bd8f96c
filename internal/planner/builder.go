package planner

import (
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/schema"
)

// builder assembles one select plan. Child builders plan correlated
// subqueries and see their parents' bindings.
type builder struct {
	p      *planner
	parent *builder
	plan   *queryir.Plan
	// ctes collects the common table expressions of the statement; child
	// builders share their root's list.
	ctes *[]*queryir.CTE

	nodes map[*ir.Var]string
	edges map[*ir.Var]*edgeRef
	sides map[sideKey]string
	// edgeOrder lists the edges in binding order.
	edgeOrder []*edgeRef

	filters []queryir.Expr
	// group collects the joins of an OPTIONAL MATCH while it is planned.
	group []*queryir.Join
}

type sideKey struct {
	v     *ir.Var
	table string
}

func (p *planner) newBuilder(parent *builder) *builder {
	b := &builder{
		p:      p,
		parent: parent,
		plan:   &queryir.Plan{Kind: queryir.KindSelect},
		nodes:  make(map[*ir.Var]string),
		edges:  make(map[*ir.Var]*edgeRef),
		sides:  make(map[sideKey]string),
	}
	if parent != nil {
		b.ctes = parent.ctes
	} else {
		b.ctes = new([]*queryir.CTE)
	}
	return b
}

// finish folds the collected filters into the plan. A root builder also
// attaches the statement's common table expressions.
func (b *builder) finish() *queryir.Plan {
	b.plan.Filter = queryir.And(b.filters...)
	if b.parent == nil {
		b.plan.CTEs = *b.ctes
	}
	return b.plan
}

// join adds a binding to the row source. The first binding of a plan
// becomes its FROM and its condition a filter.
func (b *builder) join(kind queryir.JoinKind, binding *queryir.TableBinding, on queryir.Expr) *queryir.Join {
	if kind == queryir.JoinCross && on != nil {
		b.filters = append(b.filters, on)
		on = nil
	}
	j := &queryir.Join{Kind: kind, Binding: binding, On: on}
	switch {
	case b.group != nil:
		b.group = append(b.group, j)
	case b.plan.From == nil:
		b.plan.From = binding
		if on != nil {
			b.filters = append(b.filters, on)
		}
	default:
		b.plan.Joins = append(b.plan.Joins, j)
	}
	return j
}

// nodeAlias finds the binding of a node variable in this builder or an
// enclosing one.
func (b *builder) nodeAlias(v *ir.Var) (string, bool) {
	for s := b; s != nil; s = s.parent {
		if a, ok := s.nodes[v]; ok {
			return a, true
		}
	}
	return "", false
}

func (b *builder) edge(v *ir.Var) (*edgeRef, bool) {
	for s := b; s != nil; s = s.parent {
		if e, ok := s.edges[v]; ok {
			return e, true
		}
	}
	return nil, false
}

func (b *builder) sideAlias(v *ir.Var, table string) (string, bool) {
	for s := b; s != nil; s = s.parent {
		if a, ok := s.sides[sideKey{v, table}]; ok {
			return a, true
		}
	}
	return "", false
}

func (b *builder) bound(v *ir.Var) bool {
	_, ok := b.nodeAlias(v)
	return ok
}

// bindNode binds the label table of v, filtered by its discriminator, and
// left-joins the side tables the query reads through v. A side table holds
// at most one row per owner, so the joins never multiply rows. link builds
// the join condition from the new alias.
func (b *builder) bindNode(kind queryir.JoinKind, v *ir.Var, link func(alias string) queryir.Expr) string {
	alias := b.p.alias("n")
	binding := &queryir.TableBinding{Alias: alias, Table: v.Node.Table, Var: varName(v)}
	var on queryir.Expr
	if link != nil {
		on = link(alias)
	}
	b.join(kind, binding, queryir.And(on, discriminator(v.Node.Discriminator, alias)))
	b.nodes[v] = alias

	for _, side := range b.p.sides[v] {
		s := b.p.alias("s")
		b.join(queryir.JoinLeft, &queryir.TableBinding{Alias: s, Table: side.Table, Var: varName(v)},
			queryir.Eq(queryir.Col(s, side.Key), queryir.Col(alias, v.Node.Key)))
		b.sides[sideKey{v, side.Table}] = s
	}
	return alias
}

func varName(v *ir.Var) string {
	if v.Synthetic {
		return ""
	}
	return v.Name
}

func discriminator(d *schema.Discriminator, alias string) queryir.Expr {
	if d == nil {
		return nil
	}
	return queryir.Eq(queryir.Col(alias, d.Column), &queryir.Literal{Value: ir.String(d.Value)})
}

func nodeKey(alias string, v *ir.Var) queryir.Expr {
	return queryir.Col(alias, v.Node.Key)
}

// matches plans the MATCH clauses of a query: the mandatory ones as one
// join graph, then each OPTIONAL MATCH as a left-joined group.
func (b *builder) matches(reads []*ir.Match, allowCross bool) error {
	var (
		nodes    []*ir.Var
		steps    []*ir.Step
		optional []*ir.Match
	)
	for _, m := range reads {
		if err := checkNoAggregate(m); err != nil {
			return err
		}
		if m.Optional {
			optional = append(optional, m)
			continue
		}
		if len(optional) > 0 {
			return diag.Unsupported(diag.StagePlan, "MATCH after OPTIONAL MATCH", m.Span)
		}
		for _, path := range m.Paths {
			nodes = append(nodes, path.Nodes...)
			steps = append(steps, path.Steps...)
		}
	}
	if len(nodes) == 0 && len(optional) > 0 {
		return diag.Unsupported(diag.StagePlan, "OPTIONAL MATCH without a preceding MATCH", optional[0].Span)
	}

	if len(nodes) > 0 {
		if err := b.joinPattern(nodes, steps, allowCross); err != nil {
			return err
		}
	}
	for _, m := range reads {
		if m.Optional {
			continue
		}
		if err := b.filter(m); err != nil {
			return err
		}
	}

	for _, m := range optional {
		if err := b.optional(m); err != nil {
			return err
		}
	}
	return nil
}

func checkNoAggregate(m *ir.Match) error {
	for _, e := range append(append([]ir.Expr(nil), m.Filters...), m.Where) {
		if e != nil && ir.HasAggregate(e) {
			return diag.Plan(diag.KindMisplacedAggregate, e.Span(), "aggregate functions are only allowed in RETURN")
		}
	}
	return nil
}

// filter adds the property-map filters and the WHERE of m to the plan.
func (b *builder) filter(m *ir.Match) error {
	for _, f := range m.Filters {
		e, err := b.expr(f)
		if err != nil {
			return err
		}
		b.filters = append(b.filters, e)
	}
	if m.Where != nil {
		e, err := b.expr(m.Where)
		if err != nil {
			return err
		}
		b.filters = append(b.filters, e)
	}
	return nil
}

// optional plans an OPTIONAL MATCH as one parenthesized group left-joined
// on its link to the bound variables and its WHERE.
func (b *builder) optional(m *ir.Match) error {
	var nodes []*ir.Var
	var steps []*ir.Step
	for _, path := range m.Paths {
		nodes = append(nodes, path.Nodes...)
		steps = append(steps, path.Steps...)
	}

	b.group = []*queryir.Join{}
	if err := b.joinPattern(nodes, steps, false); err != nil {
		return err
	}
	group := b.group
	b.group = nil
	if len(group) == 0 {
		return diag.Unsupported(diag.StagePlan, "OPTIONAL MATCH that binds no new variable", m.Span)
	}

	conds := []queryir.Expr{group[0].On}
	for _, f := range m.Filters {
		e, err := b.expr(f)
		if err != nil {
			return err
		}
		conds = append(conds, e)
	}
	if m.Where != nil {
		e, err := b.expr(m.Where)
		if err != nil {
			return err
		}
		conds = append(conds, e)
	}

	j := &queryir.Join{
		Kind:         queryir.JoinLeft,
		Binding:      group[0].Binding,
		On:           queryir.And(conds...),
		Relationship: group[0].Relationship,
		Direction:    group[0].Direction,
		Hops:         group[0].Hops,
	}
	if len(group) > 1 {
		j.Nested = group[1:]
	}
	b.plan.Joins = append(b.plan.Joins, j)
	return nil
}

// joinPattern binds nodes and steps breadth first, starting from the nodes
// already bound or else from the first node. Nodes no step reaches are
// cross joined when allowCross is set and rejected otherwise.
func (b *builder) joinPattern(nodes []*ir.Var, steps []*ir.Step, allowCross bool) error {
	var queue []*ir.Var
	queued := make(map[*ir.Var]bool)
	push := func(v *ir.Var) {
		if !queued[v] {
			queued[v] = true
			queue = append(queue, v)
		}
	}
	for _, v := range nodes {
		if b.bound(v) {
			push(v)
		}
	}
	if len(queue) == 0 {
		if b.group != nil {
			return diag.Plan(diag.KindDisconnectedPattern, nodes[0].Span,
				"OPTIONAL MATCH pattern does not share a variable with the preceding MATCH")
		}
		b.bindNode(queryir.JoinInner, nodes[0], nil)
		push(nodes[0])
	}

	done := make(map[*ir.Step]bool)
	for {
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			for _, s := range steps {
				if done[s] || (s.Left != v && s.Right != v) {
					continue
				}
				done[s] = true
				other := s.Right
				if s.Right == v {
					other = s.Left
				}
				if err := b.joinStep(s, v); err != nil {
					return err
				}
				push(other)
			}
		}

		var next *ir.Var
		for _, v := range nodes {
			if !b.bound(v) {
				next = v
				break
			}
		}
		if next == nil {
			return nil
		}
		if !allowCross {
			return diag.Plan(diag.KindDisconnectedPattern, next.Span,
				"%s is not connected to the rest of the pattern", describe(next))
		}
		b.bindNode(queryir.JoinCross, next, nil)
		push(next)
	}
}

func describe(v *ir.Var) string {
	if v.Synthetic {
		return "anonymous node (:" + v.Label + ")"
	}
	return "node " + v.Name
}
