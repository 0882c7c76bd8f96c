package planner

import (
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/schema"
)

// planWrite plans the updating clause of q. Row sources and key filters
// are select plans built like a read; their CTEs move to the statement.
func (p *planner) planWrite(q *ir.Query) (*queryir.Plan, error) {
	for _, pv := range writeValues(q.Write) {
		if ir.HasAggregate(pv.Value) {
			return nil, diag.Plan(diag.KindMisplacedAggregate, pv.Value.Span(), "aggregate functions are only allowed in RETURN")
		}
	}

	switch w := q.Write.(type) {
	case *ir.CreateNode:
		return p.createNode(w)
	case *ir.CreateRel:
		return p.createRel(q.Reads, w)
	case *ir.MergeNode:
		return p.mergeNode(w)
	case *ir.MergeRel:
		return p.mergeRel(q.Reads, w)
	case *ir.Update:
		return p.update(q.Reads, w)
	case *ir.Delete:
		return p.delete(q.Reads, w)
	}
	return nil, diag.Unsupported(diag.StagePlan, "updating clause", q.Write.WriteSpan())
}

// row collects the columns and values of one inserted row. Assigning a
// column twice keeps the last value.
type row struct {
	columns []string
	values  []queryir.Expr
}

func (r *row) set(column string, value queryir.Expr) {
	for i, c := range r.columns {
		if c == column {
			r.values[i] = value
			return
		}
	}
	r.columns = append(r.columns, column)
	r.values = append(r.values, value)
}

func (r *row) projections() []*queryir.Projection {
	out := make([]*queryir.Projection, len(r.columns))
	for i, c := range r.columns {
		out[i] = &queryir.Projection{Name: c, Expr: r.values[i]}
	}
	return out
}

func (b *builder) setValues(r *row, values []ir.PropertyValue) error {
	for _, pv := range values {
		e, err := b.expr(pv.Value)
		if err != nil {
			return err
		}
		r.set(pv.Prop.Column, e)
	}
	return nil
}

func discriminate(r *row, d *schema.Discriminator) {
	if d != nil {
		r.set(d.Column, &queryir.Literal{Value: ir.String(d.Value)})
	}
}

// statement wraps a write around a root builder's select, moving the
// select's CTEs to the statement.
func statement(kind queryir.Kind, sel *queryir.Plan) *queryir.Plan {
	plan := &queryir.Plan{Kind: kind, CTEs: sel.CTEs}
	sel.CTEs = nil
	return plan
}

func (p *planner) createNode(w *ir.CreateNode) (*queryir.Plan, error) {
	b := p.newBuilder(nil)
	r := &row{}
	discriminate(r, w.Var.Node.Discriminator)
	if err := b.setValues(r, w.Values); err != nil {
		return nil, err
	}
	return &queryir.Plan{
		Kind:   queryir.KindInsert,
		Insert: &queryir.Insert{Table: w.Var.Node.Table, Columns: r.columns, Values: r.values},
	}, nil
}

// relRow starts the row of a new relationship between two bound nodes.
func (b *builder) relRow(rel *schema.Relationship, from, to *ir.Var, span diag.Span) (*row, error) {
	src, err := b.key(from, span)
	if err != nil {
		return nil, err
	}
	dst, err := b.key(to, span)
	if err != nil {
		return nil, err
	}
	r := &row{}
	r.set(rel.Source().Column, src)
	r.set(rel.Target().Column, dst)
	discriminate(r, rel.Discriminator)
	return r, nil
}

func (p *planner) createRel(reads []*ir.Match, w *ir.CreateRel) (*queryir.Plan, error) {
	b := p.newBuilder(nil)
	if err := b.matches(reads, true); err != nil {
		return nil, err
	}
	rel := w.Var.Rels[0]
	r, err := b.relRow(rel, w.From, w.To, w.Span)
	if err != nil {
		return nil, err
	}
	if err := b.setValues(r, w.Values); err != nil {
		return nil, err
	}

	b.plan.Projections = r.projections()
	sel := b.finish()
	plan := statement(queryir.KindInsert, sel)
	plan.Insert = &queryir.Insert{Table: rel.Table, Columns: r.columns, Select: sel}
	return plan, nil
}

// mergeNode inserts the node from a select without a FROM, guarded by a
// NOT EXISTS over the rows matching the merge pattern.
func (p *planner) mergeNode(w *ir.MergeNode) (*queryir.Plan, error) {
	b := p.newBuilder(nil)
	node := w.Var.Node

	probe := p.newBuilder(b)
	alias := probe.bindNode(queryir.JoinInner, w.Var, nil)
	for _, pv := range w.Match {
		cond, err := probe.equals(queryir.Col(alias, pv.Prop.Column), pv.Value)
		if err != nil {
			return nil, err
		}
		probe.filters = append(probe.filters, cond)
	}

	r := &row{}
	discriminate(r, node.Discriminator)
	if err := b.setValues(r, w.Match); err != nil {
		return nil, err
	}
	if err := b.setValues(r, w.OnCreate); err != nil {
		return nil, err
	}

	if len(r.columns) == 0 {
		return nil, diag.Unsupported(diag.StagePlan, "MERGE of a node without properties", w.Span)
	}

	b.plan.Projections = r.projections()
	b.filters = append(b.filters, &queryir.Exists{Plan: probe.finish(), Negated: true})
	sel := b.finish()
	return &queryir.Plan{
		Kind:   queryir.KindInsert,
		Insert: &queryir.Insert{Table: node.Table, Columns: r.columns, Select: sel},
	}, nil
}

// mergeRel inserts one relationship per matched pair of endpoints that
// no relationship of the type with the merge properties connects yet.
func (p *planner) mergeRel(reads []*ir.Match, w *ir.MergeRel) (*queryir.Plan, error) {
	for _, pv := range w.OnCreate {
		if readsVar(pv.Value, w.Var) {
			return nil, diag.Unsupported(diag.StagePlan, "ON CREATE SET reading the merged relationship", pv.Value.Span())
		}
	}

	b := p.newBuilder(nil)
	if err := b.matches(reads, true); err != nil {
		return nil, err
	}
	rel := w.Var.Rels[0]

	probe := p.newBuilder(b)
	e := p.alias("e")
	probe.join(queryir.JoinInner, &queryir.TableBinding{Alias: e, Table: rel.Table, Var: varName(w.Var)}, nil)
	src, err := b.key(w.From, w.Span)
	if err != nil {
		return nil, err
	}
	dst, err := b.key(w.To, w.Span)
	if err != nil {
		return nil, err
	}
	probe.filters = append(probe.filters,
		queryir.Eq(queryir.Col(e, rel.Source().Column), src),
		queryir.Eq(queryir.Col(e, rel.Target().Column), dst))
	if d := discriminator(rel.Discriminator, e); d != nil {
		probe.filters = append(probe.filters, d)
	}
	for _, pv := range w.Match {
		cond, err := b.equals(queryir.Col(e, pv.Prop.Column), pv.Value)
		if err != nil {
			return nil, err
		}
		probe.filters = append(probe.filters, cond)
	}

	r, err := b.relRow(rel, w.From, w.To, w.Span)
	if err != nil {
		return nil, err
	}
	if err := b.setValues(r, w.Match); err != nil {
		return nil, err
	}
	if err := b.setValues(r, w.OnCreate); err != nil {
		return nil, err
	}

	b.plan.Projections = r.projections()
	b.filters = append(b.filters, &queryir.Exists{Plan: probe.finish(), Negated: true})
	sel := b.finish()
	plan := statement(queryir.KindInsert, sel)
	plan.Insert = &queryir.Insert{Table: rel.Table, Columns: r.columns, Select: sel}
	return plan, nil
}

// equals compares a stored column with a merge value. A null value
// matches a null column.
func (b *builder) equals(col queryir.Expr, value ir.Expr) (queryir.Expr, error) {
	if lit, ok := value.(*ir.Literal); ok {
		if _, null := lit.Value.(ir.Null); null {
			return &queryir.IsNull{Operand: col}, nil
		}
	}
	e, err := b.expr(value)
	if err != nil {
		return nil, err
	}
	return queryir.Eq(col, e), nil
}

func readsVar(e ir.Expr, v *ir.Var) bool {
	found := false
	ir.Walk(e, func(x ir.Expr) bool {
		switch r := x.(type) {
		case *ir.Property:
			found = found || r.Var == v
		case *ir.VarRef:
			found = found || r.Var == v
		}
		return !found
	})
	return found
}

// target locates the rows of a matched variable for UPDATE or DELETE:
// the table, its key column and a select of the matched keys.
type target struct {
	table string
	key   string
	keys  *queryir.Plan
	// self resolves properties of the variable against the target table.
	self *builder
}

func (p *planner) target(reads []*ir.Match, v *ir.Var, span diag.Span) (*target, error) {
	b := p.newBuilder(nil)
	if err := b.matches(reads, false); err != nil {
		return nil, err
	}
	keyExpr, err := b.key(v, span)
	if err != nil {
		return nil, err
	}

	t := &target{self: p.newBuilder(nil)}
	if v.Kind == ir.VarNode {
		t.table, t.key = v.Node.Table, v.Node.Key
		t.self.nodes[v] = t.table
	} else {
		ref, _ := b.edge(v)
		if ref.src.cte {
			return nil, diag.Unsupported(diag.StagePlan, "updating a relationship stored in several tables", span)
		}
		t.table, t.key = ref.src.table, ref.src.key
		t.self.edges[v] = &edgeRef{alias: t.table, src: &edgeSource{table: t.table, key: t.key, rels: ref.src.rels}, clause: -1, ends: ref.ends}
	}

	b.plan.Projections = []*queryir.Projection{{Name: t.key, Expr: keyExpr}}
	t.keys = b.finish()
	return t, nil
}

func (t *target) filter() queryir.Expr {
	return &queryir.InSelect{Operand: queryir.Col(t.table, t.key), Plan: t.keys}
}

// update assigns properties of every row whose key the MATCH selects.
func (p *planner) update(reads []*ir.Match, w *ir.Update) (*queryir.Plan, error) {
	for _, pv := range w.Values {
		var side *ir.Property
		ir.Walk(pv.Value, func(x ir.Expr) bool {
			if prop, ok := x.(*ir.Property); ok && prop.Prop.Side != nil {
				side = prop
			}
			return side == nil
		})
		if side != nil {
			return nil, diag.Unsupported(diag.StagePlan, "SET from a side-table property", side.Loc)
		}
	}

	t, err := p.target(reads, w.Var, w.Span)
	if err != nil {
		return nil, err
	}
	plan := statement(queryir.KindUpdate, t.keys)
	u := &queryir.Update{Table: t.table, Filter: t.filter()}
	for _, pv := range w.Values {
		e, err := t.self.expr(pv.Value)
		if err != nil {
			return nil, err
		}
		u.Sets = append(u.Sets, &queryir.Assignment{Column: pv.Prop.Column, Value: e})
	}
	plan.Update = u
	return plan, nil
}

// delete removes every row whose key the MATCH selects. Side-table rows
// and relationships of a deleted node are left alone.
func (p *planner) delete(reads []*ir.Match, w *ir.Delete) (*queryir.Plan, error) {
	t, err := p.target(reads, w.Var, w.Span)
	if err != nil {
		return nil, err
	}
	plan := statement(queryir.KindDelete, t.keys)
	plan.Delete = &queryir.Delete{Table: t.table, Filter: t.filter()}
	return plan, nil
}
