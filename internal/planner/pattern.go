package planner

import (
	"slices"
	"strings"

	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/schema"
)

// Columns of edge unions and recursive fragments.
const (
	colFrom  = "_from"
	colTo    = "_to"
	colType  = "_type"
	colKey   = "_key"
	colSrc   = "_src"
	colDst   = "_dst"
	colStart = "start_key"
	colEnd   = "end_key"
	colDepth = "depth"
)

// edgeSource is where the rows of a relationship step come from: an edge
// table or an edge union, with the columns at the start and end of the
// walk.
type edgeSource struct {
	table string
	cte   bool
	from  string
	to    string
	// both means the step may be walked either way; from and to are then
	// the stored source and target columns.
	both bool
	key  string
	rels []*schema.Relationship
}

// edgeRef is a bound fixed-length relationship variable. clause is the
// index of the MATCH that declares it, -1 outside a MATCH.
type edgeRef struct {
	alias  string
	src    *edgeSource
	clause int
	// ends are the nodes the step joins.
	ends [2]*schema.Node
}

func (src *edgeSource) prefix() string {
	if src.cte {
		return "u"
	}
	return "e"
}

// filter restricts a direct edge table to the step's relationship types.
func (src *edgeSource) filter(alias string) queryir.Expr {
	if src.cte {
		return nil
	}
	if len(src.rels) == 1 {
		return discriminator(src.rels[0].Discriminator, alias)
	}
	list := make([]queryir.Expr, len(src.rels))
	for i, rel := range src.rels {
		list[i] = &queryir.Literal{Value: ir.String(rel.Discriminator.Value)}
	}
	return &queryir.In{Operand: queryir.Col(alias, src.rels[0].Discriminator.Column), List: list}
}

// orientation is one way a relationship can be walked.
type orientation struct {
	rel      *schema.Relationship
	fwd, bwd bool
}

// orientations lists the ways each candidate type of s can be walked
// starting from its left (fromLeft) or right node. fwd walks from the
// stored source to the stored target.
func orientations(s *ir.Step, fromLeft bool) []orientation {
	out := make([]orientation, 0, len(s.Var.Rels))
	for _, rel := range s.Var.Rels {
		fwd, bwd := s.Orientations(rel)
		if !fromLeft {
			fwd, bwd = bwd, fwd
		}
		if fwd || bwd {
			out = append(out, orientation{rel: rel, fwd: fwd, bwd: bwd})
		}
	}
	return out
}

// edgeSource picks the rows a step walks. One edge table serves when every
// candidate type lives in it with the same columns and orientation;
// otherwise the step reads an edge union with one branch per type and
// orientation. A recursive walk never uses an either-way table.
func (b *builder) edgeSource(s *ir.Step, fromLeft, recursive bool) *edgeSource {
	os := orientations(s, fromLeft)
	first := os[0]

	direct := !(recursive && first.fwd && first.bwd)
	for _, o := range os[1:] {
		same := o.rel.Table == first.rel.Table &&
			o.rel.Key == first.rel.Key &&
			o.rel.Source().Column == first.rel.Source().Column &&
			o.rel.Target().Column == first.rel.Target().Column &&
			o.fwd == first.fwd && o.bwd == first.bwd &&
			o.rel.Discriminator != nil && first.rel.Discriminator != nil &&
			o.rel.Discriminator.Column == first.rel.Discriminator.Column
		if !same {
			direct = false
		}
	}

	if direct {
		src := &edgeSource{
			table: first.rel.Table,
			from:  first.rel.Source().Column,
			to:    first.rel.Target().Column,
			both:  first.fwd && first.bwd,
			key:   first.rel.Key,
		}
		if !first.fwd {
			src.from, src.to = src.to, src.from
		}
		for _, o := range os {
			src.rels = append(src.rels, o.rel)
		}
		return src
	}
	return b.edgeUnion(os, recursive)
}

// edgeUnion defines a CTE concatenating the oriented rows of several edge
// tables. Fixed-length steps also get the type, the key when every type
// has one or else the stored endpoints, and the properties every type
// declares.
func (b *builder) edgeUnion(os []orientation, recursive bool) *edgeSource {
	name := b.p.alias("u")
	src := &edgeSource{table: name, cte: true, from: colFrom, to: colTo}
	for _, o := range os {
		src.rels = append(src.rels, o.rel)
	}

	columns := []string{colFrom, colTo}
	var props []string
	if !recursive {
		columns = append(columns, colType)
		withKey := true
		for _, rel := range src.rels {
			withKey = withKey && rel.Key != ""
		}
		if withKey {
			columns = append(columns, colKey)
			src.key = colKey
		} else {
			columns = append(columns, colSrc, colDst)
		}
		for _, p := range src.rels[0].Properties {
			shared := true
			for _, rel := range src.rels[1:] {
				if _, ok := rel.Property(p.Name); !ok {
					shared = false
				}
			}
			if shared {
				props = append(props, p.Name)
			}
		}
		columns = append(columns, props...)
	}

	union := &queryir.EdgeUnion{}
	branch := func(rel *schema.Relationship, from, to string) {
		e := b.p.alias("e")
		plan := &queryir.Plan{
			Kind:   queryir.KindSelect,
			From:   &queryir.TableBinding{Alias: e, Table: rel.Table},
			Filter: discriminator(rel.Discriminator, e),
			Projections: []*queryir.Projection{
				{Name: colFrom, Expr: queryir.Col(e, from)},
				{Name: colTo, Expr: queryir.Col(e, to)},
			},
		}
		if !recursive {
			plan.Projections = append(plan.Projections, &queryir.Projection{
				Name: colType, Expr: &queryir.Literal{Value: ir.String(rel.Type)},
			})
			if src.key != "" {
				plan.Projections = append(plan.Projections, &queryir.Projection{Name: colKey, Expr: queryir.Col(e, rel.Key)})
			} else {
				plan.Projections = append(plan.Projections,
					&queryir.Projection{Name: colSrc, Expr: queryir.Col(e, rel.Source().Column)},
					&queryir.Projection{Name: colDst, Expr: queryir.Col(e, rel.Target().Column)},
				)
			}
			for _, name := range props {
				p, _ := rel.Property(name)
				plan.Projections = append(plan.Projections, &queryir.Projection{Name: name, Expr: queryir.Col(e, p.Column)})
			}
		}
		union.Branches = append(union.Branches, plan)
	}
	for _, o := range os {
		if o.fwd {
			branch(o.rel, o.rel.Source().Column, o.rel.Target().Column)
		}
		if o.bwd {
			branch(o.rel, o.rel.Target().Column, o.rel.Source().Column)
		}
	}

	*b.ctes = append(*b.ctes, &queryir.CTE{Name: name, Columns: columns, Union: union})
	return src
}

// joinStep joins the relationship of s walking from the bound node from,
// then the node at the other end unless it is bound already.
func (b *builder) joinStep(s *ir.Step, from *ir.Var) error {
	fromLeft := s.Left == from
	to := s.Right
	if !fromLeft {
		to = s.Left
	}
	if s.VarLength && !s.Hops.Fixed() {
		return b.joinRecursive(s, from, to, fromLeft)
	}

	fromAlias, _ := b.nodeAlias(from)
	fromKey := nodeKey(fromAlias, from)
	toAlias, toBound := b.nodeAlias(to)

	src := b.edgeSource(s, fromLeft, false)
	alias := b.p.alias(src.prefix())
	col := func(name string) queryir.Expr { return queryir.Col(alias, name) }

	var on queryir.Expr
	var link func(string) queryir.Expr
	switch {
	case src.both && toBound:
		toKey := nodeKey(toAlias, to)
		on = queryir.Or(
			queryir.And(queryir.Eq(col(src.from), fromKey), queryir.Eq(col(src.to), toKey)),
			queryir.And(queryir.Eq(col(src.to), fromKey), queryir.Eq(col(src.from), toKey)),
		)
	case src.both:
		on = queryir.Or(queryir.Eq(col(src.from), fromKey), queryir.Eq(col(src.to), fromKey))
		link = func(a string) queryir.Expr {
			return queryir.Or(
				queryir.And(queryir.Eq(col(src.from), fromKey), queryir.Eq(nodeKey(a, to), col(src.to))),
				queryir.And(queryir.Eq(col(src.to), fromKey), queryir.Eq(nodeKey(a, to), col(src.from))),
			)
		}
	case toBound:
		on = queryir.And(queryir.Eq(col(src.from), fromKey), queryir.Eq(col(src.to), nodeKey(toAlias, to)))
	default:
		on = queryir.Eq(col(src.from), fromKey)
		link = func(a string) queryir.Expr { return queryir.Eq(nodeKey(a, to), col(src.to)) }
	}

	ref := &edgeRef{alias: alias, src: src, clause: b.p.clauseOf(s), ends: [2]*schema.Node{from.Node, to.Node}}
	binding := &queryir.TableBinding{Alias: alias, Table: src.table, CTE: src.cte, Var: varName(s.Var)}
	j := b.join(queryir.JoinInner, binding, queryir.And(on, src.filter(alias), b.distinctEdge(ref)))
	j.Relationship = strings.Join(s.Var.Types, "|")
	j.Direction = walkDirection(s, fromLeft)
	b.edges[s.Var] = ref
	b.edgeOrder = append(b.edgeOrder, ref)

	if !toBound {
		b.bindNode(queryir.JoinInner, to, link)
	}
	return nil
}

// joinRecursive joins a variable-length step through a recursive fragment
// of (start key, end key, depth) rows.
func (b *builder) joinRecursive(s *ir.Step, from, to *ir.Var, fromLeft bool) error {
	minHops, maxHops := s.Hops.Min, s.Hops.Max
	if s.Hops.Unbounded {
		if b.p.opts.MaxDepth <= 0 {
			return diag.Plan(diag.KindUnboundedRecursionRejected, s.Span,
				"variable-length relationship %s has no upper bound and no depth cap is configured", s.Hops)
		}
		maxHops = b.p.opts.MaxDepth
		if maxHops < minHops {
			return diag.Plan(diag.KindUnboundedRecursionRejected, s.Span,
				"lower hop bound %d exceeds the depth cap %d", minHops, maxHops)
		}
	}
	if maxHops == 0 {
		return diag.Unsupported(diag.StagePlan, "zero-length relationship pattern", s.Span)
	}

	fromAlias, _ := b.nodeAlias(from)
	toAlias, toBound := b.nodeAlias(to)
	src := b.edgeSource(s, fromLeft, true)
	name := b.p.alias("r")

	baseDepth := 1
	var base *queryir.Plan
	if minHops == 0 {
		baseDepth = 0
		n := b.p.alias("n")
		base = &queryir.Plan{
			Kind:   queryir.KindSelect,
			From:   &queryir.TableBinding{Alias: n, Table: from.Node.Table},
			Filter: discriminator(from.Node.Discriminator, n),
			Projections: []*queryir.Projection{
				{Name: colStart, Expr: nodeKey(n, from)},
				{Name: colEnd, Expr: nodeKey(n, from)},
				{Name: colDepth, Expr: &queryir.Number{Value: 0}},
			},
		}
	} else {
		e := b.p.alias(src.prefix())
		base = &queryir.Plan{
			Kind:   queryir.KindSelect,
			From:   &queryir.TableBinding{Alias: e, Table: src.table, CTE: src.cte},
			Filter: src.filter(e),
			Projections: []*queryir.Projection{
				{Name: colStart, Expr: queryir.Col(e, src.from)},
				{Name: colEnd, Expr: queryir.Col(e, src.to)},
				{Name: colDepth, Expr: &queryir.Number{Value: 1}},
			},
		}
	}

	w := b.p.alias("r")
	e := b.p.alias(src.prefix())
	step := &queryir.Plan{
		Kind: queryir.KindSelect,
		From: &queryir.TableBinding{Alias: w, Table: name, CTE: true},
		Joins: []*queryir.Join{{
			Kind:    queryir.JoinInner,
			Binding: &queryir.TableBinding{Alias: e, Table: src.table, CTE: src.cte},
			On:      queryir.And(queryir.Eq(queryir.Col(e, src.from), queryir.Col(w, colEnd)), src.filter(e)),
		}},
		Filter: &queryir.Binary{Op: "<", Left: queryir.Col(w, colDepth), Right: &queryir.Number{Value: maxHops}},
		Projections: []*queryir.Projection{
			{Name: colStart, Expr: queryir.Col(w, colStart)},
			{Name: colEnd, Expr: queryir.Col(e, src.to)},
			{Name: colDepth, Expr: &queryir.Binary{Op: "+", Left: queryir.Col(w, colDepth), Right: &queryir.Number{Value: 1}}},
		},
	}

	*b.ctes = append(*b.ctes, &queryir.CTE{
		Name:    name,
		Columns: []string{colStart, colEnd, colDepth},
		Recursive: &queryir.Recursive{
			Base:    base,
			Step:    step,
			MinHops: minHops,
			MaxHops: maxHops,
		},
	})

	ref := b.p.alias("r")
	on := queryir.Eq(queryir.Col(ref, colStart), nodeKey(fromAlias, from))
	if minHops > baseDepth {
		on = queryir.And(on, &queryir.Binary{Op: ">=", Left: queryir.Col(ref, colDepth), Right: &queryir.Number{Value: minHops}})
	}
	if toBound {
		on = queryir.And(on, queryir.Eq(queryir.Col(ref, colEnd), nodeKey(toAlias, to)))
	}
	j := b.join(queryir.JoinInner, &queryir.TableBinding{Alias: ref, Table: name, CTE: true, Var: varName(s.Var)}, on)
	j.Relationship = strings.Join(s.Var.Types, "|")
	j.Direction = walkDirection(s, fromLeft)
	j.Hops = &queryir.HopRange{Min: minHops, Max: maxHops}

	if !toBound {
		b.bindNode(queryir.JoinInner, to, func(a string) queryir.Expr {
			return queryir.Eq(nodeKey(a, to), queryir.Col(ref, colEnd))
		})
	}
	return nil
}

// walkDirection describes the direction of s as walked from its left or
// right node.
func walkDirection(s *ir.Step, fromLeft bool) string {
	d := s.Direction
	if !fromLeft {
		switch d {
		case ir.DirOut:
			d = ir.DirIn
		case ir.DirIn:
			d = ir.DirOut
		}
	}
	return d.String()
}

// distinctEdge keeps ref off the rows of the relationships bound earlier
// by the same MATCH: one pattern never uses a relationship twice.
func (b *builder) distinctEdge(ref *edgeRef) queryir.Expr {
	if ref.clause < 0 {
		return nil
	}
	var conds []queryir.Expr
	for _, prev := range b.edgeOrder {
		if prev.clause != ref.clause {
			continue
		}
		same := sameEdgeRow(prev, ref)
		if same == nil {
			continue
		}
		if eq, ok := same.(*queryir.Binary); ok && eq.Op == "=" {
			conds = append(conds, &queryir.Binary{Op: "<>", Left: eq.Left, Right: eq.Right})
			continue
		}
		conds = append(conds, &queryir.Unary{Op: "NOT", Operand: same})
	}
	return queryir.And(conds...)
}

// sameEdgeRow is true when x and y read the same stored relationship, or
// nil when they share no relationship type and never can.
func sameEdgeRow(x, y *edgeRef) queryir.Expr {
	var alts []queryir.Expr
	for _, rel := range x.src.rels {
		if !slices.Contains(y.src.rels, rel) {
			continue
		}
		alts = append(alts, queryir.And(x.typeTest(rel), y.typeTest(rel), edgeIdentity(x, y, rel)))
	}
	return queryir.Or(alts...)
}

// typeTest tells the rows of rel apart from the other types the edge
// reads; nil when it reads only rel.
func (e *edgeRef) typeTest(rel *schema.Relationship) queryir.Expr {
	if len(e.src.rels) == 1 {
		return nil
	}
	if e.src.cte {
		return queryir.Eq(queryir.Col(e.alias, colType), &queryir.Literal{Value: ir.String(rel.Type)})
	}
	return discriminator(rel.Discriminator, e.alias)
}

// keyColumn is the column holding the relationship key of rel rows, "" when
// there is none.
func (e *edgeRef) keyColumn(rel *schema.Relationship) string {
	if e.src.cte {
		return e.src.key
	}
	return rel.Key
}

// endpoints are the stored source and target columns of rel rows.
func (e *edgeRef) endpoints(rel *schema.Relationship) (queryir.Expr, queryir.Expr) {
	if e.src.cte {
		return queryir.Col(e.alias, colSrc), queryir.Col(e.alias, colDst)
	}
	return queryir.Col(e.alias, rel.Source().Column), queryir.Col(e.alias, rel.Target().Column)
}

// endpointType is the type of the key stored in the ep column. An endpoint
// open to any label stores integers.
func (e *edgeRef) endpointType(ep schema.Endpoint) schema.Type {
	for _, n := range e.ends {
		if n != nil && n.Label == ep.Label {
			return n.KeyType()
		}
	}
	return schema.TypeInt
}

// edgeIdentity compares two rows of rel by key, or by stored endpoints when
// rel has no key.
func edgeIdentity(x, y *edgeRef, rel *schema.Relationship) queryir.Expr {
	xk, yk := x.keyColumn(rel), y.keyColumn(rel)
	if xk != "" && yk != "" {
		return queryir.Eq(queryir.Col(x.alias, xk), queryir.Col(y.alias, yk))
	}
	xs, xd := x.endpoints(rel)
	ys, yd := y.endpoints(rel)
	return queryir.And(queryir.Eq(xs, ys), queryir.Eq(xd, yd))
}
