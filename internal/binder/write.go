package binder

import (
	"github.com/P-wig/cyphersql/internal/cypher"
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
)

// bindWrite binds the single updating clause of a statement.
func (b *binder) bindWrite(c cypher.Clause, clause int, hasReads bool, paths []*ir.Path, maps []propMap) (ir.Write, error) {
	switch w := c.(type) {
	case *cypher.CreateClause:
		return b.bindCreate(w, clause, hasReads, paths, maps)
	case *cypher.MergeClause:
		return b.bindMerge(w, clause, hasReads, paths[0], maps)
	case *cypher.SetClause:
		return b.bindSet(w, clause)
	case *cypher.DeleteClause:
		return b.bindDelete(w, clause)
	}
	return nil, diag.Unsupported(diag.StageBind, "updating clause", c.Span())
}

func (b *binder) bindCreate(c *cypher.CreateClause, clause int, hasReads bool, paths []*ir.Path, maps []propMap) (ir.Write, error) {
	if len(paths) != 1 {
		return nil, diag.Unsupported(diag.StageBind, "CREATE of more than one pattern", c.Loc)
	}
	path := paths[0]

	switch {
	case len(path.Steps) == 0 && !hasReads:
		v := path.Nodes[0]
		values, err := b.constantValues(v, maps, clause)
		if err != nil {
			return nil, err
		}
		return &ir.CreateNode{Var: v, Values: values, Span: c.Loc}, nil

	case len(path.Steps) == 1 && hasReads:
		step := path.Steps[0]
		if err := b.checkLinkable(step, clause, c.Patterns[0]); err != nil {
			return nil, err
		}
		values, err := b.relValues(step.Var, maps, clause)
		if err != nil {
			return nil, err
		}
		from, to := endpoints(step)
		return &ir.CreateRel{Var: step.Var, From: from, To: to, Values: values, Span: c.Loc}, nil

	case len(path.Steps) == 0:
		return nil, diag.Unsupported(diag.StageBind, "CREATE of a node after MATCH", c.Loc)
	case !hasReads:
		return nil, diag.Unsupported(diag.StageBind, "CREATE of a relationship without MATCH", c.Loc)
	}
	return nil, diag.Unsupported(diag.StageBind, "CREATE of more than one node", c.Loc)
}

func (b *binder) bindMerge(c *cypher.MergeClause, clause int, hasReads bool, path *ir.Path, maps []propMap) (ir.Write, error) {
	if len(c.OnMatch) > 0 {
		return nil, diag.Unsupported(diag.StageBind, "ON MATCH SET", c.OnMatch[0].Loc)
	}

	switch {
	case len(path.Steps) == 0 && !hasReads:
		v := path.Nodes[0]
		if bd := b.scope[v.Name]; !v.Synthetic && bd.clause != clause {
			return nil, diag.Unsupported(diag.StageBind, "MERGE of a bound variable", c.Loc)
		}
		match, err := b.constantValues(v, maps, clause)
		if err != nil {
			return nil, err
		}
		onCreate, err := b.bindSetItems(c.OnCreate, v, clause, true)
		if err != nil {
			return nil, err
		}
		return &ir.MergeNode{Var: v, Match: match, OnCreate: onCreate, Span: c.Loc}, nil

	case len(path.Steps) == 1 && hasReads:
		step := path.Steps[0]
		if err := b.checkLinkable(step, clause, c.Pattern); err != nil {
			return nil, err
		}
		values, err := b.relValues(step.Var, maps, clause)
		if err != nil {
			return nil, err
		}
		onCreate, err := b.bindSetItems(c.OnCreate, step.Var, clause, false)
		if err != nil {
			return nil, err
		}
		from, to := endpoints(step)
		return &ir.MergeRel{Var: step.Var, From: from, To: to, Match: values, OnCreate: onCreate, Span: c.Loc}, nil
	}
	return nil, diag.Unsupported(diag.StageBind, "MERGE of this pattern shape", c.Loc)
}

// checkLinkable verifies a relationship created between two matched nodes.
func (b *binder) checkLinkable(step *ir.Step, clause int, p *cypher.PathPattern) error {
	for i, v := range []*ir.Var{step.Left, step.Right} {
		if v.Synthetic || b.scope[v.Name].clause == clause {
			return diag.Unsupported(diag.StageBind, "creating a node together with a relationship", p.Nodes[i].Loc)
		}
		if p.Nodes[i].Properties != nil {
			return diag.Unsupported(diag.StageBind, "property map on a matched node in an updating pattern", p.Nodes[i].Properties.Loc)
		}
	}
	rp := p.Rels[0]
	switch {
	case len(rp.Types) != 1:
		return diag.Unsupported(diag.StageBind, "relationship without exactly one type in an updating pattern", rp.Loc)
	case rp.Hops != nil:
		return diag.Unsupported(diag.StageBind, "variable-length relationship in an updating pattern", rp.Loc)
	case step.Direction == ir.DirBoth:
		return diag.Unsupported(diag.StageBind, "undirected relationship in an updating pattern", rp.Loc)
	}
	return nil
}

// endpoints orders a directed step as (source, target).
func endpoints(s *ir.Step) (from, to *ir.Var) {
	if s.Direction == ir.DirIn {
		return s.Right, s.Left
	}
	return s.Left, s.Right
}

// constantValues binds the property map of a node created without a MATCH:
// values may use literals and parameters only.
func (b *binder) constantValues(v *ir.Var, maps []propMap, clause int) ([]ir.PropertyValue, error) {
	var out []ir.PropertyValue
	for _, pm := range maps {
		if pm.v != v {
			continue
		}
		values, err := b.bindValues(v, pm.m, clause)
		if err != nil {
			return nil, err
		}
		for i, pv := range values {
			if err := requireConstant(pv.Value); err != nil {
				return nil, err
			}
			if pv.Prop.Side != nil {
				return nil, diag.Unsupported(diag.StageBind, "writing a side-table property", pm.m.Values[i].Span())
			}
			if err := checkComparable(&ir.Property{Var: v, Prop: pv.Prop}, pv.Value, pm.m.Values[i].Span()); err != nil {
				return nil, err
			}
		}
		out = append(out, values...)
	}
	return out, nil
}

func (b *binder) relValues(v *ir.Var, maps []propMap, clause int) ([]ir.PropertyValue, error) {
	var out []ir.PropertyValue
	for _, pm := range maps {
		values, err := b.bindValues(pm.v, pm.m, clause)
		if err != nil {
			return nil, err
		}
		for i, pv := range values {
			if err := checkComparable(&ir.Property{Var: v, Prop: pv.Prop}, pv.Value, pm.m.Values[i].Span()); err != nil {
				return nil, err
			}
		}
		out = append(out, values...)
	}
	return out, nil
}

func requireConstant(e ir.Expr) error {
	var bad ir.Expr
	ir.Walk(e, func(x ir.Expr) bool {
		switch x.(type) {
		case *ir.Property, *ir.VarRef, *ir.Exists, *ir.Call:
			bad = x
		}
		return bad == nil
	})
	if bad != nil {
		return diag.Unsupported(diag.StageBind, "reading a variable in a value without MATCH", bad.Span())
	}
	return nil
}

func (b *binder) bindSet(c *cypher.SetClause, clause int) (ir.Write, error) {
	subject, ok := c.Items[0].Target.Subject.(*cypher.Variable)
	if !ok {
		return nil, diag.Unsupported(diag.StageBind, "SET of a property of an expression", c.Items[0].Loc)
	}
	bd, err := b.lookup(subject.Name, clause, subject.Loc)
	if err != nil {
		return nil, err
	}
	values, err := b.bindSetItems(c.Items, bd.v, clause, false)
	if err != nil {
		return nil, err
	}
	if bd.varLength {
		return nil, diag.Unsupported(diag.StageBind, "SET on a variable-length relationship", c.Loc)
	}
	return &ir.Update{Var: bd.v, Values: values, Span: c.Loc}, nil
}

// bindSetItems binds SET items that must all target v. Values may read v
// and parameters; constant additionally forbids reading v.
func (b *binder) bindSetItems(items []*cypher.SetItem, v *ir.Var, clause int, constant bool) ([]ir.PropertyValue, error) {
	var out []ir.PropertyValue
	for _, item := range items {
		subject, ok := item.Target.Subject.(*cypher.Variable)
		if !ok {
			return nil, diag.Unsupported(diag.StageBind, "SET of a property of an expression", item.Loc)
		}
		if subject.Name != v.Name {
			if _, err := b.lookup(subject.Name, clause, subject.Loc); err != nil {
				return nil, err
			}
			return nil, diag.Unsupported(diag.StageBind, "SET of more than one variable", item.Loc)
		}
		p, err := property(v, item.Target.Key, item.Target.Loc)
		if err != nil {
			return nil, err
		}
		if p.Side != nil {
			return nil, diag.Unsupported(diag.StageBind, "writing a side-table property", item.Target.Loc)
		}
		if v.Kind == ir.VarRel && len(v.Rels) > 1 {
			return nil, diag.Unsupported(diag.StageBind, "SET on a relationship with several types", item.Loc)
		}

		value, err := b.bindExpr(item.Value, clause)
		if err != nil {
			return nil, err
		}
		if constant {
			if err := requireConstant(value); err != nil {
				return nil, err
			}
		}
		var other ir.Expr
		ir.Walk(value, func(x ir.Expr) bool {
			switch r := x.(type) {
			case *ir.Property:
				if r.Var != v {
					other = x
				}
			case *ir.VarRef:
				other = x
			case *ir.Exists:
				other = x
			}
			return other == nil
		})
		if other != nil {
			return nil, diag.Unsupported(diag.StageBind, "SET from another variable", other.Span())
		}
		if err := checkComparable(&ir.Property{Var: v, Prop: p}, value, item.Value.Span()); err != nil {
			return nil, err
		}
		out = append(out, ir.PropertyValue{Prop: p, Value: value})
	}
	return out, nil
}

func (b *binder) bindDelete(c *cypher.DeleteClause, clause int) (ir.Write, error) {
	if c.Detach {
		return nil, diag.Unsupported(diag.StageBind, "DETACH DELETE", c.Loc)
	}
	if len(c.Targets) != 1 {
		return nil, diag.Unsupported(diag.StageBind, "DELETE of more than one variable", c.Targets[1].Span())
	}
	target, ok := c.Targets[0].(*cypher.Variable)
	if !ok {
		return nil, diag.Unsupported(diag.StageBind, "DELETE of an expression", c.Targets[0].Span())
	}
	bd, err := b.lookup(target.Name, clause, target.Loc)
	if err != nil {
		return nil, err
	}
	if bd.varLength {
		return nil, diag.Unsupported(diag.StageBind, "DELETE of a variable-length relationship", target.Loc)
	}
	return &ir.Delete{Var: bd.v, Span: c.Loc}, nil
}
