package queryir

import (
	"fmt"
	"strings"
)

// InvalidPlanError lists every structural problem Validate found.
type InvalidPlanError struct {
	Problems []string
}

func (e *InvalidPlanError) Error() string {
	return "invalid plan: " + strings.Join(e.Problems, "; ")
}

// Validate checks the structural invariants of a plan and its nested
// plans:
//  1. every alias is bound exactly once in the statement
//  2. every column reference names an alias in scope
//  3. every non-cross join condition references an earlier binding
//  4. cross joins appear only in the row source of an INSERT
//  5. GROUP BY and ORDER BY ordinals name a projection
//
// It returns nil or an *InvalidPlanError. Validate is a pure function.
func Validate(p *Plan) error {
	v := &validator{bound: make(map[string]bool)}
	v.validatePlan(p, nil, false)
	if len(v.problems) == 0 {
		return nil
	}
	return &InvalidPlanError{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	bound    map[string]bool
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// scope is the set of aliases visible to an expression.
type scope map[string]bool

func (s scope) with(aliases ...string) scope {
	out := make(scope, len(s)+len(aliases))
	for a := range s {
		out[a] = true
	}
	for _, a := range aliases {
		out[a] = true
	}
	return out
}

func (v *validator) bind(b *TableBinding, sc scope) {
	if b == nil {
		return
	}
	if b.Alias == "" {
		v.addProblem("binding of %s has no alias", b.Table)
		return
	}
	if v.bound[b.Alias] {
		v.addProblem("alias %s is bound more than once", b.Alias)
	}
	v.bound[b.Alias] = true
	sc[b.Alias] = true
}

func (v *validator) validatePlan(p *Plan, outer scope, crossOK bool) {
	if p == nil {
		v.addProblem("nil plan")
		return
	}
	for _, cte := range p.CTEs {
		v.validateCTE(cte)
	}

	switch p.Kind {
	case KindInsert:
		v.validateInsert(p.Insert, outer)
		return
	case KindUpdate:
		v.validateUpdate(p.Update, outer)
		return
	case KindDelete:
		v.validateDelete(p.Delete, outer)
		return
	case KindSelect:
	default:
		v.addProblem("unknown plan kind %q", p.Kind)
		return
	}

	sc := outer.with()
	v.bind(p.From, sc)
	if p.From == nil && len(p.Joins) > 0 {
		v.addProblem("joins without a FROM binding")
	}
	for _, j := range p.Joins {
		v.validateJoin(j, sc, crossOK)
	}

	v.validateExpr(p.Filter, sc)
	for _, proj := range p.Projections {
		if proj.Expr == nil {
			v.addProblem("projection %s has no expression", proj.Name)
			continue
		}
		v.validateExpr(proj.Expr, sc)
	}
	for _, g := range p.GroupBy {
		if g < 1 || g > len(p.Projections) {
			v.addProblem("GROUP BY ordinal %d out of range", g)
		}
	}
	for _, o := range p.OrderBy {
		switch {
		case o.Ordinal == 0 && o.Expr == nil:
			v.addProblem("ORDER BY key without ordinal or expression")
		case o.Ordinal == 0:
			v.validateExpr(o.Expr, sc)
		case o.Ordinal < 0 || o.Ordinal > len(p.Projections):
			v.addProblem("ORDER BY ordinal %d out of range", o.Ordinal)
		}
	}
	v.validateExpr(p.Skip, sc)
	v.validateExpr(p.Limit, sc)
}

func (v *validator) validateJoin(j *Join, sc scope, crossOK bool) {
	earlier := sc.with()
	for _, b := range j.Bindings() {
		v.bind(b, sc)
	}
	for _, n := range j.Nested {
		if n.Kind == JoinCross {
			v.addProblem("cross join inside a join group")
		}
		if len(n.Nested) > 0 {
			v.addProblem("nested join group")
		}
	}

	if j.Kind == JoinCross {
		if !crossOK {
			v.addProblem("cross join of %s outside an INSERT row source", j.Binding.Alias)
		}
		if j.On != nil {
			v.addProblem("cross join of %s has a condition", j.Binding.Alias)
		}
		return
	}
	if j.On == nil {
		v.addProblem("join of %s has no condition", j.Binding.Alias)
		return
	}
	v.validateExpr(j.On, sc)
	for _, n := range j.Nested {
		v.validateExpr(n.On, sc)
	}
	if !references(j.On, earlier) {
		v.addProblem("join of %s is not linked to an earlier binding", j.Binding.Alias)
	}
}

// references reports whether e reads a column of an alias in sc.
func references(e Expr, sc scope) bool {
	found := false
	Walk(e, func(x Expr) {
		if c, ok := x.(*Column); ok && sc[c.Alias] {
			found = true
		}
	})
	return found
}

func (v *validator) validateExpr(e Expr, sc scope) {
	Walk(e, func(x Expr) {
		switch c := x.(type) {
		case *Column:
			if c.Alias != "" && !sc[c.Alias] {
				v.addProblem("column %s.%s references an alias out of scope", c.Alias, c.Name)
			}
		case *Exists:
			v.validatePlan(c.Plan, sc, false)
		case *InSelect:
			v.validatePlan(c.Plan, sc, false)
			if c.Plan != nil && len(c.Plan.Projections) != 1 {
				v.addProblem("IN subquery projects %d columns", len(c.Plan.Projections))
			}
		}
	})
}

func (v *validator) validateCTE(c *CTE) {
	switch {
	case c.Union != nil && c.Recursive != nil:
		v.addProblem("CTE %s is both a union and recursive", c.Name)
	case c.Union != nil:
		if len(c.Union.Branches) == 0 {
			v.addProblem("edge union %s has no branches", c.Name)
		}
		for _, b := range c.Union.Branches {
			v.validatePlan(b, nil, false)
			if len(b.Projections) != len(c.Columns) {
				v.addProblem("edge union %s branch projects %d of %d columns", c.Name, len(b.Projections), len(c.Columns))
			}
		}
	case c.Recursive != nil:
		r := c.Recursive
		v.validatePlan(r.Base, nil, false)
		v.validatePlan(r.Step, nil, false)
		if r.MaxHops < r.MinHops || r.MaxHops < 1 {
			v.addProblem("recursive fragment %s has hop range %d..%d", c.Name, r.MinHops, r.MaxHops)
		}
	default:
		v.addProblem("CTE %s has no body", c.Name)
	}
}

func (v *validator) validateInsert(ins *Insert, outer scope) {
	if ins == nil {
		v.addProblem("insert plan without a target")
		return
	}
	switch {
	case ins.Select != nil && ins.Values != nil:
		v.addProblem("insert into %s has both values and a row source", ins.Table)
	case ins.Select != nil:
		v.validatePlan(ins.Select, outer, true)
		if len(ins.Select.Projections) != len(ins.Columns) {
			v.addProblem("insert into %s selects %d values for %d columns", ins.Table, len(ins.Select.Projections), len(ins.Columns))
		}
	default:
		if len(ins.Values) != len(ins.Columns) {
			v.addProblem("insert into %s has %d values for %d columns", ins.Table, len(ins.Values), len(ins.Columns))
		}
		for _, e := range ins.Values {
			v.validateExpr(e, outer.with())
		}
	}
}

func (v *validator) validateUpdate(u *Update, outer scope) {
	if u == nil {
		v.addProblem("update plan without a target")
		return
	}
	sc := outer.with(u.Table)
	if len(u.Sets) == 0 {
		v.addProblem("update of %s assigns nothing", u.Table)
	}
	for _, s := range u.Sets {
		v.validateExpr(s.Value, sc)
	}
	v.validateExpr(u.Filter, sc)
}

func (v *validator) validateDelete(d *Delete, outer scope) {
	if d == nil {
		v.addProblem("delete plan without a target")
		return
	}
	v.validateExpr(d.Filter, outer.with(d.Table))
}
