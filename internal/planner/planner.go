package planner

import (
	"fmt"

	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
	"github.com/P-wig/cyphersql/internal/queryir"
	"github.com/P-wig/cyphersql/internal/schema"
)

// Options tunes planning.
type Options struct {
	// MaxDepth caps variable-length relationships without an upper bound.
	// Zero rejects them.
	MaxDepth int
}

// planner holds the state shared by every builder of one statement.
type planner struct {
	opts Options
	next map[string]int
	// sides lists the side tables each node variable reads.
	sides map[*ir.Var][]*schema.SideTable
	// clauses maps the steps of each MATCH to its index.
	clauses map[*ir.Step]int
}

// Plan builds the relational plan of q.
func Plan(q *ir.Query, opts Options) (*queryir.Plan, error) {
	p := &planner{
		opts:    opts,
		next:    make(map[string]int),
		sides:   collectSides(q),
		clauses: make(map[*ir.Step]int),
	}
	for i, m := range q.Reads {
		for _, path := range m.Paths {
			for _, s := range path.Steps {
				p.clauses[s] = i
			}
		}
	}

	var (
		plan *queryir.Plan
		err  error
	)
	switch {
	case q.Write != nil && q.Return != nil:
		return nil, diag.Unsupported(diag.StagePlan, "RETURN after an updating clause", q.Return.Span)
	case q.Write != nil:
		plan, err = p.planWrite(q)
	case q.Return != nil:
		plan, err = p.planRead(q)
	default:
		return nil, diag.Plan(diag.KindInvalidPlan, diag.Span{}, "query has neither RETURN nor an updating clause")
	}
	if err != nil {
		return nil, err
	}

	if err := queryir.Validate(plan); err != nil {
		return nil, diag.Plan(diag.KindInvalidPlan, diag.Span{}, "%v", err)
	}
	return plan, nil
}

// alias returns the next synthetic name with prefix.
func (p *planner) alias(prefix string) string {
	n := p.next[prefix]
	p.next[prefix]++
	return fmt.Sprintf("%s%d", prefix, n)
}

// clauseOf returns the index of the MATCH declaring s, or -1.
func (p *planner) clauseOf(s *ir.Step) int {
	if i, ok := p.clauses[s]; ok {
		return i
	}
	return -1
}

func (p *planner) planRead(q *ir.Query) (*queryir.Plan, error) {
	b := p.newBuilder(nil)
	if err := b.matches(q.Reads, false); err != nil {
		return nil, err
	}
	if err := b.project(q.Return); err != nil {
		return nil, err
	}
	return b.finish(), nil
}

// collectSides finds the side tables each node variable reads anywhere in
// the query, in first-use order.
func collectSides(q *ir.Query) map[*ir.Var][]*schema.SideTable {
	out := make(map[*ir.Var][]*schema.SideTable)
	var visit func(e ir.Expr)
	visit = func(e ir.Expr) {
		ir.Walk(e, func(x ir.Expr) bool {
			switch v := x.(type) {
			case *ir.Property:
				if side := v.Prop.Side; side != nil {
					if !hasSide(out[v.Var], side.Table) {
						out[v.Var] = append(out[v.Var], side)
					}
				}
			case *ir.Exists:
				for _, f := range v.Filters {
					visit(f)
				}
			}
			return true
		})
	}

	for _, m := range q.Reads {
		for _, f := range m.Filters {
			visit(f)
		}
		visit(m.Where)
	}
	if r := q.Return; r != nil {
		for _, item := range r.Items {
			visit(item.Expr)
			// A returned node expands to all of its properties.
			if ref, ok := item.Expr.(*ir.VarRef); ok && ref.Var.Kind == ir.VarNode {
				for _, prop := range ref.Var.Node.Properties {
					if prop.Side != nil && !hasSide(out[ref.Var], prop.Side.Table) {
						out[ref.Var] = append(out[ref.Var], prop.Side)
					}
				}
			}
		}
		for _, s := range r.OrderBy {
			visit(s.Expr)
		}
	}
	for _, pv := range writeValues(q.Write) {
		visit(pv.Value)
	}
	return out
}

func hasSide(sides []*schema.SideTable, table string) bool {
	for _, s := range sides {
		if s.Table == table {
			return true
		}
	}
	return false
}

func writeValues(w ir.Write) []ir.PropertyValue {
	switch x := w.(type) {
	case *ir.CreateNode:
		return x.Values
	case *ir.CreateRel:
		return x.Values
	case *ir.MergeNode:
		return append(append([]ir.PropertyValue(nil), x.Match...), x.OnCreate...)
	case *ir.MergeRel:
		return append(append([]ir.PropertyValue(nil), x.Match...), x.OnCreate...)
	case *ir.Update:
		return x.Values
	}
	return nil
}
