package binder

import (
	"fmt"

	"github.com/P-wig/cyphersql/internal/cypher"
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
	"github.com/P-wig/cyphersql/internal/schema"
)

// binding is what the scope knows about a named variable.
type binding struct {
	v *ir.Var
	// clause is the index of the declaring clause.
	clause    int
	varLength bool
}

// propMap is an inline property map waiting for the second pass.
type propMap struct {
	v    *ir.Var
	m    *cypher.MapLiteral
	span diag.Span
}

type readClause struct {
	ast   *cypher.MatchClause
	match *ir.Match
	maps  []propMap
	index int
}

type binder struct {
	desc   *schema.Description
	scope  map[string]*binding
	vars   []*ir.Var
	steps  []*ir.Step
	anon   int
	params []string
	seen   map[string]bool

	// typed marks relationship variables with explicit types.
	typed map[*ir.Var]bool
}

// Bind resolves stmt against desc.
func Bind(stmt *cypher.Statement, desc *schema.Description) (*ir.Query, error) {
	b := &binder{
		desc:  desc,
		scope: make(map[string]*binding),
		seen:  make(map[string]bool),
		typed: make(map[*ir.Var]bool),
	}
	return b.bind(stmt)
}

func (b *binder) bind(stmt *cypher.Statement) (*ir.Query, error) {
	var (
		reads      []*readClause
		write      cypher.Clause
		writeIndex = -1
		writePaths []*ir.Path
		writeMaps  []propMap
		ret        *cypher.ReturnClause
	)

	// Pass 1: declare pattern variables in clause order.
	for i, clause := range stmt.Clauses {
		switch c := clause.(type) {
		case *cypher.MatchClause:
			rc := &readClause{ast: c, index: i, match: &ir.Match{Optional: c.Optional, Span: c.Loc}}
			for _, p := range c.Patterns {
				path, maps, err := b.declarePath(p, i, false)
				if err != nil {
					return nil, err
				}
				rc.match.Paths = append(rc.match.Paths, path)
				rc.maps = append(rc.maps, maps...)
			}
			reads = append(reads, rc)
		case *cypher.CreateClause:
			write, writeIndex = c, i
			for _, p := range c.Patterns {
				path, maps, err := b.declarePath(p, i, false)
				if err != nil {
					return nil, err
				}
				writePaths = append(writePaths, path)
				writeMaps = append(writeMaps, maps...)
			}
		case *cypher.MergeClause:
			write, writeIndex = c, i
			path, maps, err := b.declarePath(c.Pattern, i, false)
			if err != nil {
				return nil, err
			}
			writePaths = append(writePaths, path)
			writeMaps = append(writeMaps, maps...)
		case *cypher.SetClause, *cypher.DeleteClause:
			write, writeIndex = c, i
		case *cypher.ReturnClause:
			ret = c
		default:
			return nil, diag.Unsupported(diag.StageBind, fmt.Sprintf("clause %T", clause), clause.Span())
		}
	}

	if err := b.resolve(b.steps); err != nil {
		return nil, err
	}

	// Pass 2: bind expressions against resolved variables.
	q := &ir.Query{}
	for _, rc := range reads {
		filters, err := b.bindMaps(rc.maps, rc.index)
		if err != nil {
			return nil, err
		}
		rc.match.Filters = filters
		if rc.ast.Where != nil {
			where, err := b.bindExpr(rc.ast.Where, rc.index)
			if err != nil {
				return nil, err
			}
			if err := requireBool(where); err != nil {
				return nil, err
			}
			rc.match.Where = where
		}
		q.Reads = append(q.Reads, rc.match)
	}

	if write != nil {
		w, err := b.bindWrite(write, writeIndex, len(reads) > 0, writePaths, writeMaps)
		if err != nil {
			return nil, err
		}
		q.Write = w
	}

	if ret != nil {
		r, err := b.bindReturn(ret, len(stmt.Clauses))
		if err != nil {
			return nil, err
		}
		q.Return = r
	}

	q.Vars = b.vars
	q.Params = b.params
	return q, nil
}

// lookup finds a named variable visible from clause.
func (b *binder) lookup(name string, clause int, span diag.Span) (*binding, error) {
	bd, ok := b.scope[name]
	if !ok || bd.clause > clause {
		return nil, diag.Semantic(diag.KindUndefinedVariable, name, span, "variable %s is not defined", name)
	}
	return bd, nil
}

func (b *binder) addParam(name string) {
	if !b.seen[name] {
		b.seen[name] = true
		b.params = append(b.params, name)
	}
}

// nodeProperty resolves a property of a node variable.
func nodeProperty(v *ir.Var, key string, span diag.Span) (*schema.Property, error) {
	p, ok := v.Node.Property(key)
	if !ok {
		return nil, diag.Semantic(diag.KindUnknownProperty, key, span,
			"label %s has no property %s", v.Label, key)
	}
	return p, nil
}

// relProperty resolves a property every type of a relationship variable
// declares with one type.
func relProperty(v *ir.Var, key string, span diag.Span) (*schema.Property, error) {
	var first *schema.Property
	for _, rel := range v.Rels {
		p, ok := rel.Property(key)
		if !ok {
			return nil, diag.Semantic(diag.KindUnknownProperty, key, span,
				"relationship type %s has no property %s", rel.Type, key)
		}
		if first == nil {
			first = p
			continue
		}
		if p.Type != first.Type {
			return nil, diag.Semantic(diag.KindTypeMismatch, key, span,
				"property %s is %s on %s but %s on %s", key, first.Type, v.Types[0], p.Type, rel.Type)
		}
	}
	return first, nil
}

func property(v *ir.Var, key string, span diag.Span) (*schema.Property, error) {
	if v.Kind == ir.VarNode {
		return nodeProperty(v, key, span)
	}
	return relProperty(v, key, span)
}

// bindMaps turns MATCH property maps into equality filters.
func (b *binder) bindMaps(maps []propMap, clause int) ([]ir.Expr, error) {
	var filters []ir.Expr
	for _, pm := range maps {
		values, err := b.bindValues(pm.v, pm.m, clause)
		if err != nil {
			return nil, err
		}
		for i, pv := range values {
			lhs := &ir.Property{Var: pm.v, Prop: pv.Prop, Loc: pm.m.Loc}
			eq := &ir.Binary{Op: ir.OpEq, Left: lhs, Right: pv.Value, Loc: pm.m.Values[i].Span()}
			if err := checkBinary(eq); err != nil {
				return nil, err
			}
			filters = append(filters, eq)
		}
	}
	return filters, nil
}

// bindValues resolves the keys of a property map and binds its values.
func (b *binder) bindValues(v *ir.Var, m *cypher.MapLiteral, clause int) ([]ir.PropertyValue, error) {
	if m == nil {
		return nil, nil
	}
	out := make([]ir.PropertyValue, 0, len(m.Keys))
	for i, key := range m.Keys {
		p, err := property(v, key, m.Values[i].Span())
		if err != nil {
			return nil, err
		}
		value, err := b.bindExpr(m.Values[i], clause)
		if err != nil {
			return nil, err
		}
		out = append(out, ir.PropertyValue{Prop: p, Value: value})
	}
	return out, nil
}
