package binder

import (
	"github.com/P-wig/cyphersql/internal/cypher"
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
)

func (b *binder) bindReturn(c *cypher.ReturnClause, clause int) (*ir.Return, error) {
	r := &ir.Return{Distinct: c.Distinct, Span: c.Loc}

	for _, item := range c.Items {
		e, err := b.bindExpr(item.Expr, clause)
		if err != nil {
			return nil, err
		}
		r.Items = append(r.Items, &ir.ReturnItem{
			Expr:    e,
			Name:    columnName(item),
			Aliased: item.Alias != "",
			Span:    item.Loc,
		})
	}

	for _, s := range c.OrderBy {
		sort := &ir.SortItem{Item: -1, Descending: s.Descending}
		if i := matchReturnItem(c.Items, s.Expr); i >= 0 {
			sort.Item = i
			sort.Expr = r.Items[i].Expr
		} else {
			e, err := b.bindExpr(s.Expr, clause)
			if err != nil {
				return nil, err
			}
			sort.Expr = e
		}
		r.OrderBy = append(r.OrderBy, sort)
	}

	var err error
	if r.Skip, err = b.bindCount("SKIP", c.Skip); err != nil {
		return nil, err
	}
	if r.Limit, err = b.bindCount("LIMIT", c.Limit); err != nil {
		return nil, err
	}
	return r, nil
}

// columnName is the result column name of a return item: its alias, a
// variable's name, a property's key, or the canonical expression text.
func columnName(item *cypher.ReturnItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	switch e := item.Expr.(type) {
	case *cypher.Variable:
		return e.Name
	case *cypher.PropertyAccess:
		return e.Key
	}
	return item.Expr.String()
}

// matchReturnItem finds the return item an ORDER BY key names: by alias,
// or by identical expression text.
func matchReturnItem(items []*cypher.ReturnItem, e cypher.Expr) int {
	if v, ok := e.(*cypher.Variable); ok {
		for i, item := range items {
			if item.Alias == v.Name {
				return i
			}
		}
	}
	text := e.String()
	for i, item := range items {
		if item.Expr.String() == text {
			return i
		}
	}
	return -1
}

// bindCount binds a SKIP or LIMIT operand: a non-negative integer literal
// or a parameter.
func (b *binder) bindCount(keyword string, e cypher.Expr) (ir.Expr, error) {
	switch x := e.(type) {
	case nil:
		return nil, nil
	case *cypher.IntLiteral:
		return &ir.Literal{Value: ir.Int(x.Value), Loc: x.Loc}, nil
	case *cypher.Parameter:
		b.addParam(x.Name)
		return &ir.Param{Name: x.Name, Loc: x.Loc}, nil
	}
	return nil, diag.Semantic(diag.KindInvalidArgument, keyword, e.Span(),
		"%s takes a non-negative integer or a parameter", keyword)
}
