package querysql

import (
	"strconv"
	"strings"

	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/queryir"
)

// Compiler renders relational plans as SQL text for one dialect.
//
// CRITICAL: Literal values are never interpolated. Every literal becomes a
// bind parameter and every query parameter a named placeholder resolved by
// Output.Args.
// CRITICAL: Identifiers are always double-quoted.
//
// A Compiler has no mutable state and is safe for concurrent use.
type Compiler struct {
	dialect Dialect
}

// New creates a Compiler for dialect.
func New(dialect Dialect) *Compiler {
	return &Compiler{dialect: dialect}
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// Compile renders plan. The output is a pure function of the plan and the
// dialect: compiling the same plan twice yields identical text and
// parameters.
func (c *Compiler) Compile(plan *queryir.Plan) (*Output, error) {
	if !c.dialect.valid() {
		return nil, diag.Codegen("unknown dialect %q", c.dialect)
	}
	if plan == nil {
		return nil, diag.Codegen("cannot compile nil plan")
	}

	w := &writer{dialect: c.dialect, named: make(map[string]int)}
	w.statement(plan)
	if w.err != nil {
		return nil, w.err
	}

	out := &Output{
		SQL:     w.sb.String(),
		Params:  w.params,
		Kind:    plan.Kind,
		Dialect: c.dialect,
	}
	if plan.Kind == queryir.KindSelect {
		out.Columns = make([]Column, len(plan.Projections))
		for i, p := range plan.Projections {
			out.Columns[i] = Column{Name: p.Name, Type: p.Type}
		}
	}
	return out, nil
}

// writer accumulates the text and parameters of one statement. The first
// failure sticks; later writes are ignored by the caller.
type writer struct {
	dialect Dialect
	sb      strings.Builder
	params  []Param
	// named maps a query parameter to its placeholder number (postgres).
	named map[string]int
	err   *diag.Error
}

func (w *writer) write(parts ...string) {
	for _, s := range parts {
		w.sb.WriteString(s)
	}
}

func (w *writer) fail(format string, args ...any) {
	if w.err == nil {
		w.err = diag.Codegen(format, args...)
	}
}

// bind appends p and writes its placeholder. Postgres reuses the number of
// a query parameter already bound; sqlite placeholders are positional.
func (w *writer) bind(p Param) {
	if w.dialect == Postgres && p.Name != "" {
		if n, ok := w.named[p.Name]; ok {
			w.write(w.dialect.Placeholder(n))
			return
		}
	}
	w.params = append(w.params, p)
	n := len(w.params)
	if p.Name != "" {
		w.named[p.Name] = n
	}
	w.write(w.dialect.Placeholder(n))
}

func (w *writer) statement(p *queryir.Plan) {
	switch p.Kind {
	case queryir.KindSelect:
		w.selectPlan(p)
	case queryir.KindInsert:
		w.insert(p)
	case queryir.KindUpdate:
		w.update(p)
	case queryir.KindDelete:
		w.delete(p)
	default:
		w.fail("unknown plan kind %q", p.Kind)
	}
}

func (w *writer) with(ctes []*queryir.CTE) {
	if len(ctes) == 0 {
		return
	}
	w.write("WITH ")
	for _, c := range ctes {
		if c.Recursive != nil {
			w.write("RECURSIVE ")
			break
		}
	}
	for i, c := range ctes {
		if i > 0 {
			w.write(", ")
		}
		w.write(QuoteIdent(c.Name), "(")
		for j, col := range c.Columns {
			if j > 0 {
				w.write(", ")
			}
			w.write(QuoteIdent(col))
		}
		w.write(") AS (")
		switch {
		case c.Union != nil:
			for j, b := range c.Union.Branches {
				if j > 0 {
					w.write(" UNION ALL ")
				}
				w.selectPlan(b)
			}
		case c.Recursive != nil:
			w.selectPlan(c.Recursive.Base)
			w.write(" UNION ALL ")
			w.selectPlan(c.Recursive.Step)
		default:
			w.fail("CTE %s has no body", c.Name)
		}
		w.write(")")
	}
	w.write(" ")
}

func (w *writer) selectPlan(p *queryir.Plan) {
	if p == nil {
		w.fail("cannot compile nil plan")
		return
	}
	if p.Kind != queryir.KindSelect {
		w.fail("%s plan used as a row source", p.Kind)
		return
	}
	w.with(p.CTEs)

	w.write("SELECT ")
	if p.Distinct {
		w.write("DISTINCT ")
	}
	if len(p.Projections) == 0 {
		w.write("1")
	}
	for i, proj := range p.Projections {
		if i > 0 {
			w.write(", ")
		}
		w.expr(proj.Expr, 0, false)
		w.write(" AS ", QuoteIdent(proj.Name))
	}

	if p.From != nil {
		w.write(" FROM ")
		w.binding(p.From)
		for _, j := range p.Joins {
			w.join(j)
		}
	}
	if p.Filter != nil {
		w.write(" WHERE ")
		w.expr(p.Filter, 0, false)
	}
	if len(p.GroupBy) > 0 {
		w.write(" GROUP BY ")
		for i, g := range p.GroupBy {
			if i > 0 {
				w.write(", ")
			}
			w.write(strconv.Itoa(g))
		}
	}
	if len(p.OrderBy) > 0 {
		w.write(" ORDER BY ")
		for i, o := range p.OrderBy {
			if i > 0 {
				w.write(", ")
			}
			if o.Ordinal > 0 {
				w.write(strconv.Itoa(o.Ordinal))
			} else {
				w.expr(o.Expr, 0, false)
			}
			if o.Descending {
				w.write(" DESC")
			}
		}
	}
	w.paging(p.Skip, p.Limit)
}

// paging renders LIMIT and OFFSET. SQLite has no OFFSET without LIMIT;
// LIMIT -1 means no limit.
func (w *writer) paging(skip, limit queryir.Expr) {
	switch {
	case limit != nil:
		w.write(" LIMIT ")
		w.expr(limit, 0, false)
	case skip != nil && w.dialect == SQLite:
		w.write(" LIMIT -1")
	}
	if skip != nil {
		w.write(" OFFSET ")
		w.expr(skip, 0, false)
	}
}

func (w *writer) binding(b *queryir.TableBinding) {
	w.write(QuoteIdent(b.Table), " AS ", QuoteIdent(b.Alias))
}

var joinKeywords = map[queryir.JoinKind]string{
	queryir.JoinInner: "INNER JOIN",
	queryir.JoinLeft:  "LEFT JOIN",
	queryir.JoinCross: "CROSS JOIN",
}

func (w *writer) join(j *queryir.Join) {
	kw, ok := joinKeywords[j.Kind]
	if !ok {
		w.fail("unknown join kind %q", j.Kind)
		return
	}
	w.write(" ", kw, " ")
	if len(j.Nested) > 0 {
		w.write("(")
		w.binding(j.Binding)
		for _, n := range j.Nested {
			w.join(n)
		}
		w.write(")")
	} else {
		w.binding(j.Binding)
	}
	if j.Kind != queryir.JoinCross {
		w.write(" ON ")
		w.expr(j.On, 0, false)
	}
}

func (w *writer) insert(p *queryir.Plan) {
	ins := p.Insert
	if ins == nil {
		w.fail("insert plan without a target")
		return
	}
	w.with(p.CTEs)
	w.write("INSERT INTO ", QuoteIdent(ins.Table))
	if len(ins.Columns) == 0 {
		if ins.Select != nil {
			w.fail("insert into %s selects no columns", ins.Table)
			return
		}
		w.write(" DEFAULT VALUES")
		return
	}

	w.write(" (")
	for i, c := range ins.Columns {
		if i > 0 {
			w.write(", ")
		}
		w.write(QuoteIdent(c))
	}
	w.write(")")

	if ins.Select != nil {
		w.write(" ")
		w.selectPlan(ins.Select)
		return
	}
	w.write(" VALUES (")
	for i, v := range ins.Values {
		if i > 0 {
			w.write(", ")
		}
		w.expr(v, 0, false)
	}
	w.write(")")
}

func (w *writer) update(p *queryir.Plan) {
	u := p.Update
	if u == nil {
		w.fail("update plan without a target")
		return
	}
	w.with(p.CTEs)
	w.write("UPDATE ", QuoteIdent(u.Table), " SET ")
	for i, s := range u.Sets {
		if i > 0 {
			w.write(", ")
		}
		w.write(QuoteIdent(s.Column), " = ")
		w.expr(s.Value, 0, false)
	}
	if u.Filter != nil {
		w.write(" WHERE ")
		w.expr(u.Filter, 0, false)
	}
}

func (w *writer) delete(p *queryir.Plan) {
	d := p.Delete
	if d == nil {
		w.fail("delete plan without a target")
		return
	}
	w.with(p.CTEs)
	w.write("DELETE FROM ", QuoteIdent(d.Table))
	if d.Filter != nil {
		w.write(" WHERE ")
		w.expr(d.Filter, 0, false)
	}
}
