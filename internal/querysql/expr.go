package querysql

import (
	"strconv"

	"github.com/P-wig/cyphersql/internal/ir"
	"github.com/P-wig/cyphersql/internal/queryir"
)

// Operator precedence, loosest first. Children binding looser than their
// parent are parenthesized.
const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precConcat
	precAdd
	precMul
	precNeg
	precAtom
)

var binaryPrec = map[string]int{
	"OR":  precOr,
	"AND": precAnd,
	"=":   precCompare,
	"<>":  precCompare,
	"<":   precCompare,
	">":   precCompare,
	"<=":  precCompare,
	">=":  precCompare,
	"||":  precConcat,
	"+":   precAdd,
	"-":   precAdd,
	"*":   precMul,
	"/":   precMul,
	"%":   precMul,
}

func (w *writer) precedence(e queryir.Expr) int {
	switch x := e.(type) {
	case *queryir.Binary:
		return binaryPrec[x.Op]
	case *queryir.Unary:
		if x.Op == "NOT" {
			return precNot
		}
		return precNeg
	case *queryir.Exists:
		if x.Negated {
			return precNot
		}
		return precAtom
	case *queryir.StringMatch:
		if x.Match == queryir.MatchSuffix && w.dialect == SQLite {
			return precAnd
		}
		return precCompare
	case *queryir.IsNull, *queryir.In, *queryir.InSelect:
		return precCompare
	}
	return precAtom
}

// expr writes e as the operand of an operator of precedence parent; right
// marks the right operand. Comparisons do not chain: an equal-precedence
// comparison operand is always parenthesized.
func (w *writer) expr(e queryir.Expr, parent int, right bool) {
	if e == nil {
		w.fail("missing expression")
		return
	}
	p := w.precedence(e)
	paren := p < parent || (p == parent && (right || p == precCompare))
	if paren {
		w.write("(")
		defer w.write(")")
	}

	switch x := e.(type) {
	case *queryir.Column:
		if x.Alias != "" {
			w.write(QuoteIdent(x.Alias), ".")
		}
		w.write(QuoteIdent(x.Name))

	case *queryir.Literal:
		if _, ok := x.Value.(ir.List); ok {
			w.fail("list literal outside of IN")
			return
		}
		w.bind(Param{Value: x.Value.Any()})

	case *queryir.Param:
		w.bind(Param{Name: x.Name, List: x.List})

	case *queryir.Null:
		w.write("NULL")

	case *queryir.Number:
		w.write(strconv.Itoa(x.Value))

	case *queryir.Binary:
		prec, ok := binaryPrec[x.Op]
		if !ok {
			w.fail("unknown operator %q", x.Op)
			return
		}
		w.operand(x.Left, x.Op, prec, false)
		w.write(" ", x.Op, " ")
		w.operand(x.Right, x.Op, prec, true)

	case *queryir.Unary:
		switch x.Op {
		case "NOT":
			w.write("NOT ")
		case "-":
			w.write("-")
		default:
			w.fail("unknown unary operator %q", x.Op)
			return
		}
		w.expr(x.Operand, p, true)

	case *queryir.Func:
		w.write(x.Name, "(")
		if x.Star {
			w.write("*")
		}
		if x.Distinct {
			w.write("DISTINCT ")
		}
		for i, arg := range x.Args {
			if i > 0 {
				w.write(", ")
			}
			w.expr(arg, 0, false)
		}
		w.write(")")

	case *queryir.StringMatch:
		w.stringMatch(x)

	case *queryir.IsNull:
		w.expr(x.Operand, precCompare, true)
		if x.Negated {
			w.write(" IS NOT NULL")
		} else {
			w.write(" IS NULL")
		}

	case *queryir.In:
		w.in(x)

	case *queryir.InSelect:
		w.expr(x.Operand, precCompare, true)
		w.write(" IN (")
		w.selectPlan(x.Plan)
		w.write(")")

	case *queryir.Exists:
		if x.Negated {
			w.write("NOT ")
		}
		w.write("EXISTS (")
		w.selectPlan(x.Plan)
		w.write(")")

	case *queryir.Case:
		w.write("CASE ")
		w.expr(x.Operand, 0, false)
		for _, when := range x.Whens {
			w.write(" WHEN ")
			w.expr(when.Value, 0, false)
			w.write(" THEN ")
			w.expr(when.Result, 0, false)
		}
		w.write(" END")

	default:
		w.fail("unsupported expression %T", e)
	}
}

// operand writes one side of a binary operator. String concatenation binds
// tighter than arithmetic in sqlite and looser in postgres, so mixing the
// two is always parenthesized.
func (w *writer) operand(e queryir.Expr, op string, prec int, right bool) {
	if b, ok := e.(*queryir.Binary); ok && op == "||" && b.Op != "||" {
		w.write("(")
		w.expr(e, 0, false)
		w.write(")")
		return
	}
	w.expr(e, prec, right)
}

func (w *writer) in(x *queryir.In) {
	if x.Param != nil {
		w.expr(x.Operand, precCompare, true)
		if w.dialect == Postgres {
			w.write(" = ANY(")
			w.bind(Param{Name: x.Param.Name, List: true})
			w.write(")")
			return
		}
		w.write(" IN (SELECT value FROM json_each(")
		w.bind(Param{Name: x.Param.Name, List: true})
		w.write("))")
		return
	}
	if len(x.List) == 0 {
		w.write("1 = 0")
		return
	}
	w.expr(x.Operand, precCompare, true)
	w.write(" IN (")
	for i, item := range x.List {
		if i > 0 {
			w.write(", ")
		}
		w.expr(item, 0, false)
	}
	w.write(")")
}

// stringMatch renders STARTS WITH, ENDS WITH and CONTAINS with plain
// string functions. Operands are written once per use so positional
// parameters stay in text order.
func (w *writer) stringMatch(x *queryir.StringMatch) {
	s := func() { w.expr(x.Subject, 0, false) }
	p := func() { w.expr(x.Pattern, 0, false) }
	pattern := func() { w.expr(x.Pattern, precCompare, true) }

	switch {
	case x.Match == queryir.MatchPrefix && w.dialect == Postgres:
		w.write("starts_with(")
		s()
		w.write(", ")
		p()
		w.write(")")
	case x.Match == queryir.MatchPrefix:
		w.write("substr(")
		s()
		w.write(", 1, length(")
		p()
		w.write(")) = ")
		pattern()
	case x.Match == queryir.MatchSuffix && w.dialect == Postgres:
		w.write("right(")
		s()
		w.write(", length(")
		p()
		w.write(")) = ")
		pattern()
	case x.Match == queryir.MatchSuffix:
		w.write("length(")
		s()
		w.write(") >= length(")
		p()
		w.write(") AND substr(")
		s()
		w.write(", length(")
		s()
		w.write(") - length(")
		p()
		w.write(") + 1) = ")
		pattern()
	case x.Match == queryir.MatchContains:
		if w.dialect == Postgres {
			w.write("strpos(")
		} else {
			w.write("instr(")
		}
		s()
		w.write(", ")
		p()
		w.write(") > 0")
	default:
		w.fail("unknown string match %q", x.Match)
	}
}
