package cypher

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// String renders the statement as canonical Cypher. Parsing the result
// yields an equivalent statement.
func (s *Statement) String() string {
	parts := make([]string, len(s.Clauses))
	for i, c := range s.Clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func (c *MatchClause) String() string {
	var b strings.Builder
	if c.Optional {
		b.WriteString("OPTIONAL ")
	}
	b.WriteString("MATCH ")
	b.WriteString(joinNodes(c.Patterns))
	if c.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(c.Where.String())
	}
	return b.String()
}

func (c *ReturnClause) String() string {
	var b strings.Builder
	b.WriteString("RETURN ")
	if c.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(joinNodes(c.Items))
	if len(c.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(joinNodes(c.OrderBy))
	}
	if c.Skip != nil {
		b.WriteString(" SKIP ")
		b.WriteString(c.Skip.String())
	}
	if c.Limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(c.Limit.String())
	}
	return b.String()
}

func (i *ReturnItem) String() string {
	if i.Alias == "" {
		return i.Expr.String()
	}
	return i.Expr.String() + " AS " + quoteName(i.Alias)
}

func (i *SortItem) String() string {
	if i.Descending {
		return i.Expr.String() + " DESC"
	}
	return i.Expr.String()
}

func (c *CreateClause) String() string {
	return "CREATE " + joinNodes(c.Patterns)
}

func (c *MergeClause) String() string {
	var b strings.Builder
	b.WriteString("MERGE ")
	b.WriteString(c.Pattern.String())
	if len(c.OnCreate) > 0 {
		b.WriteString(" ON CREATE SET ")
		b.WriteString(joinNodes(c.OnCreate))
	}
	if len(c.OnMatch) > 0 {
		b.WriteString(" ON MATCH SET ")
		b.WriteString(joinNodes(c.OnMatch))
	}
	return b.String()
}

func (c *SetClause) String() string {
	return "SET " + joinNodes(c.Items)
}

func (i *SetItem) String() string {
	return i.Target.String() + " = " + i.Value.String()
}

func (c *DeleteClause) String() string {
	prefix := "DELETE "
	if c.Detach {
		prefix = "DETACH DELETE "
	}
	return prefix + joinNodes(c.Targets)
}

func (p *PathPattern) String() string {
	var b strings.Builder
	for _, el := range p.Elements() {
		b.WriteString(el.String())
	}
	return b.String()
}

func (n *NodePattern) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(quoteNameOpt(n.Variable))
	for _, l := range n.Labels {
		b.WriteByte(':')
		b.WriteString(quoteName(l))
	}
	if n.Properties != nil {
		if n.Variable != "" || len(n.Labels) > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(n.Properties.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (r *RelationshipPattern) String() string {
	var detail strings.Builder
	detail.WriteString(quoteNameOpt(r.Variable))
	for i, t := range r.Types {
		if i == 0 {
			detail.WriteByte(':')
		} else {
			detail.WriteByte('|')
		}
		detail.WriteString(quoteName(t))
	}
	if r.Hops != nil {
		detail.WriteString(r.Hops.String())
	}
	if r.Properties != nil {
		if detail.Len() > 0 {
			detail.WriteByte(' ')
		}
		detail.WriteString(r.Properties.String())
	}

	body := "--"
	if detail.Len() > 0 {
		body = "-[" + detail.String() + "]-"
	}
	switch r.Direction {
	case DirRight:
		return body + ">"
	case DirLeft:
		return "<" + body
	default:
		return body
	}
}

func (h *HopRange) String() string {
	var b strings.Builder
	b.WriteByte('*')
	if h.HasLower {
		b.WriteString(strconv.Itoa(h.Lower))
	}
	if h.IsRange {
		b.WriteString("..")
		if h.HasUpper {
			b.WriteString(strconv.Itoa(h.Upper))
		}
	}
	return b.String()
}

func (e *IntLiteral) String() string {
	return strconv.FormatInt(e.Value, 10)
}

func (e *FloatLiteral) String() string {
	s := strconv.FormatFloat(e.Value, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func (e *StringLiteral) String() string {
	return quoteString(e.Value)
}

func (e *BoolLiteral) String() string {
	if e.Value {
		return "true"
	}
	return "false"
}

func (e *NullLiteral) String() string { return "null" }

func (e *Parameter) String() string { return "$" + e.Name }

func (e *Variable) String() string { return quoteName(e.Name) }

func (e *PropertyAccess) String() string {
	return wrap(e.Subject, precAtom) + "." + quoteName(e.Key)
}

func (e *FunctionCall) String() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteByte('(')
	if e.Star {
		b.WriteByte('*')
	} else {
		if e.Distinct {
			b.WriteString("DISTINCT ")
		}
		b.WriteString(joinNodes(e.Args))
	}
	b.WriteByte(')')
	return b.String()
}

func (e *BinaryExpr) String() string {
	prec := binaryPrec[e.Op]
	// Operators are left-associative: a right operand at the same level
	// needs parentheses.
	return wrap(e.Left, prec) + " " + e.Op.String() + " " + wrap(e.Right, prec+1)
}

func (e *UnaryExpr) String() string {
	switch e.Op {
	case OpNot:
		return "NOT " + wrap(e.Operand, precNot)
	case OpNeg:
		if _, nested := e.Operand.(*UnaryExpr); nested {
			return "-(" + e.Operand.String() + ")"
		}
		return "-" + wrap(e.Operand, precUnary)
	default:
		if _, nested := e.Operand.(*UnaryExpr); nested {
			return "+(" + e.Operand.String() + ")"
		}
		return "+" + wrap(e.Operand, precUnary)
	}
}

func (e *IsNullExpr) String() string {
	if e.Negated {
		return wrap(e.Operand, precAdd) + " IS NOT NULL"
	}
	return wrap(e.Operand, precAdd) + " IS NULL"
}

func (e *ListLiteral) String() string {
	return "[" + joinNodes(e.Items) + "]"
}

func (e *MapLiteral) String() string {
	parts := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		parts[i] = quoteName(k) + ": " + e.Values[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (e *PatternExpr) String() string { return e.Pattern.String() }

// precedence returns the binding strength of e as printed.
func precedence(e Expr) int {
	switch x := e.(type) {
	case *BinaryExpr:
		return binaryPrec[x.Op]
	case *UnaryExpr:
		if x.Op == OpNot {
			return precNot
		}
		return precUnary
	case *IsNullExpr:
		return precPredicate
	default:
		return precAtom
	}
}

// wrap parenthesizes e when it binds looser than min.
func wrap(e Expr, min int) string {
	if precedence(e) < min {
		return "(" + e.String() + ")"
	}
	return e.String()
}

func joinNodes[T Node](nodes []T) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

func quoteNameOpt(name string) string {
	if name == "" {
		return ""
	}
	return quoteName(name)
}

// quoteName backtick-quotes names that would not lex back as an identifier.
func quoteName(name string) string {
	if isPlainName(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func isPlainName(name string) bool {
	if name == "" {
		return false
	}
	if _, kw := lookupKeyword(name); kw {
		return false
	}
	for i, r := range name {
		if i == 0 && !(r == '_' || unicode.IsLetter(r)) {
			return false
		}
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
