package cypher

import (
	"math"
	"strconv"

	"github.com/P-wig/cyphersql/internal/diag"
)

// Binding strength of expression levels, loosest first. Printing uses the
// same table to decide where parentheses are needed.
const (
	precOr = iota + 1
	precXor
	precAnd
	precNot
	precCompare
	precPredicate
	precAdd
	precMul
	precUnary
	precAtom
)

var binaryPrec = map[BinaryOp]int{
	OpOr:         precOr,
	OpXor:        precXor,
	OpAnd:        precAnd,
	OpEq:         precCompare,
	OpNeq:        precCompare,
	OpLt:         precCompare,
	OpGt:         precCompare,
	OpLte:        precCompare,
	OpGte:        precCompare,
	OpIn:         precPredicate,
	OpStartsWith: precPredicate,
	OpEndsWith:   precPredicate,
	OpContains:   precPredicate,
	OpAdd:        precAdd,
	OpSub:        precAdd,
	OpMul:        precMul,
	OpDiv:        precMul,
	OpMod:        precMul,
}

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) binary(op BinaryOp, left, right Expr) Expr {
	return &BinaryExpr{Op: op, Left: left, Right: right, Loc: diag.Join(left.Span(), right.Span())}
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}
		left = p.binary(OpOr, left, right)
	}
	return left, nil
}

func (p *parser) parseXor() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("XOR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = p.binary(OpXor, left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = p.binary(OpAnd, left, right)
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.atKeyword("NOT") {
		start := p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNot, Operand: operand, Loc: p.spanFrom(start)}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[TokenKind]BinaryOp{
	Eq:  OpEq,
	Neq: OpNeq,
	Lt:  OpLt,
	Gt:  OpGt,
	Lte: OpLte,
	Gte: OpGte,
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parsePredicate()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.cur()
		if tok.Kind == RegexEq {
			return nil, p.unsupported("regular expression match", tok)
		}
		// "a<-1" lexes as a '<-' marker; read it as '<' followed by a negation.
		if tok.Kind == ArrowLeft {
			p.next()
			operand, err := p.parsePredicate()
			if err != nil {
				return nil, err
			}
			neg := &UnaryExpr{Op: OpNeg, Operand: operand, Loc: diag.Join(tok.Span, operand.Span())}
			left = p.binary(OpLt, left, neg)
			continue
		}
		op, ok := comparisonOps[tok.Kind]
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		left = p.binary(op, left, right)
	}
}

// parsePredicate handles the postfix string, list and null predicates.
func (p *parser) parsePredicate() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch {
		case p.atKeyword("IS"):
			p.next()
			negated := p.acceptKeyword("NOT")
			if _, err := p.expectKeyword("NULL"); err != nil {
				return nil, err
			}
			left = &IsNullExpr{Operand: left, Negated: negated, Loc: diag.Join(left.Span(), p.prev().Span)}
			continue
		case p.atKeyword("IN"):
			op = OpIn
		case p.atKeyword("STARTS"):
			p.next()
			if !p.atKeyword("WITH") {
				return nil, p.errorf("WITH")
			}
			op = OpStartsWith
		case p.atKeyword("ENDS"):
			p.next()
			if !p.atKeyword("WITH") {
				return nil, p.errorf("WITH")
			}
			op = OpEndsWith
		case p.atKeyword("CONTAINS"):
			op = OpContains
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = p.binary(op, left, right)
	}
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch p.cur().Kind {
		case Plus:
			op = OpAdd
		case Dash:
			op = OpSub
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = p.binary(op, left, right)
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch p.cur().Kind {
		case Star:
			op = OpMul
		case Slash:
			op = OpDiv
		case Percent:
			op = OpMod
		case Caret:
			return nil, p.unsupported("exponentiation", p.cur())
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = p.binary(op, left, right)
	}
}

func (p *parser) parseUnary() (Expr, error) {
	var op UnaryOp
	switch p.cur().Kind {
	case Dash:
		op = OpNeg
	case Plus:
		op = OpPos
	default:
		return p.parsePostfix()
	}
	start := p.next()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &UnaryExpr{Op: op, Operand: operand, Loc: p.spanFrom(start)}, nil
}

func (p *parser) parsePostfix() (Expr, error) {
	expr, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(Dot):
			p.next()
			key, err := p.name("property name")
			if err != nil {
				return nil, err
			}
			expr = &PropertyAccess{Subject: expr, Key: key, Loc: diag.Join(expr.Span(), p.prev().Span)}
		case p.at(LBracket):
			return nil, p.unsupported("list indexing", p.cur())
		case p.at(Colon):
			return nil, p.unsupported("label predicate", p.cur())
		default:
			return expr, nil
		}
	}
}

func (p *parser) parseAtom() (Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case Int:
		p.next()
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, diag.Parse(tok.Span, []string{"integer"}, tok.describe())
		}
		return &IntLiteral{Value: n, Loc: tok.Span}, nil
	case Float:
		p.next()
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil || math.IsInf(f, 0) {
			return nil, diag.Parse(tok.Span, []string{"finite float"}, tok.describe())
		}
		return &FloatLiteral{Value: f, Loc: tok.Span}, nil
	case String:
		p.next()
		return &StringLiteral{Value: tok.Value, Loc: tok.Span}, nil
	case Param:
		p.next()
		return &Parameter{Name: tok.Value, Loc: tok.Span}, nil
	case LBracket:
		return p.parseList()
	case LBrace:
		return nil, p.unsupported("map literal", tok)
	case LParen:
		if p.looksLikePattern() {
			pattern, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			return &PatternExpr{Pattern: pattern, Loc: pattern.Loc}, nil
		}
		open := p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectClose(RParen, open); err != nil {
			return nil, err
		}
		return inner, nil
	case Ident:
		if p.peek(1).Kind == LParen {
			return p.parseCall()
		}
		p.next()
		return &Variable{Name: tok.Value, Loc: tok.Span}, nil
	case Keyword:
		switch tok.Value {
		case "TRUE", "FALSE":
			p.next()
			return &BoolLiteral{Value: tok.Value == "TRUE", Loc: tok.Span}, nil
		case "NULL":
			p.next()
			return &NullLiteral{Loc: tok.Span}, nil
		case "CASE":
			return nil, p.unsupported("CASE expression", tok)
		case "ALL":
			return nil, p.unsupported("list predicate", tok)
		}
	}
	return nil, p.errorf("expression")
}

// looksLikePattern reports whether the '(' at the cursor opens a node
// pattern followed by a relationship, as in WHERE (a)-[:KNOWS]->(b).
func (p *parser) looksLikePattern() bool {
	save := p.pos
	defer func() { p.pos = save }()
	if _, err := p.parseNode(); err != nil {
		return false
	}
	return p.atRelationshipStart()
}

func (p *parser) parseCall() (Expr, error) {
	name := p.next()
	switch name.Value {
	case "shortestPath", "allShortestPaths":
		return nil, p.unsupported(name.Value, name)
	}
	open := p.next()
	call := &FunctionCall{Name: name.Value}
	if p.accept(Star) {
		call.Star = true
	} else if !p.at(RParen) {
		call.Distinct = p.acceptKeyword("DISTINCT")
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if !p.accept(Comma) {
				break
			}
		}
	}
	if _, err := p.expectClose(RParen, open, "','"); err != nil {
		return nil, err
	}
	call.Loc = p.spanFrom(name)
	return call, nil
}

func (p *parser) parseList() (Expr, error) {
	open := p.next()
	if p.at(Ident) && p.peek(1).Is("IN") {
		return nil, p.unsupported("list comprehension", open)
	}
	list := &ListLiteral{}
	if !p.at(RBracket) {
		for {
			item, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, item)
			if !p.accept(Comma) {
				break
			}
		}
	}
	if _, err := p.expectClose(RBracket, open, "','"); err != nil {
		return nil, err
	}
	list.Loc = p.spanFrom(open)
	return list, nil
}
