package cypher

import (
	"sort"

	"github.com/P-wig/cyphersql/internal/diag"
)

// Parse parses a single query.
//
// The result either is a complete Statement or the first error: a
// *diag.Error of category LexError, ParseError or UnsupportedConstruct.
func Parse(src string) (*Statement, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseStatement()
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) cur() Token {
	return p.toks[p.pos]
}

func (p *parser) peek(n int) Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() Token {
	tok := p.toks[p.pos]
	if tok.Kind != EOF {
		p.pos++
	}
	return tok
}

// prev returns the last consumed token.
func (p *parser) prev() Token {
	if p.pos == 0 {
		return p.toks[0]
	}
	return p.toks[p.pos-1]
}

func (p *parser) at(kind TokenKind) bool {
	return p.cur().Kind == kind
}

func (p *parser) atKeyword(kw string) bool {
	return p.cur().Is(kw)
}

func (p *parser) accept(kind TokenKind) bool {
	if p.at(kind) {
		p.next()
		return true
	}
	return false
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	if p.at(kind) {
		return p.next(), nil
	}
	return Token{}, p.errorf(kind.String())
}

func (p *parser) expectKeyword(kw string) (Token, error) {
	if p.atKeyword(kw) {
		return p.next(), nil
	}
	return Token{}, p.errorf(kw)
}

// expectClose consumes the delimiter closing open. When the input ends
// first, the error points just past the opening delimiter.
func (p *parser) expectClose(kind TokenKind, open Token, expected ...string) (Token, error) {
	if p.at(kind) {
		return p.next(), nil
	}
	expected = append(expected, kind.String())
	if p.at(EOF) {
		return Token{}, diag.Parse(diag.Span{Start: open.Span.End, End: p.cur().Span.End}, sortedSet(expected), "end of input")
	}
	return Token{}, p.errorf(expected...)
}

// errorf reports that the current token is not one of expected.
func (p *parser) errorf(expected ...string) *diag.Error {
	tok := p.cur()
	return diag.Parse(tok.Span, sortedSet(expected), tok.describe())
}

func (p *parser) unsupported(construct string, tok Token) *diag.Error {
	return diag.Unsupported(diag.StageParse, construct, tok.Span)
}

// spanFrom covers from start to the last consumed token.
func (p *parser) spanFrom(start Token) diag.Span {
	return diag.Span{Start: start.Span.Start, End: p.prev().Span.End}
}

// name accepts an identifier, or a keyword used as a name (labels,
// property keys, aliases).
func (p *parser) name(what string) (string, error) {
	tok := p.cur()
	switch tok.Kind {
	case Ident:
		p.next()
		return tok.Value, nil
	case Keyword:
		p.next()
		return tok.Text, nil
	}
	return "", p.errorf(what)
}

var unsupportedClauses = map[string]string{
	"WITH":    "WITH clause",
	"UNWIND":  "UNWIND clause",
	"UNION":   "UNION",
	"CALL":    "CALL procedure",
	"FOREACH": "FOREACH clause",
	"REMOVE":  "REMOVE clause",
	"LOAD":    "LOAD CSV",
}

var clauseStarts = []string{"CREATE", "DELETE", "DETACH", "MATCH", "MERGE", "OPTIONAL", "RETURN", "SET"}

func (p *parser) parseStatement() (*Statement, error) {
	stmt := &Statement{}
	start := p.cur()

	var sawUpdate, sawReturn bool
	for !p.at(EOF) && !p.at(Semi) {
		tok := p.cur()
		if construct, ok := unsupportedClauses[tok.Value]; ok && tok.Kind == Keyword {
			return nil, p.unsupported(construct, tok)
		}
		if sawReturn {
			return nil, p.errorf("end of input")
		}

		var clause Clause
		var err error
		switch {
		case tok.Is("MATCH"), tok.Is("OPTIONAL"):
			if sawUpdate {
				return nil, p.unsupported("MATCH after an updating clause", tok)
			}
			clause, err = p.parseMatch()
		case tok.Is("CREATE"), tok.Is("MERGE"), tok.Is("SET"), tok.Is("DELETE"), tok.Is("DETACH"):
			if sawUpdate {
				return nil, p.unsupported("multiple updating clauses", tok)
			}
			sawUpdate = true
			clause, err = p.parseUpdate()
		case tok.Is("RETURN"):
			if sawUpdate {
				return nil, p.unsupported("RETURN after an updating clause", tok)
			}
			sawReturn = true
			clause, err = p.parseReturn()
		default:
			return nil, p.errorf(clauseStarts...)
		}
		if err != nil {
			return nil, err
		}
		stmt.Clauses = append(stmt.Clauses, clause)
	}
	p.accept(Semi)
	if !p.at(EOF) {
		return nil, p.errorf("end of input")
	}
	if !sawUpdate && !sawReturn {
		return nil, p.errorf(clauseStarts...)
	}
	stmt.Loc = diag.Span{Start: start.Span.Start, End: p.prev().Span.End}
	return stmt, nil
}

func (p *parser) parseMatch() (*MatchClause, error) {
	start := p.cur()
	m := &MatchClause{Optional: p.acceptKeyword("OPTIONAL")}
	if _, err := p.expectKeyword("MATCH"); err != nil {
		return nil, err
	}
	patterns, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	m.Patterns = patterns
	if p.acceptKeyword("WHERE") {
		if m.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	m.Loc = p.spanFrom(start)
	return m, nil
}

func (p *parser) parseUpdate() (Clause, error) {
	start := p.cur()
	switch {
	case p.acceptKeyword("CREATE"):
		patterns, err := p.parsePatternList()
		if err != nil {
			return nil, err
		}
		return &CreateClause{Patterns: patterns, Loc: p.spanFrom(start)}, nil

	case p.acceptKeyword("MERGE"):
		pattern, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		m := &MergeClause{Pattern: pattern}
		for p.atKeyword("ON") {
			p.next()
			var target *[]*SetItem
			switch {
			case p.acceptKeyword("CREATE"):
				target = &m.OnCreate
			case p.acceptKeyword("MATCH"):
				target = &m.OnMatch
			default:
				return nil, p.errorf("CREATE", "MATCH")
			}
			if _, err := p.expectKeyword("SET"); err != nil {
				return nil, err
			}
			items, err := p.parseSetItems()
			if err != nil {
				return nil, err
			}
			*target = append(*target, items...)
		}
		m.Loc = p.spanFrom(start)
		return m, nil

	case p.acceptKeyword("SET"):
		items, err := p.parseSetItems()
		if err != nil {
			return nil, err
		}
		return &SetClause{Items: items, Loc: p.spanFrom(start)}, nil

	default:
		d := &DeleteClause{Detach: p.acceptKeyword("DETACH")}
		if _, err := p.expectKeyword("DELETE"); err != nil {
			return nil, err
		}
		for {
			target, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			d.Targets = append(d.Targets, target)
			if !p.accept(Comma) {
				break
			}
		}
		d.Loc = p.spanFrom(start)
		return d, nil
	}
}

func (p *parser) parseSetItems() ([]*SetItem, error) {
	var items []*SetItem
	for {
		start := p.cur()
		if start.Kind != Ident {
			return nil, p.errorf("identifier")
		}
		p.next()
		subject := &Variable{Name: start.Value, Loc: start.Span}
		switch {
		case p.at(Colon):
			return nil, p.unsupported("SET label", p.cur())
		case p.at(Eq), p.at(Plus):
			return nil, p.unsupported("SET of all properties", p.cur())
		}
		if _, err := p.expect(Dot); err != nil {
			return nil, err
		}
		key, err := p.name("property name")
		if err != nil {
			return nil, err
		}
		target := &PropertyAccess{Subject: subject, Key: key, Loc: p.spanFrom(start)}
		if _, err := p.expect(Eq); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, &SetItem{Target: target, Value: value, Loc: p.spanFrom(start)})
		if !p.accept(Comma) {
			return items, nil
		}
	}
}

func (p *parser) parseReturn() (*ReturnClause, error) {
	start := p.next()
	r := &ReturnClause{Distinct: p.acceptKeyword("DISTINCT")}
	if p.at(Star) {
		return nil, p.unsupported("RETURN *", p.cur())
	}
	for {
		itemStart := p.cur()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := &ReturnItem{Expr: expr}
		if p.acceptKeyword("AS") {
			if item.Alias, err = p.name("alias"); err != nil {
				return nil, err
			}
		}
		item.Loc = p.spanFrom(itemStart)
		r.Items = append(r.Items, item)
		if !p.accept(Comma) {
			break
		}
	}

	if p.acceptKeyword("ORDER") {
		if _, err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			itemStart := p.cur()
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := &SortItem{Expr: expr}
			switch {
			case p.acceptKeyword("DESC"), p.acceptKeyword("DESCENDING"):
				item.Descending = true
			case p.acceptKeyword("ASC"), p.acceptKeyword("ASCENDING"):
			}
			item.Loc = p.spanFrom(itemStart)
			r.OrderBy = append(r.OrderBy, item)
			if !p.accept(Comma) {
				break
			}
		}
	}

	var err error
	if p.acceptKeyword("SKIP") {
		if r.Skip, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if p.acceptKeyword("LIMIT") {
		if r.Limit, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	r.Loc = p.spanFrom(start)
	return r, nil
}

// sortedSet returns the deduplicated, sorted expected-token set.
func sortedSet(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	sort.Strings(out)
	return out
}
