package cypher

import (
	"strconv"

	"github.com/P-wig/cyphersql/internal/diag"
)

func (p *parser) parsePatternList() ([]*PathPattern, error) {
	var patterns []*PathPattern
	for {
		pattern, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pattern)
		if !p.accept(Comma) {
			return patterns, nil
		}
	}
}

func (p *parser) parsePattern() (*PathPattern, error) {
	start := p.cur()
	if start.Kind == Ident && p.peek(1).Kind == Eq {
		return nil, p.unsupported("path variable", start)
	}
	if start.Kind == Ident && p.peek(1).Kind == LParen {
		switch start.Value {
		case "shortestPath", "allShortestPaths":
			return nil, p.unsupported(start.Value, start)
		}
	}

	node, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	path := &PathPattern{Nodes: []*NodePattern{node}}
	for p.atRelationshipStart() {
		rel, err := p.parseRelationship()
		if err != nil {
			return nil, err
		}
		node, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		path.Rels = append(path.Rels, rel)
		path.Nodes = append(path.Nodes, node)
	}
	path.Loc = p.spanFrom(start)
	return path, nil
}

func (p *parser) atRelationshipStart() bool {
	switch p.cur().Kind {
	case Dash, DoubleDash, ArrowLeft:
		return true
	}
	return false
}

func (p *parser) parseNode() (*NodePattern, error) {
	open, err := p.expect(LParen)
	if err != nil {
		return nil, err
	}
	n := &NodePattern{}
	if p.at(Ident) {
		n.Variable = p.next().Value
	}
	for p.accept(Colon) {
		label, err := p.name("label")
		if err != nil {
			return nil, err
		}
		n.Labels = append(n.Labels, label)
	}
	if p.at(Param) {
		return nil, p.unsupported("parameter as property map", p.cur())
	}
	expected := []string{"':'", "'{'"}
	if p.at(LBrace) {
		if n.Properties, err = p.parseMap(); err != nil {
			return nil, err
		}
		expected = nil
	}
	if _, err := p.expectClose(RParen, open, expected...); err != nil {
		return nil, err
	}
	n.Loc = p.spanFrom(open)
	return n, nil
}

// parseRelationship parses the connector between two node patterns:
//
//	-[detail]->   <-[detail]-   -[detail]-   <-[detail]->
//	-->           <--           --           <-->
func (p *parser) parseRelationship() (*RelationshipPattern, error) {
	start := p.next()
	r := &RelationshipPattern{}

	if start.Kind == DoubleDash {
		r.Direction = DirBoth
		if p.accept(Gt) {
			r.Direction = DirRight
		}
		r.Loc = p.spanFrom(start)
		return r, nil
	}

	leftArrow := start.Kind == ArrowLeft
	if p.at(LBracket) {
		if err := p.parseRelationshipDetail(r); err != nil {
			return nil, err
		}
	}

	switch {
	case p.accept(ArrowRight):
		r.Direction = DirRight
		if leftArrow {
			r.Direction = DirBoth
		}
	case p.accept(Dash):
		r.Direction = DirBoth
		if leftArrow {
			r.Direction = DirLeft
		}
	default:
		return nil, p.errorf("'-'", "'->'")
	}
	r.Loc = p.spanFrom(start)
	return r, nil
}

func (p *parser) parseRelationshipDetail(r *RelationshipPattern) error {
	open := p.next()
	if p.at(Ident) {
		r.Variable = p.next().Value
	}
	if p.accept(Colon) {
		for {
			typ, err := p.name("relationship type")
			if err != nil {
				return err
			}
			r.Types = append(r.Types, typ)
			if !p.accept(Pipe) {
				break
			}
			p.accept(Colon)
		}
	}
	if p.at(Star) {
		hops, err := p.parseHopRange()
		if err != nil {
			return err
		}
		r.Hops = hops
	}
	if p.at(Param) {
		return p.unsupported("parameter as property map", p.cur())
	}
	var expected []string
	if p.at(LBrace) {
		props, err := p.parseMap()
		if err != nil {
			return err
		}
		r.Properties = props
	} else {
		expected = append(expected, "'{'")
		if r.Hops == nil {
			expected = append(expected, "'*'")
		}
	}
	_, err := p.expectClose(RBracket, open, expected...)
	return err
}

func (p *parser) parseHopRange() (*HopRange, error) {
	star := p.next()
	h := &HopRange{}
	if p.at(Int) {
		n, err := p.parseHopBound()
		if err != nil {
			return nil, err
		}
		h.Lower, h.HasLower = n, true
	}
	if p.accept(DotDot) {
		h.IsRange = true
		if p.at(Int) {
			n, err := p.parseHopBound()
			if err != nil {
				return nil, err
			}
			h.Upper, h.HasUpper = n, true
		}
	}
	h.Loc = p.spanFrom(star)
	return h, nil
}

func (p *parser) parseHopBound() (int, error) {
	tok := p.next()
	n, err := strconv.Atoi(tok.Value)
	if err != nil || n < 0 {
		return 0, diag.Parse(tok.Span, []string{"hop count"}, tok.describe())
	}
	return n, nil
}

func (p *parser) parseMap() (*MapLiteral, error) {
	open := p.next()
	m := &MapLiteral{}
	if !p.at(RBrace) {
		for {
			key, err := p.name("property name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(Colon); err != nil {
				return nil, err
			}
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			m.Keys = append(m.Keys, key)
			m.Values = append(m.Values, value)
			if !p.accept(Comma) {
				break
			}
		}
	}
	if _, err := p.expectClose(RBrace, open, "','"); err != nil {
		return nil, err
	}
	m.Loc = p.spanFrom(open)
	return m, nil
}
