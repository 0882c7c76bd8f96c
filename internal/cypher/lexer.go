package cypher

import (
	"iter"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/P-wig/cyphersql/internal/diag"
)

// Lexer produces tokens from query text on demand.
//
// Whitespace and comments are skipped; every token records the exact span it
// was read from. After the end of input Next keeps returning EOF, and after a
// failure it keeps returning the same error. Reset rewinds to the beginning.
type Lexer struct {
	src  string
	off  int
	line int
	col  int
	err  error
}

// NewLexer returns a lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	l := &Lexer{src: src}
	l.Reset()
	return l
}

// Reset rewinds the lexer to the start of its input.
func (l *Lexer) Reset() {
	l.off = 0
	l.line = 1
	l.col = 1
	l.err = nil
}

// Tokens returns the token sequence of src, excluding the final EOF.
// Each range over the sequence lexes src again from the start. A lexical
// error is yielded once with a zero Token and ends the sequence.
func Tokens(src string) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		l := NewLexer(src)
		for {
			tok, err := l.Next()
			if err != nil {
				yield(Token{}, err)
				return
			}
			if tok.Kind == EOF {
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
	}
}

// Tokenize lexes all of src. The returned slice always ends with EOF.
func Tokenize(src string) ([]Token, error) {
	var toks []Token
	for tok, err := range Tokens(src) {
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
	end := NewLexer(src).endPos()
	return append(toks, Token{Kind: EOF, Span: diag.At(end)}), nil
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	if l.err != nil {
		return Token{}, l.err
	}
	if err := l.skipTrivia(); err != nil {
		l.err = err
		return Token{}, err
	}
	start := l.pos()
	if l.off >= len(l.src) {
		return Token{Kind: EOF, Span: diag.At(start)}, nil
	}

	tok, err := l.scan(start)
	if err != nil {
		l.err = err
		return Token{}, err
	}
	tok.Span = diag.Span{Start: start, End: l.pos()}
	tok.Text = l.src[start.Offset:l.off]
	return tok, nil
}

func (l *Lexer) scan(start diag.Pos) (Token, error) {
	r := l.peek()
	switch {
	case r == '_' || unicode.IsLetter(r):
		word := l.readWhile(isIdentPart)
		if kw, ok := lookupKeyword(word); ok {
			return Token{Kind: Keyword, Value: kw}, nil
		}
		return Token{Kind: Ident, Value: norm.NFC.String(word)}, nil
	case r >= '0' && r <= '9':
		return l.scanNumber(start)
	case r == '\'' || r == '"':
		return l.scanString(start)
	case r == '`':
		return l.scanQuotedIdent(start)
	case r == '$':
		l.advance()
		name := l.readWhile(isIdentPart)
		if name == "" {
			return Token{}, diag.Lex(start, "expected parameter name after '$'")
		}
		return Token{Kind: Param, Value: norm.NFC.String(name)}, nil
	}

	l.advance()
	switch r {
	case '(':
		return Token{Kind: LParen}, nil
	case ')':
		return Token{Kind: RParen}, nil
	case '[':
		return Token{Kind: LBracket}, nil
	case ']':
		return Token{Kind: RBracket}, nil
	case '{':
		return Token{Kind: LBrace}, nil
	case '}':
		return Token{Kind: RBrace}, nil
	case ':':
		return Token{Kind: Colon}, nil
	case ',':
		return Token{Kind: Comma}, nil
	case '|':
		return Token{Kind: Pipe}, nil
	case ';':
		return Token{Kind: Semi}, nil
	case '+':
		return Token{Kind: Plus}, nil
	case '*':
		return Token{Kind: Star}, nil
	case '/':
		return Token{Kind: Slash}, nil
	case '%':
		return Token{Kind: Percent}, nil
	case '^':
		return Token{Kind: Caret}, nil
	case '.':
		if l.accept('.') {
			return Token{Kind: DotDot}, nil
		}
		return Token{Kind: Dot}, nil
	case '=':
		if l.accept('~') {
			return Token{Kind: RegexEq}, nil
		}
		return Token{Kind: Eq}, nil
	case '!':
		if l.accept('=') {
			return Token{Kind: Neq}, nil
		}
	case '<':
		switch {
		case l.accept('='):
			return Token{Kind: Lte}, nil
		case l.accept('>'):
			return Token{Kind: Neq}, nil
		case l.accept('-'):
			return Token{Kind: ArrowLeft}, nil
		}
		return Token{Kind: Lt}, nil
	case '>':
		if l.accept('=') {
			return Token{Kind: Gte}, nil
		}
		return Token{Kind: Gt}, nil
	case '-':
		switch {
		case l.accept('>'):
			return Token{Kind: ArrowRight}, nil
		case l.accept('-'):
			return Token{Kind: DoubleDash}, nil
		}
		return Token{Kind: Dash}, nil
	}
	return Token{}, diag.Lex(start, "unexpected character %q", r)
}

func (l *Lexer) scanNumber(start diag.Pos) (Token, error) {
	l.readWhile(isDigit)
	kind := Int
	// "1..5" is a range: only treat '.' as a decimal point before a digit.
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		l.advance()
		l.readWhile(isDigit)
		kind = Float
	}
	if r := l.peek(); r == 'e' || r == 'E' {
		next := l.peekAt(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekAt(2))) {
			l.advance()
			if next == '+' || next == '-' {
				l.advance()
			}
			l.readWhile(isDigit)
			kind = Float
		}
	}
	if r := l.peek(); r == '_' || unicode.IsLetter(r) {
		return Token{}, diag.Lex(l.pos(), "unexpected character %q in number", r)
	}
	text := l.src[start.Offset:l.off]
	if kind == Int {
		if _, err := strconv.ParseInt(text, 10, 64); err != nil {
			return Token{}, diag.Lex(start, "integer literal %s out of range", text)
		}
	}
	return Token{Kind: kind, Value: text}, nil
}

func (l *Lexer) scanString(start diag.Pos) (Token, error) {
	quote := l.advance()
	var b strings.Builder
	for {
		if l.off >= len(l.src) {
			return Token{}, diag.Lex(start, "unterminated string literal")
		}
		escPos := l.pos()
		r := l.advance()
		if r == quote {
			return Token{Kind: String, Value: b.String()}, nil
		}
		if r != '\\' {
			b.WriteRune(r)
			continue
		}
		if l.off >= len(l.src) {
			return Token{}, diag.Lex(start, "unterminated string literal")
		}
		switch e := l.advance(); e {
		case '\\', '\'', '"':
			b.WriteRune(e)
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'u', 'U':
			if l.off+4 > len(l.src) {
				return Token{}, diag.Lex(escPos, "invalid unicode escape")
			}
			code, err := strconv.ParseUint(l.src[l.off:l.off+4], 16, 32)
			if err != nil {
				return Token{}, diag.Lex(escPos, "invalid unicode escape")
			}
			for range 4 {
				l.advance()
			}
			b.WriteRune(rune(code))
		default:
			return Token{}, diag.Lex(escPos, "invalid escape sequence \\%c", e)
		}
	}
}

func (l *Lexer) scanQuotedIdent(start diag.Pos) (Token, error) {
	l.advance()
	var b strings.Builder
	for {
		if l.off >= len(l.src) {
			return Token{}, diag.Lex(start, "unterminated quoted identifier")
		}
		r := l.advance()
		if r == '`' {
			if l.accept('`') {
				b.WriteRune('`')
				continue
			}
			break
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return Token{}, diag.Lex(start, "empty quoted identifier")
	}
	return Token{Kind: Ident, Value: norm.NFC.String(b.String())}, nil
}

func (l *Lexer) skipTrivia() error {
	for l.off < len(l.src) {
		r := l.peek()
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '/' && l.peekAt(1) == '/':
			for l.off < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case r == '/' && l.peekAt(1) == '*':
			start := l.pos()
			l.advance()
			l.advance()
			for {
				if l.off >= len(l.src) {
					return diag.Lex(start, "unterminated block comment")
				}
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) pos() diag.Pos {
	return diag.Pos{Offset: l.off, Line: l.line, Column: l.col}
}

// endPos walks to the end of input to compute its line and column.
func (l *Lexer) endPos() diag.Pos {
	line, col := 1, 1
	for _, r := range l.src {
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return diag.Pos{Offset: len(l.src), Line: line, Column: col}
}

func (l *Lexer) peek() rune {
	return l.peekAt(0)
}

// peekAt returns the rune n runes ahead, or 0 past the end.
func (l *Lexer) peekAt(n int) rune {
	off := l.off
	for ; n > 0; n-- {
		if off >= len(l.src) {
			return 0
		}
		_, size := utf8.DecodeRuneInString(l.src[off:])
		off += size
	}
	if off >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[off:])
	return r
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.off:])
	l.off += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) accept(r rune) bool {
	if l.off < len(l.src) && l.peek() == r {
		l.advance()
		return true
	}
	return false
}

func (l *Lexer) readWhile(pred func(rune) bool) string {
	start := l.off
	for l.off < len(l.src) && pred(l.peek()) {
		l.advance()
	}
	return l.src[start:l.off]
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
