package cypher

import (
	"fmt"
	"strings"

	"github.com/P-wig/cyphersql/internal/diag"
)

// TokenKind classifies a token.
type TokenKind int

const (
	EOF TokenKind = iota
	Ident
	Keyword
	Int
	Float
	String
	Param

	LParen   // (
	RParen   // )
	LBracket // [
	RBracket // ]
	LBrace   // {
	RBrace   // }
	Colon    // :
	Comma    // ,
	Dot      // .
	DotDot   // ..
	Pipe     // |
	Semi     // ;

	Eq      // =
	Neq     // <> or !=
	Lt      // <
	Gt      // >
	Lte     // <=
	Gte     // >=
	Plus    // +
	Dash    // -
	Star    // *
	Slash   // /
	Percent // %
	Caret   // ^
	RegexEq // =~

	ArrowRight // ->
	ArrowLeft  // <-
	DoubleDash // --
)

var tokenNames = map[TokenKind]string{
	EOF:        "end of input",
	Ident:      "identifier",
	Keyword:    "keyword",
	Int:        "integer",
	Float:      "float",
	String:     "string",
	Param:      "parameter",
	LParen:     "'('",
	RParen:     "')'",
	LBracket:   "'['",
	RBracket:   "']'",
	LBrace:     "'{'",
	RBrace:     "'}'",
	Colon:      "':'",
	Comma:      "','",
	Dot:        "'.'",
	DotDot:     "'..'",
	Pipe:       "'|'",
	Semi:       "';'",
	Eq:         "'='",
	Neq:        "'<>'",
	Lt:         "'<'",
	Gt:         "'>'",
	Lte:        "'<='",
	Gte:        "'>='",
	Plus:       "'+'",
	Dash:       "'-'",
	Star:       "'*'",
	Slash:      "'/'",
	Percent:    "'%'",
	Caret:      "'^'",
	RegexEq:    "'=~'",
	ArrowRight: "'->'",
	ArrowLeft:  "'<-'",
	DoubleDash: "'--'",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is a lexical unit of a query.
//
// Text is the raw source slice. Value is the decoded form: the unescaped
// contents of a string literal, the name of an identifier or parameter, or
// the upper-cased keyword.
type Token struct {
	Kind  TokenKind
	Text  string
	Value string
	Span  diag.Span
}

// Is reports whether t is the keyword kw (upper case).
func (t Token) Is(kw string) bool {
	return t.Kind == Keyword && t.Value == kw
}

// describe renders the token for parse error messages.
func (t Token) describe() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case Keyword:
		return t.Value
	case Ident:
		return fmt.Sprintf("identifier %q", t.Value)
	case String:
		return fmt.Sprintf("string %q", t.Value)
	case Int, Float:
		return "number " + t.Text
	case Param:
		return "parameter $" + t.Value
	default:
		return t.Kind.String()
	}
}

// keywords recognised case-insensitively. Anything else lexes as Ident.
var keywords = map[string]bool{
	"MATCH": true, "OPTIONAL": true, "WHERE": true, "RETURN": true,
	"DISTINCT": true, "AS": true, "ORDER": true, "BY": true,
	"ASC": true, "ASCENDING": true, "DESC": true, "DESCENDING": true,
	"SKIP": true, "LIMIT": true, "CREATE": true, "MERGE": true,
	"ON": true, "SET": true, "DELETE": true, "DETACH": true,
	"AND": true, "OR": true, "XOR": true, "NOT": true,
	"IS": true, "NULL": true, "TRUE": true, "FALSE": true,
	"IN": true, "STARTS": true, "ENDS": true, "WITH": true,
	"CONTAINS": true, "UNWIND": true, "UNION": true, "ALL": true,
	"CALL": true, "YIELD": true, "FOREACH": true, "REMOVE": true,
	"LOAD": true, "CSV": true, "CASE": true, "WHEN": true,
	"THEN": true, "ELSE": true, "END": true,
}

func lookupKeyword(word string) (string, bool) {
	upper := strings.ToUpper(word)
	return upper, keywords[upper]
}
