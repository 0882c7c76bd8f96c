package diag

import "fmt"

// Pos is a location in the query text.
// Offset is a byte offset; Line and Column are 1-based (columns count runes).
type Pos struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

// IsValid reports whether the position was set by a lexer.
func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is a half-open range [Start, End) of query text.
type Span struct {
	Start Pos `json:"start"`
	End   Pos `json:"end"`
}

// At returns an empty span at p.
func At(p Pos) Span {
	return Span{Start: p, End: p}
}

// Join returns the smallest span covering a and b.
func Join(a, b Span) Span {
	if !a.Start.IsValid() {
		return b
	}
	if !b.Start.IsValid() {
		return a
	}
	out := a
	if b.Start.Offset < out.Start.Offset {
		out.Start = b.Start
	}
	if b.End.Offset > out.End.Offset {
		out.End = b.End
	}
	return out
}
