package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the top-level error taxonomy.
type Category string

const (
	CategoryLex         Category = "LexError"
	CategoryParse       Category = "ParseError"
	CategoryUnsupported Category = "UnsupportedConstruct"
	CategorySemantic    Category = "SemanticError"
	CategoryPlan        Category = "PlanError"
	CategoryCodegen     Category = "CodegenError"
)

// Stage identifies the pipeline stage that produced an error.
type Stage string

const (
	StageLex     Stage = "lex"
	StageParse   Stage = "parse"
	StageBind    Stage = "bind"
	StagePlan    Stage = "plan"
	StageCodegen Stage = "codegen"
)

// Kind refines a Category.
type Kind string

const (
	// KindLex is a character the lexer cannot start a token with, or an
	// unterminated string, comment or quoted identifier.
	KindLex Kind = "LexError"

	// KindParse is a token sequence outside the grammar.
	KindParse Kind = "ParseError"

	// KindUnsupported is valid Cypher outside the translated subset.
	KindUnsupported Kind = "UnsupportedConstruct"

	// Semantic kinds.
	KindUnknownLabel            Kind = "UnknownLabel"
	KindUnknownRelationshipType Kind = "UnknownRelationshipType"
	KindUnknownProperty         Kind = "UnknownProperty"
	KindAmbiguousVariable       Kind = "AmbiguousVariable"
	KindUndefinedVariable       Kind = "UndefinedVariable"
	KindUnresolvedLabel         Kind = "UnresolvedLabel"
	KindIncompatibleEndpoint    Kind = "IncompatibleEndpoint"
	KindInvalidHopRange         Kind = "InvalidHopRange"
	KindTypeMismatch            Kind = "TypeMismatch"
	KindInvalidArgument         Kind = "InvalidArgument"
	KindNoSchema                Kind = "NoSchema"

	// Plan kinds.
	KindDisconnectedPattern        Kind = "DisconnectedPattern"
	KindUnboundedRecursionRejected Kind = "UnboundedRecursionRejected"
	KindMixedAggregate             Kind = "MixedAggregate"
	KindMisplacedAggregate         Kind = "MisplacedAggregate"
	KindMissingKey                 Kind = "MissingKey"
	KindInvalidPlan                Kind = "InvalidPlan"

	// KindCodegen is a plan the code generator cannot render.
	KindCodegen Kind = "CodegenError"
)

// Error is the single error type produced by the translation pipeline.
type Error struct {
	Category Category `json:"category"`
	Stage    Stage    `json:"stage"`
	Kind     Kind     `json:"kind"`
	Message  string   `json:"message"`
	Span     Span     `json:"span"`

	// Identifier is the unresolved or conflicting name for semantic errors.
	Identifier string `json:"identifier,omitempty"`

	// Construct names the rejected syntax for UnsupportedConstruct.
	Construct string `json:"construct,omitempty"`

	// Expected and Found describe a parse failure.
	Expected []string `json:"expected,omitempty"`
	Found    string   `json:"found,omitempty"`
}

// Pos returns the start of the error span.
func (e *Error) Pos() Pos {
	return e.Span.Start
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Category))
	if e.Kind != "" && string(e.Kind) != string(e.Category) {
		b.WriteString("::")
		b.WriteString(string(e.Kind))
	}
	if e.Span.Start.IsValid() {
		fmt.Fprintf(&b, " at %s", e.Span.Start)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Lex creates a lexer error at pos.
func Lex(pos Pos, format string, args ...any) *Error {
	return &Error{
		Category: CategoryLex,
		Stage:    StageLex,
		Kind:     KindLex,
		Message:  fmt.Sprintf(format, args...),
		Span:     At(pos),
	}
}

// Parse creates a parse error. expected is sorted by the caller.
func Parse(span Span, expected []string, found string) *Error {
	msg := "unexpected " + found
	if len(expected) > 0 {
		msg = fmt.Sprintf("expected %s, found %s", strings.Join(expected, " or "), found)
	}
	return &Error{
		Category: CategoryParse,
		Stage:    StageParse,
		Kind:     KindParse,
		Message:  msg,
		Span:     span,
		Expected: expected,
		Found:    found,
	}
}

// Unsupported creates an UnsupportedConstruct error raised by stage.
func Unsupported(stage Stage, construct string, span Span) *Error {
	return &Error{
		Category:  CategoryUnsupported,
		Stage:     stage,
		Kind:      KindUnsupported,
		Message:   construct + " is not supported",
		Span:      span,
		Construct: construct,
	}
}

// Semantic creates a schema-mapping error about identifier.
func Semantic(kind Kind, identifier string, span Span, format string, args ...any) *Error {
	return &Error{
		Category:   CategorySemantic,
		Stage:      StageBind,
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		Span:       span,
		Identifier: identifier,
	}
}

// Plan creates a planner error.
func Plan(kind Kind, span Span, format string, args ...any) *Error {
	return &Error{
		Category: CategoryPlan,
		Stage:    StagePlan,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	}
}

// Codegen creates a code generator error.
func Codegen(format string, args ...any) *Error {
	return &Error{
		Category: CategoryCodegen,
		Stage:    StageCodegen,
		Kind:     KindCodegen,
		Message:  fmt.Sprintf(format, args...),
	}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsCategory reports whether err carries category c.
func IsCategory(err error, c Category) bool {
	de, ok := As(err)
	return ok && de.Category == c
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	de, ok := As(err)
	return ok && de.Kind == k
}
