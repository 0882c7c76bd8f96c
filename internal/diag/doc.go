// Package diag defines the structured error reported by every stage of the
// translation pipeline.
//
// Each stage (lexer, parser, binder, planner, code generator) fails fast with
// a single *Error. The error carries its taxonomy (Category and Kind), the
// source span it refers to, and the stage-specific payload: the offending
// identifier for semantic errors, the construct name for unsupported syntax,
// or the expected/found token set for parse errors.
//
// Callers inspect errors with As, IsCategory and IsKind, which use errors.As
// so wrapped errors are matched too.
package diag
