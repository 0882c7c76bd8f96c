// Package binder maps a parsed Cypher statement onto a schema description.
//
// Bind resolves every label, relationship type, variable and property the
// statement names and returns an *ir.Query with no unresolved names left,
// or a single *diag.Error (SemanticError or UnsupportedConstruct).
//
// Resolution runs in two passes. The first declares every pattern variable
// in clause order and infers missing node labels from relationship
// endpoints until nothing changes. The second binds expressions (property
// maps, WHERE, the updating clause, RETURN) against the resolved
// variables, honoring clause scope: a WHERE sees only variables declared by
// its own or earlier clauses.
package binder
