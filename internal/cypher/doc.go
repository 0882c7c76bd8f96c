// Package cypher lexes and parses the supported Cypher subset into an AST.
//
// The AST mirrors the surface syntax: clauses, path patterns made of node and
// relationship patterns, and expressions. Every node records the span of
// query text it came from, and String renders canonical Cypher that parses
// back to an equivalent tree.
//
// Syntax that is valid Cypher but outside the subset (WITH, UNWIND, CASE,
// list comprehensions, path variables, ...) is rejected with an
// UnsupportedConstruct error rather than a parse error.
package cypher
