// Package queryir defines the relational plan the planner produces and the
// SQL code generator consumes.
//
// A Plan is a dialect-neutral description of one SQL statement: a FROM
// binding, an ordered join list, a filter, a projection list and the
// grouping, ordering and paging clauses. Write statements carry an Insert,
// Update or Delete target; their row sources are nested read plans.
//
// ARCHITECTURE:
//
//	[bound IR] → planner → [Plan] → querysql → SQL text + bind parameters
//
// The plan never contains SQL text. Identifiers are table, column and alias
// names; values are Literal or Param nodes the code generator turns into
// bind parameters.
//
// SEALED INTERFACES:
//
// Expr is a sealed interface using the marker method pattern, so code
// generators can switch over every expression type exhaustively:
//
//	switch x := e.(type) {
//	case *Column:
//	    // "alias"."name"
//	case *Binary:
//	    // left op right
//	...
//	}
//
// ALIASES:
//
// Every table binding has a synthetic alias unique within the statement,
// including nested plans (CTE bodies, EXISTS subqueries, write row
// sources). The prefix tells what is bound:
//
//	n  node table          e  edge table
//	r  recursive fragment  u  edge union
//	s  side table
//
// CRITICAL PATTERNS:
//
// Validate checks the structural invariants of a plan: every alias bound
// once, every column reference in scope, every join after the first linked
// to an earlier binding, and cross joins only in write row sources. The
// planner validates each plan before returning it.
package queryir
