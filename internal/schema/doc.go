// Package schema loads and validates schema descriptions: the mapping from
// graph labels and relationship types to relational tables.
//
// Descriptions are written in CUE, JSON or YAML and checked in two passes:
// the embedded #Schema definition checks shape (positioned CompileError),
// then Validate checks the mapping is total and non-overlapping (all
// ValidationErrors at once, codes E3xx).
package schema
