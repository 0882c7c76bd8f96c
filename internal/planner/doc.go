// Package planner turns a bound query into a relational plan.
//
// Node variables become bindings of their label tables, fixed-length
// relationships become joins through edge tables, and variable-length
// relationships become recursive common table expressions capped by the
// hop range or by Options.MaxDepth. Joins are ordered breadth first from
// the first node of the first MATCH.
//
// Every plan returned by Plan has passed queryir.Validate.
package planner
