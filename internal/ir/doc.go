// Package ir provides the bound intermediate representation: a Cypher
// statement after every name has been resolved against a schema
// description.
//
// Key design constraints:
//   - No unresolved names: every variable is an *ir.Var carrying its
//     label or relationship mappings, every property access carries its
//     *schema.Property
//   - Anonymous pattern elements get synthetic variables, so later stages
//     never special-case them
//   - Values are a sealed family (Null, String, Int, Float, Bool, List)
//   - The IR is immutable once the binder returns it
package ir
