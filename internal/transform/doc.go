// Package transform is the entry point of the translator: Cypher text in,
// parameterized SQL out.
//
// ARCHITECTURE:
//
//	text ─▶ cypher.Parse ─▶ binder.Bind ─▶ planner.Plan ─▶ querysql.Compile ─▶ Output
//
// Translate runs the pipeline once as a pure function. Transformer wraps it
// for long-running callers with a published schema (schema.Holder) and an
// LRU cache of translations.
//
// CRITICAL PATTERNS:
//   - The first error of any stage is returned as a *diag.Error; no stage
//     returns partial output with an error.
//   - Cache keys cover the schema fingerprint, dialect, depth cap and query
//     text, so a schema reload never serves a stale translation.
//   - Outputs handed to callers are copies; callers may mutate them.
package transform
