// Package store executes translated statements against a relational
// database through database/sql.
//
// Two drivers are supported:
//   - sqlite3 (mattn/go-sqlite3), the default, also used in memory by the
//     conformance harness
//   - pgx (jackc/pgx/v5/stdlib) for PostgreSQL
//
// The store also derives DDL from a schema description (ApplySchema) and
// loads fixture rows (InsertRows), so a mapped graph can be exercised end to
// end without hand-written SQL.
//
// # Database Configuration (sqlite)
//
//   - WAL mode for file databases: concurrent reads during writes
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - a single connection: one writer, and one shared in-memory database
package store
