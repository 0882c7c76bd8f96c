package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/P-wig/cyphersql/internal/querysql"
	"github.com/P-wig/cyphersql/internal/schema"
)

// DDL derives CREATE TABLE statements for every table a schema description
// mentions: node tables, edge tables and side tables.
//
// Tables shared by several mappings (a discriminated table, or a side table
// holding several properties) get the union of their columns. A key column
// becomes the primary key only when a single mapping owns the table. The
// owner key of a side table is UNIQUE: a side table holds at most one row
// per owner.
// Statements are ordered by first mention, so the output is deterministic.
func DDL(desc *schema.Description, d querysql.Dialect) []string {
	b := &ddlBuilder{byName: make(map[string]*table)}

	for _, n := range desc.Nodes {
		t := b.table(n.Table)
		t.owners++
		t.add(n.Key, n.KeyType(), true)
		if n.Discriminator != nil {
			t.add(n.Discriminator.Column, schema.TypeString, false)
		}
		b.properties(t, n.Properties, n.KeyType())
	}

	for _, r := range desc.Relationships {
		t := b.table(r.Table)
		t.owners++
		if r.Key != "" {
			t.add(r.Key, schema.TypeInt, true)
		}
		t.add(r.Start.Column, endpointType(desc, r.Start), false)
		t.add(r.End.Column, endpointType(desc, r.End), false)
		if r.Discriminator != nil {
			t.add(r.Discriminator.Column, schema.TypeString, false)
		}
		b.properties(t, r.Properties, schema.TypeInt)
	}

	stmts := make([]string, len(b.tables))
	for i, t := range b.tables {
		stmts[i] = t.create(d)
	}
	return stmts
}

// ApplySchema creates the tables of desc that do not exist yet.
func (s *Store) ApplySchema(ctx context.Context, desc *schema.Description) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range DDL(desc, s.dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %s: %w", stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InsertRows inserts fixture rows into table in one transaction. Each row
// maps column names to values; columns absent from a row are left to their
// defaults.
func (s *Store) InsertRows(ctx context.Context, table string, rows []map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	defer tx.Rollback()

	for i, row := range rows {
		stmt, args := s.insertStatement(table, row)
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert into %s: row %d: %w", table, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// insertStatement renders one row with its columns in sorted order.
func (s *Store) insertStatement(table string, row map[string]any) (string, []any) {
	if len(row) == 0 {
		return "INSERT INTO " + querysql.QuoteIdent(table) + " DEFAULT VALUES", nil
	}

	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(querysql.QuoteIdent(table))
	sb.WriteString(" (")
	args := make([]any, len(cols))
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(querysql.QuoteIdent(c))
		args[i] = row[c]
	}
	sb.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.dialect.Placeholder(i + 1))
	}
	sb.WriteString(")")
	return sb.String(), args
}

type ddlBuilder struct {
	tables []*table
	byName map[string]*table
}

func (b *ddlBuilder) table(name string) *table {
	if t, ok := b.byName[name]; ok {
		return t
	}
	t := &table{name: name, seen: make(map[string]bool), unique: make(map[string]bool)}
	b.tables = append(b.tables, t)
	b.byName[name] = t
	return t
}

// properties adds the columns of owner-table properties to t and routes
// side-table properties to their own tables.
func (b *ddlBuilder) properties(t *table, props []*schema.Property, ownerKey schema.Type) {
	for _, p := range props {
		if p.Side == nil {
			t.add(p.Column, p.Type, false)
			continue
		}
		side := b.table(p.Side.Table)
		side.add(p.Side.Key, ownerKey, false)
		side.unique[p.Side.Key] = true
		side.add(p.Side.Column, p.Type, false)
	}
}

type table struct {
	name   string
	cols   []column
	seen   map[string]bool
	unique map[string]bool
	owners int
}

type column struct {
	name string
	typ  schema.Type
	key  bool
}

// add keeps the first declaration of a column.
func (t *table) add(name string, typ schema.Type, key bool) {
	if t.seen[name] {
		return
	}
	t.seen[name] = true
	t.cols = append(t.cols, column{name: name, typ: typ, key: key})
}

func (t *table) create(d querysql.Dialect) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(querysql.QuoteIdent(t.name))
	sb.WriteString(" (")
	for i, c := range t.cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(querysql.QuoteIdent(c.name))
		sb.WriteString(" ")
		primary := c.key && t.owners == 1
		sb.WriteString(columnType(d, c.typ, primary))
		if t.unique[c.name] && !primary {
			sb.WriteString(" UNIQUE")
		}
	}
	sb.WriteString(")")
	return sb.String()
}

func columnType(d querysql.Dialect, typ schema.Type, primary bool) string {
	var sqlType string
	switch {
	case d == querysql.Postgres && typ == schema.TypeInt:
		sqlType = "BIGINT"
	case d == querysql.Postgres && typ == schema.TypeFloat:
		sqlType = "DOUBLE PRECISION"
	case d == querysql.Postgres && typ == schema.TypeBool:
		sqlType = "BOOLEAN"
	case typ == schema.TypeInt, typ == schema.TypeBool:
		sqlType = "INTEGER"
	case typ == schema.TypeFloat:
		sqlType = "REAL"
	default:
		sqlType = "TEXT"
	}
	if !primary {
		return sqlType
	}
	if d == querysql.Postgres && typ == schema.TypeInt {
		return sqlType + " GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	}
	return sqlType + " PRIMARY KEY"
}

// endpointType is the key type of the endpoint's label, int when the
// endpoint accepts any label.
func endpointType(desc *schema.Description, ep schema.Endpoint) schema.Type {
	if ep.Label == "" {
		return schema.TypeInt
	}
	if n, ok := desc.Node(ep.Label); ok {
		return n.KeyType()
	}
	return schema.TypeInt
}
