package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-wig/cyphersql/internal/diag"
)

func mustParse(t *testing.T, src string) *Statement {
	t.Helper()
	stmt, err := Parse(src)
	require.NoError(t, err, "parse %q", src)
	return stmt
}

func TestParseSimpleMatch(t *testing.T) {
	stmt := mustParse(t, "MATCH (n:Person) RETURN n.name")
	require.Len(t, stmt.Clauses, 2)

	match, ok := stmt.Clauses[0].(*MatchClause)
	require.True(t, ok)
	require.Len(t, match.Patterns, 1)
	node := match.Patterns[0].Nodes[0]
	assert.Equal(t, "n", node.Variable)
	assert.Equal(t, []string{"Person"}, node.Labels)

	ret, ok := stmt.Clauses[1].(*ReturnClause)
	require.True(t, ok)
	require.Len(t, ret.Items, 1)
	prop, ok := ret.Items[0].Expr.(*PropertyAccess)
	require.True(t, ok)
	assert.Equal(t, "name", prop.Key)
	assert.Equal(t, "n", prop.Subject.(*Variable).Name)
}

func TestParseRelationshipDirections(t *testing.T) {
	tests := []struct {
		src  string
		dir  Direction
		typ  []string
		hops *[3]int // lower, upper, unbounded(1/0)
	}{
		{"MATCH (a)-[:KNOWS]->(b) RETURN a", DirRight, []string{"KNOWS"}, nil},
		{"MATCH (a)<-[:KNOWS]-(b) RETURN a", DirLeft, []string{"KNOWS"}, nil},
		{"MATCH (a)-[:KNOWS]-(b) RETURN a", DirBoth, []string{"KNOWS"}, nil},
		{"MATCH (a)<-[:KNOWS]->(b) RETURN a", DirBoth, []string{"KNOWS"}, nil},
		{"MATCH (a)-->(b) RETURN a", DirRight, nil, nil},
		{"MATCH (a)<--(b) RETURN a", DirLeft, nil, nil},
		{"MATCH (a)--(b) RETURN a", DirBoth, nil, nil},
		{"MATCH (a)-[:A|B]->(b) RETURN a", DirRight, []string{"A", "B"}, nil},
		{"MATCH (a)-[:A|:B]->(b) RETURN a", DirRight, []string{"A", "B"}, nil},
		{"MATCH (a)-[:F*1..5]->(b) RETURN a", DirRight, []string{"F"}, &[3]int{1, 5, 0}},
		{"MATCH (a)-[:F*]->(b) RETURN a", DirRight, []string{"F"}, &[3]int{1, 0, 1}},
		{"MATCH (a)-[:F*3]->(b) RETURN a", DirRight, []string{"F"}, &[3]int{3, 3, 0}},
		{"MATCH (a)-[:F*..4]->(b) RETURN a", DirRight, []string{"F"}, &[3]int{1, 4, 0}},
		{"MATCH (a)-[:F*2..]->(b) RETURN a", DirRight, []string{"F"}, &[3]int{2, 0, 1}},
		{"MATCH (a)-[:F*0..2]->(b) RETURN a", DirRight, []string{"F"}, &[3]int{0, 2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			stmt := mustParse(t, tt.src)
			path := stmt.Clauses[0].(*MatchClause).Patterns[0]
			require.Len(t, path.Nodes, 2)
			require.Len(t, path.Rels, 1)
			rel := path.Rels[0]
			assert.Equal(t, tt.dir, rel.Direction)
			assert.Equal(t, tt.typ, rel.Types)
			if tt.hops == nil {
				assert.Nil(t, rel.Hops)
				return
			}
			require.NotNil(t, rel.Hops)
			lower, upper, unbounded := rel.Hops.Bounds()
			assert.Equal(t, tt.hops[0], lower)
			assert.Equal(t, tt.hops[1], upper)
			assert.Equal(t, tt.hops[2] == 1, unbounded)
		})
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	stmt := mustParse(t, "MATCH (n) WHERE n.a = 1 OR n.b = 2 AND NOT n.c = 3 RETURN n.a + n.b * 2")
	where := stmt.Clauses[0].(*MatchClause).Where

	or, ok := where.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, OpOr, or.Op)
	and, ok := or.Right.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, OpAnd, and.Op)
	not, ok := and.Right.(*UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, OpNot, not.Op)

	ret := stmt.Clauses[1].(*ReturnClause).Items[0].Expr.(*BinaryExpr)
	assert.Equal(t, OpAdd, ret.Op)
	assert.Equal(t, OpMul, ret.Right.(*BinaryExpr).Op)
}

func TestParsePredicates(t *testing.T) {
	stmt := mustParse(t, `MATCH (n) WHERE n.name STARTS WITH 'A' AND n.x IS NOT NULL AND n.y IN [1, 2] AND n.z CONTAINS "q" RETURN n`)
	where := stmt.Clauses[0].(*MatchClause).Where.(*BinaryExpr)

	// ((starts AND notnull) AND in) AND contains
	contains := where.Right.(*BinaryExpr)
	assert.Equal(t, OpContains, contains.Op)
	in := where.Left.(*BinaryExpr).Right.(*BinaryExpr)
	assert.Equal(t, OpIn, in.Op)
	assert.Len(t, in.Right.(*ListLiteral).Items, 2)
	isNull := where.Left.(*BinaryExpr).Left.(*BinaryExpr).Right.(*IsNullExpr)
	assert.True(t, isNull.Negated)
	starts := where.Left.(*BinaryExpr).Left.(*BinaryExpr).Left.(*BinaryExpr)
	assert.Equal(t, OpStartsWith, starts.Op)
}

func TestParsePatternPredicate(t *testing.T) {
	stmt := mustParse(t, "MATCH (a:Person) WHERE NOT (a)-[:KNOWS]->(:Person {name: 'Bob'}) AND (a.age > 3) RETURN a")
	where := stmt.Clauses[0].(*MatchClause).Where.(*BinaryExpr)

	not := where.Left.(*UnaryExpr)
	pattern, ok := not.Operand.(*PatternExpr)
	require.True(t, ok)
	assert.Len(t, pattern.Pattern.Nodes, 2)
	assert.Equal(t, "Bob", pattern.Pattern.Nodes[1].Properties.Values[0].(*StringLiteral).Value)

	cmp := where.Right.(*BinaryExpr)
	assert.Equal(t, OpGt, cmp.Op)
}

func TestParseReturnModifiers(t *testing.T) {
	stmt := mustParse(t, "MATCH (n:Person) RETURN DISTINCT n.name AS name, count(*) AS c ORDER BY name DESC, c SKIP 2 LIMIT $lim;")
	ret := stmt.Clauses[1].(*ReturnClause)

	assert.True(t, ret.Distinct)
	require.Len(t, ret.Items, 2)
	assert.Equal(t, "name", ret.Items[0].Alias)
	call := ret.Items[1].Expr.(*FunctionCall)
	assert.True(t, call.Star)
	assert.Equal(t, "count", call.Name)

	require.Len(t, ret.OrderBy, 2)
	assert.True(t, ret.OrderBy[0].Descending)
	assert.False(t, ret.OrderBy[1].Descending)
	assert.Equal(t, int64(2), ret.Skip.(*IntLiteral).Value)
	assert.Equal(t, "lim", ret.Limit.(*Parameter).Name)
}

func TestParseUpdatingClauses(t *testing.T) {
	tests := []struct {
		src   string
		check func(t *testing.T, c Clause)
	}{
		{
			"CREATE (n:Person {name: 'Ann', age: 30})",
			func(t *testing.T, c Clause) {
				create := c.(*CreateClause)
				assert.Equal(t, []string{"name", "age"}, create.Patterns[0].Nodes[0].Properties.Keys)
			},
		},
		{
			"MERGE (n:Person {name: $name}) ON CREATE SET n.age = 1 ON MATCH SET n.seen = true",
			func(t *testing.T, c Clause) {
				merge := c.(*MergeClause)
				require.Len(t, merge.OnCreate, 1)
				require.Len(t, merge.OnMatch, 1)
				assert.Equal(t, "age", merge.OnCreate[0].Target.Key)
			},
		},
		{
			"MATCH (n:Person) SET n.age = n.age + 1, n.name = 'x'",
			func(t *testing.T, c Clause) {
				assert.Len(t, c.(*SetClause).Items, 2)
			},
		},
		{
			"MATCH (n:Person) DETACH DELETE n",
			func(t *testing.T, c Clause) {
				del := c.(*DeleteClause)
				assert.True(t, del.Detach)
				assert.Equal(t, "n", del.Targets[0].(*Variable).Name)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			stmt := mustParse(t, tt.src)
			tt.check(t, stmt.Clauses[len(stmt.Clauses)-1])
		})
	}
}

func TestParseUnterminatedNodeReportsAfterParen(t *testing.T) {
	_, err := Parse("MATCH (n")
	require.Error(t, err)

	de, ok := diag.As(err)
	require.True(t, ok)
	assert.Equal(t, diag.CategoryParse, de.Category)
	assert.Equal(t, diag.Pos{Offset: 7, Line: 1, Column: 8}, de.Pos())
	assert.Equal(t, []string{"')'", "':'", "'{'"}, de.Expected)
	assert.Equal(t, "end of input", de.Found)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		column   int
		expected string
	}{
		{"empty", "", 1, "MATCH"},
		{"match without return", "MATCH (n)", 10, "RETURN"},
		{"missing close bracket", "MATCH (a)-[r:KNOWS (b) RETURN a", 20, "']'"},
		{"bad relationship tail", "MATCH (a)-[r]>(b) RETURN a", 14, "'->'"},
		{"trailing tokens", "MATCH (n) RETURN n n", 20, "end of input"},
		{"missing expression", "MATCH (n) WHERE RETURN n", 17, "expression"},
		{"starts without with", "MATCH (n) WHERE n.a STARTS 'x' RETURN n", 28, "WITH"},
		{"dollar inside variable", "MATCH (n$x) RETURN n", 9, "')'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			de, ok := diag.As(err)
			require.True(t, ok)
			assert.Equal(t, diag.CategoryParse, de.Category, de.Error())
			assert.Equal(t, tt.column, de.Pos().Column, de.Error())
			assert.Contains(t, de.Expected, tt.expected)
		})
	}
}

func TestParseUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		src       string
		construct string
	}{
		{"MATCH (n) WITH n RETURN n", "WITH clause"},
		{"UNWIND [1, 2] AS x RETURN x", "UNWIND clause"},
		{"MATCH (n) RETURN n UNION MATCH (m) RETURN m", "UNION"},
		{"CALL db.labels()", "CALL procedure"},
		{"MATCH (n) REMOVE n.x", "REMOVE clause"},
		{"MATCH p = (a)-->(b) RETURN p", "path variable"},
		{"MATCH (n) RETURN CASE WHEN n.a THEN 1 END", "CASE expression"},
		{"MATCH (n) WHERE n.name =~ 'A.*' RETURN n", "regular expression match"},
		{"MATCH (n) RETURN [x IN n.list | x]", "list comprehension"},
		{"MATCH (n) RETURN n.list[0]", "list indexing"},
		{"MATCH (n) RETURN n.a ^ 2", "exponentiation"},
		{"MATCH (n) RETURN *", "RETURN *"},
		{"MATCH (n) SET n:Admin", "SET label"},
		{"MATCH (n) SET n += {a: 1}", "SET of all properties"},
		{"CREATE (n:A) CREATE (m:B)", "multiple updating clauses"},
		{"CREATE (n:A) RETURN n", "RETURN after an updating clause"},
		{"MATCH (n) RETURN {a: 1}", "map literal"},
		{"MATCH (a), (b), p = shortestPath((a)-[*]-(b)) RETURN p", "path variable"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			de, ok := diag.As(err)
			require.True(t, ok)
			assert.Equal(t, diag.CategoryUnsupported, de.Category, de.Error())
			assert.Equal(t, tt.construct, de.Construct)
		})
	}
}

func TestParseLexErrorSurfaces(t *testing.T) {
	_, err := Parse("MATCH (n) RETURN 'oops")
	assert.True(t, diag.IsCategory(err, diag.CategoryLex))
}
