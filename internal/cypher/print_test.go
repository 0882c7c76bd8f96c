package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintCanonicalForm(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{
			"match (n:Person) return n.name",
			"MATCH (n:Person) RETURN n.name",
		},
		{
			"MATCH (a:Person)-->(b)<-[:KNOWS]-(c)--(d) RETURN a",
			"MATCH (a:Person)-->(b)<-[:KNOWS]-(c)--(d) RETURN a",
		},
		{
			"MATCH (a)-[r:F*1..5 {since: 2020}]->(b) RETURN b",
			"MATCH (a)-[r:F*1..5 {since: 2020}]->(b) RETURN b",
		},
		{
			"MATCH (n) WHERE (n.a + 1) * 2 > 3 AND NOT (n.b OR n.c) RETURN -n.a",
			"MATCH (n) WHERE (n.a + 1) * 2 > 3 AND NOT (n.b OR n.c) RETURN -n.a",
		},
		{
			`MATCH (n {name: "it's"}) RETURN n.x AS ` + "`the value`",
			`MATCH (n {name: 'it\'s'}) RETURN n.x AS ` + "`the value`",
		},
		{
			"MATCH (n) RETURN n.`order`, 1.0, 2e3, null, true ORDER BY n.`order` DESC LIMIT 1",
			"MATCH (n) RETURN n.`order`, 1.0, 2000.0, null, true ORDER BY n.`order` DESC LIMIT 1",
		},
		{
			"MERGE (n:P {k: $k}) ON CREATE SET n.c = 1",
			"MERGE (n:P {k: $k}) ON CREATE SET n.c = 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			stmt, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.String())
		})
	}
}

// Parsing the printed form of a statement must yield the same statement.
func TestPrintParseIdempotent(t *testing.T) {
	queries := []string{
		"MATCH (n:Person) RETURN n.name",
		"MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a.name, b.name",
		"MATCH (a)-[:FRIEND*1..5]->(b) RETURN b",
		"MATCH (a)<-[:A|B*]-(b), (c)-[*..3]-(a) WHERE a.x <> 1 RETURN DISTINCT a.x AS x",
		"OPTIONAL MATCH (n:City) WHERE n.pop >= 10 XOR n.big RETURN count(DISTINCT n.name)",
		"MATCH (n) WHERE n.s STARTS WITH 'a' OR n.s ENDS WITH 'b' OR n.s CONTAINS 'c' RETURN n",
		"MATCH (n) WHERE n.x IS NULL AND n.y IS NOT NULL AND n.z IN [1, 2.5, 'q', $p] RETURN n",
		"MATCH (n) WHERE (n.a IN [1]) IS NULL RETURN n",
		"MATCH (n) WHERE NOT (n)-[:KNOWS]->(:Person {name: 'Bob'}) RETURN n",
		"MATCH (n) WHERE exists((n)-->()) RETURN n.a - -1, -(-n.a), n.a - (n.b - n.c)",
		"MATCH (n) RETURN n.a / n.b % 3, toUpper(n.s), count(*) ORDER BY n.a SKIP $s LIMIT 10",
		"MATCH (n:Person) SET n.age = n.age + 1, n.name = 'x\\ny'",
		"MATCH (n:Person) WHERE n.name = $name DETACH DELETE n",
		"CREATE (n:Person {name: 'Ann', age: 30, score: 1.5})",
		"MATCH (a:Person {id: 1}), (b:Person {id: 2}) CREATE (a)-[:KNOWS {since: 2020}]->(b)",
		"MATCH (`weird var`:`Odd Label`) RETURN `weird var`.`a b`",
		"MATCH (n) WHERE n.a < -1 RETURN n",
		"RETURN 1 + 2 * 3 = 7 AS ok",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			first, err := Parse(q)
			require.NoError(t, err)
			printed := first.String()

			second, err := Parse(printed)
			require.NoError(t, err, "reparse %q", printed)
			assert.Equal(t, printed, second.String())
		})
	}
}

func TestPrintQuoting(t *testing.T) {
	assert.Equal(t, "name", quoteName("name"))
	assert.Equal(t, "`MATCH`", quoteName("MATCH"))
	assert.Equal(t, "`a b`", quoteName("a b"))
	assert.Equal(t, "`a``b`", quoteName("a`b"))
	assert.Equal(t, "`1a`", quoteName("1a"))
	assert.Equal(t, "`a$b`", quoteName("a$b"))
	assert.Equal(t, `'a\'b\\c\u0001'`, quoteString("a'b\\c\x01"))
}
