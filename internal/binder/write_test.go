package binder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
)

func TestBindCreateNode(t *testing.T) {
	q := bind(t, "CREATE (n:Person {name: $name, age: 30})")

	w, ok := q.Write.(*ir.CreateNode)
	require.True(t, ok)
	assert.Equal(t, "Person", w.Var.Label)
	require.Len(t, w.Values, 2)
	assert.Equal(t, "name", w.Values[0].Prop.Name)
	assert.Equal(t, "age", w.Values[1].Prop.Name)
	assert.Equal(t, []string{"name"}, q.Params)
	assert.Nil(t, q.Return)
}

func TestBindCreateRelationship(t *testing.T) {
	q := bind(t, "MATCH (a:Person {id: 1}), (b:Person {id: 2}) CREATE (a)<-[:KNOWS {since: 2020}]-(b)")

	w, ok := q.Write.(*ir.CreateRel)
	require.True(t, ok)
	assert.Equal(t, "b", w.From.Name, "left arrow creates from the right node")
	assert.Equal(t, "a", w.To.Name)
	assert.Equal(t, []string{"KNOWS"}, w.Var.Types)
	require.Len(t, w.Values, 1)
	assert.Equal(t, "since", w.Values[0].Prop.Name)
}

func TestBindMerge(t *testing.T) {
	q := bind(t, "MERGE (c:City {name: 'Oslo'}) ON CREATE SET c.population = 700000")
	w, ok := q.Write.(*ir.MergeNode)
	require.True(t, ok)
	require.Len(t, w.Match, 1)
	require.Len(t, w.OnCreate, 1)
	assert.Equal(t, "pop", w.OnCreate[0].Prop.Column)

	q = bind(t, "MATCH (a:Person {id: 1}), (b:Person {id: 2}) MERGE (a)-[:FRIEND]->(b)")
	rel, ok := q.Write.(*ir.MergeRel)
	require.True(t, ok)
	assert.Equal(t, "a", rel.From.Name)
	assert.Equal(t, "b", rel.To.Name)
}

func TestBindSet(t *testing.T) {
	q := bind(t, "MATCH (n:Person) WHERE n.name = $name SET n.age = n.age + 1, n.name = 'x'")
	w, ok := q.Write.(*ir.Update)
	require.True(t, ok)
	assert.Equal(t, "n", w.Var.Name)
	require.Len(t, w.Values, 2)
	assert.IsType(t, &ir.Binary{}, w.Values[0].Value)
}

func TestBindDelete(t *testing.T) {
	q := bind(t, "MATCH (a:Person)-[r:KNOWS]->(b:Person) WHERE a.name = 'x' DELETE r")
	w, ok := q.Write.(*ir.Delete)
	require.True(t, ok)
	assert.Equal(t, ir.VarRel, w.Var.Kind)
}

func TestBindWriteErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		kind  diag.Kind
	}{
		{"detach delete", "MATCH (n:Person) DETACH DELETE n", diag.KindUnsupported},
		{"delete two", "MATCH (a:Person), (b:City) DELETE a, b", diag.KindUnsupported},
		{"delete expression", "MATCH (a:Person) DELETE a.name", diag.KindUnsupported},
		{"delete undefined", "MATCH (a:Person) DELETE b", diag.KindUndefinedVariable},
		{"multi-node create", "CREATE (a:Person), (b:Person)", diag.KindUnsupported},
		{"create path", "CREATE (a:Person)-[:KNOWS]->(b:Person)", diag.KindUnsupported},
		{"create node after match", "MATCH (a:Person) CREATE (b:City)", diag.KindUnsupported},
		{"create with new endpoint", "MATCH (a:Person) CREATE (a)-[:KNOWS]->(b:Person)", diag.KindUnsupported},
		{"create untyped", "MATCH (a:Person), (b:Person) CREATE (a)-[:KNOWS|FRIEND]->(b)", diag.KindUnsupported},
		{"create reading variable", "CREATE (n:Person {name: n.name})", diag.KindUnsupported},
		{"create side-table property", "CREATE (n:Person {email: 'a@b'})", diag.KindUnsupported},
		{"create type mismatch", "CREATE (n:Person {age: 'old'})", diag.KindTypeMismatch},
		{"on match", "MERGE (n:Person {name: 'a'}) ON MATCH SET n.age = 1", diag.KindUnsupported},
		{"set two variables", "MATCH (a:Person), (b:Person) SET a.age = 1, b.age = 2", diag.KindUnsupported},
		{"set from another variable", "MATCH (a:Person), (b:Person) SET a.age = b.age", diag.KindUnsupported},
		{"set unknown property", "MATCH (a:Person) SET a.salary = 1", diag.KindUnknownProperty},
		{"set side-table property", "MATCH (a:Person) SET a.email = 'x'", diag.KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := bindErr(t, tt.query)
			assert.Equal(t, tt.kind, de.Kind, de.Error())
		})
	}
}
