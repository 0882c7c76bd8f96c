package schema

import "cuelang.org/go/cue/token"

// Type is the declared type of a mapped property.
type Type string

const (
	TypeString Type = "string"
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeBool   Type = "bool"
)

// Description maps graph labels and relationship types onto tables.
//
// A Description is immutable once built by Compile or Load: the binder and
// planner hold references into it across a translation, and concurrent
// translations share it. Reloading produces a new Description (see Holder).
type Description struct {
	Version       string
	Nodes         []*Node
	Relationships []*Relationship

	fingerprint string
	nodes       map[string]*Node
	rels        map[string]*Relationship
}

// Node maps one label to its canonical table.
type Node struct {
	Label string
	Table string
	Key   string

	// Discriminator is set when the table holds rows of several labels.
	Discriminator *Discriminator
	Properties    []*Property

	props map[string]*Property
	pos   token.Pos
}

// Relationship maps one relationship type to an edge table.
//
// Start and End describe the stored columns. With Reverse set, a row points
// from the End column's node to the Start column's node.
type Relationship struct {
	Type          string
	Table         string
	Key           string
	Start         Endpoint
	End           Endpoint
	Reverse       bool
	Discriminator *Discriminator
	Properties    []*Property

	props map[string]*Property
	pos   token.Pos
}

// Endpoint is one side of an edge table.
type Endpoint struct {
	Column string
	// Label constrains the node at this endpoint; empty means any label.
	Label string
}

// Discriminator tells rows of one label or type apart in a shared table.
type Discriminator struct {
	Column string
	Value  string
}

// Property maps a property name to a column of the owning table, or to a
// column of a side table joined on the owner's key.
type Property struct {
	Name   string
	Column string
	Type   Type
	Side   *SideTable
}

// SideTable holds a property outside the owner's table.
// Key is the side-table column referencing the owner's key.
type SideTable struct {
	Table  string
	Key    string
	Column string
}

// Fingerprint identifies the content of the description. Two descriptions
// with the same mappings have the same fingerprint.
func (d *Description) Fingerprint() string {
	return d.fingerprint
}

// Node returns the mapping for label.
func (d *Description) Node(label string) (*Node, bool) {
	n, ok := d.nodes[label]
	return n, ok
}

// Relationship returns the mapping for a relationship type.
func (d *Description) Relationship(typ string) (*Relationship, bool) {
	r, ok := d.rels[typ]
	return r, ok
}

// Labels lists the declared labels in declaration order.
func (d *Description) Labels() []string {
	out := make([]string, len(d.Nodes))
	for i, n := range d.Nodes {
		out[i] = n.Label
	}
	return out
}

// Property returns the mapping for a property of the label.
func (n *Node) Property(name string) (*Property, bool) {
	p, ok := n.props[name]
	return p, ok
}

// KeyType is the type of the key column: the type of the property stored in
// it, or int when no property maps to the key.
func (n *Node) KeyType() Type {
	for _, p := range n.Properties {
		if p.Side == nil && p.Column == n.Key {
			return p.Type
		}
	}
	return TypeInt
}

// Property returns the mapping for a property of the relationship type.
func (r *Relationship) Property(name string) (*Property, bool) {
	p, ok := r.props[name]
	return p, ok
}

// Source is the endpoint a relationship points away from.
func (r *Relationship) Source() Endpoint {
	if r.Reverse {
		return r.End
	}
	return r.Start
}

// Target is the endpoint a relationship points to.
func (r *Relationship) Target() Endpoint {
	if r.Reverse {
		return r.Start
	}
	return r.End
}

// index builds the lookup maps. Called once before the description is
// published.
func (d *Description) index() {
	d.nodes = make(map[string]*Node, len(d.Nodes))
	for _, n := range d.Nodes {
		d.nodes[n.Label] = n
		n.props = make(map[string]*Property, len(n.Properties))
		for _, p := range n.Properties {
			n.props[p.Name] = p
		}
	}
	d.rels = make(map[string]*Relationship, len(d.Relationships))
	for _, r := range d.Relationships {
		d.rels[r.Type] = r
		r.props = make(map[string]*Property, len(r.Properties))
		for _, p := range r.Properties {
			r.props[p.Name] = p
		}
	}
}
