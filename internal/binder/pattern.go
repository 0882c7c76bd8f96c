package binder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/P-wig/cyphersql/internal/cypher"
	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/ir"
	"github.com/P-wig/cyphersql/internal/schema"
)

// declarePath declares the variables of one path pattern. In a pattern
// predicate (predicate set) named variables must already be in scope and
// only anonymous elements are new.
func (b *binder) declarePath(p *cypher.PathPattern, clause int, predicate bool) (*ir.Path, []propMap, error) {
	path := &ir.Path{Span: p.Loc}
	var maps []propMap

	for i, np := range p.Nodes {
		var rel *ir.Var
		var rp *cypher.RelationshipPattern
		if i > 0 {
			rp = p.Rels[i-1]
			var err error
			if rel, err = b.declareRel(rp, clause, predicate); err != nil {
				return nil, nil, err
			}
			if rp.Properties != nil {
				maps = append(maps, propMap{v: rel, m: rp.Properties, span: rp.Loc})
			}
		}

		node, err := b.declareNode(np, clause, predicate)
		if err != nil {
			return nil, nil, err
		}
		if np.Properties != nil {
			maps = append(maps, propMap{v: node, m: np.Properties, span: np.Loc})
		}
		path.Nodes = append(path.Nodes, node)

		if i > 0 {
			lower, upper, unbounded := rp.Hops.Bounds()
			step := &ir.Step{
				Var:       rel,
				Left:      path.Nodes[i-1],
				Right:     node,
				Direction: direction(rp.Direction),
				Hops:      ir.Hops{Min: lower, Max: upper, Unbounded: unbounded},
				VarLength: rp.Hops != nil,
				Span:      rp.Loc,
			}
			path.Steps = append(path.Steps, step)
		}
	}

	if !predicate {
		b.steps = append(b.steps, path.Steps...)
	}
	return path, maps, nil
}

func direction(d cypher.Direction) ir.Direction {
	switch d {
	case cypher.DirRight:
		return ir.DirOut
	case cypher.DirLeft:
		return ir.DirIn
	default:
		return ir.DirBoth
	}
}

func (b *binder) synthetic(kind ir.VarKind, span diag.Span) *ir.Var {
	prefix := "n"
	if kind == ir.VarRel {
		prefix = "r"
	}
	v := &ir.Var{
		Name:      fmt.Sprintf("#%s%d", prefix, b.anon),
		Kind:      kind,
		Synthetic: true,
		Span:      span,
	}
	b.anon++
	b.vars = append(b.vars, v)
	return v
}

func (b *binder) declareNode(np *cypher.NodePattern, clause int, predicate bool) (*ir.Var, error) {
	label := ""
	for _, l := range np.Labels {
		if label != "" && l != label {
			return nil, diag.Unsupported(diag.StageBind, "multiple labels on a node", np.Loc)
		}
		label = l
	}
	if label != "" {
		if _, ok := b.desc.Node(label); !ok {
			return nil, diag.Semantic(diag.KindUnknownLabel, label, np.Loc, "unknown label %s", label)
		}
	}

	if np.Variable == "" {
		v := b.synthetic(ir.VarNode, np.Loc)
		v.Label = label
		return v, nil
	}

	if bd, ok := b.scope[np.Variable]; ok && bd.clause <= clause {
		v := bd.v
		if v.Kind != ir.VarNode {
			return nil, diag.Semantic(diag.KindAmbiguousVariable, v.Name, np.Loc,
				"variable %s is already bound to a relationship", v.Name)
		}
		if label != "" && v.Label != "" && label != v.Label {
			return nil, diag.Semantic(diag.KindAmbiguousVariable, v.Name, np.Loc,
				"variable %s is bound with label %s and %s", v.Name, v.Label, label)
		}
		if label != "" && v.Label == "" {
			v.Label = label
		}
		return v, nil
	}
	if predicate {
		return nil, diag.Semantic(diag.KindUndefinedVariable, np.Variable, np.Loc,
			"variable %s is not defined; pattern predicates cannot introduce variables", np.Variable)
	}

	v := &ir.Var{Name: np.Variable, Kind: ir.VarNode, Label: label, Span: np.Loc}
	b.scope[v.Name] = &binding{v: v, clause: clause}
	b.vars = append(b.vars, v)
	return v, nil
}

func (b *binder) declareRel(rp *cypher.RelationshipPattern, clause int, predicate bool) (*ir.Var, error) {
	var types []string
	var rels []*schema.Relationship
	for _, typ := range rp.Types {
		if slices.Contains(types, typ) {
			continue
		}
		rel, ok := b.desc.Relationship(typ)
		if !ok {
			return nil, diag.Semantic(diag.KindUnknownRelationshipType, typ, rp.Loc,
				"unknown relationship type %s", typ)
		}
		types = append(types, typ)
		rels = append(rels, rel)
	}

	if rp.Hops != nil {
		lower, upper, unbounded := rp.Hops.Bounds()
		if !unbounded && upper < lower {
			return nil, diag.Semantic(diag.KindInvalidHopRange, rp.Variable, rp.Hops.Loc,
				"hop range *%d..%d has an upper bound below its lower bound", lower, upper)
		}
		if rp.Properties != nil {
			return nil, diag.Unsupported(diag.StageBind, "property map on a variable-length relationship", rp.Properties.Loc)
		}
	}

	var v *ir.Var
	switch bd, ok := b.scope[rp.Variable]; {
	case rp.Variable == "":
		v = b.synthetic(ir.VarRel, rp.Loc)
	case ok && bd.clause <= clause:
		if bd.v.Kind == ir.VarNode {
			return nil, diag.Semantic(diag.KindAmbiguousVariable, rp.Variable, rp.Loc,
				"variable %s is already bound to a node", rp.Variable)
		}
		return nil, diag.Semantic(diag.KindAmbiguousVariable, rp.Variable, rp.Loc,
			"relationship variable %s is bound more than once", rp.Variable)
	case predicate:
		return nil, diag.Semantic(diag.KindUndefinedVariable, rp.Variable, rp.Loc,
			"variable %s is not defined; pattern predicates cannot introduce variables", rp.Variable)
	default:
		v = &ir.Var{Name: rp.Variable, Kind: ir.VarRel, Span: rp.Loc}
		b.scope[v.Name] = &binding{v: v, clause: clause, varLength: rp.Hops != nil}
		b.vars = append(b.vars, v)
	}

	if len(types) == 0 {
		// Untyped: every relationship type is a candidate until the
		// endpoint labels narrow them down.
		for _, rel := range b.desc.Relationships {
			types = append(types, rel.Type)
			rels = append(rels, rel)
		}
	} else {
		b.typed[v] = true
	}
	v.Types = types
	v.Rels = rels
	return v, nil
}

// resolve infers missing node labels from relationship endpoints until a
// fixed point, then attaches schema mappings and checks endpoints.
func (b *binder) resolve(steps []*ir.Step) error {
	for changed := true; changed; {
		changed = false
		for _, s := range steps {
			for _, left := range []bool{true, false} {
				v := s.Right
				if left {
					v = s.Left
				}
				if v.Label != "" {
					continue
				}
				if label, ok := inferLabel(s, left); ok {
					v.Label = label
					changed = true
				}
			}
		}
	}

	for _, s := range steps {
		for _, v := range []*ir.Var{s.Left, s.Right} {
			if err := b.attachNode(v); err != nil {
				return err
			}
		}
		if err := b.checkEndpoints(s); err != nil {
			return err
		}
	}
	for _, v := range b.vars {
		if v.Kind == ir.VarNode {
			if err := b.attachNode(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *binder) attachNode(v *ir.Var) error {
	if v.Node != nil {
		return nil
	}
	if v.Label == "" {
		name := v.Name
		if v.Synthetic {
			name = "anonymous node"
		}
		return diag.Semantic(diag.KindUnresolvedLabel, displayName(v), v.Span,
			"cannot infer a label for %s; add a label to the pattern", name)
	}
	node, _ := b.desc.Node(v.Label)
	v.Node = node
	return nil
}

func displayName(v *ir.Var) string {
	if v.Synthetic {
		return ""
	}
	return v.Name
}

// inferLabel returns the only label the left or right endpoint of s can
// have given the candidate relationship types and the other endpoint.
func inferLabel(s *ir.Step, left bool) (string, bool) {
	var labels []string
	add := func(ep schema.Endpoint) bool {
		if ep.Label == "" {
			return false
		}
		if !slices.Contains(labels, ep.Label) {
			labels = append(labels, ep.Label)
		}
		return true
	}

	for _, rel := range s.Var.Rels {
		forward, backward := s.Orientations(rel)
		if forward {
			ep := rel.Target()
			if left {
				ep = rel.Source()
			}
			if !add(ep) {
				return "", false
			}
		}
		if backward {
			ep := rel.Source()
			if left {
				ep = rel.Target()
			}
			if !add(ep) {
				return "", false
			}
		}
	}
	if len(labels) != 1 {
		return "", false
	}
	return labels[0], true
}

// checkEndpoints rejects explicit types that cannot connect the endpoint
// labels and narrows untyped relationships to the types that can.
func (b *binder) checkEndpoints(s *ir.Step) error {
	v := s.Var
	if b.typed[v] {
		for _, rel := range v.Rels {
			if forward, backward := s.Orientations(rel); !forward && !backward {
				return diag.Semantic(diag.KindIncompatibleEndpoint, rel.Type, s.Span,
					"relationship type %s connects %s to %s, not %s",
					rel.Type, endpointText(rel.Source()), endpointText(rel.Target()), stepText(s))
			}
		}
		return nil
	}

	var types []string
	var rels []*schema.Relationship
	for _, rel := range v.Rels {
		if forward, backward := s.Orientations(rel); forward || backward {
			types = append(types, rel.Type)
			rels = append(rels, rel)
		}
	}
	if len(rels) == 0 {
		return diag.Semantic(diag.KindIncompatibleEndpoint, displayName(v), s.Span,
			"no relationship type connects %s", stepText(s))
	}
	v.Types, v.Rels = types, rels
	return nil
}

func endpointText(ep schema.Endpoint) string {
	if ep.Label == "" {
		return "any label"
	}
	return ep.Label
}

func stepText(s *ir.Step) string {
	arrow := map[ir.Direction]string{ir.DirOut: "-->", ir.DirIn: "<--", ir.DirBoth: "--"}[s.Direction]
	return strings.Join([]string{"(:" + s.Left.Label + ")", arrow, "(:" + s.Right.Label + ")"}, "")
}
