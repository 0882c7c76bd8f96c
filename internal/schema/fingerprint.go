package schema

import "github.com/P-wig/cyphersql/internal/canon"

// fingerprint hashes the mapping content. Source positions and declaration
// formatting do not contribute; declaration order does, since it decides
// projection column order.
func fingerprint(d *Description) (string, error) {
	nodes := make([]any, len(d.Nodes))
	for i, n := range d.Nodes {
		nodes[i] = map[string]any{
			"label":         n.Label,
			"table":         n.Table,
			"key":           n.Key,
			"discriminator": discriminatorDoc(n.Discriminator),
			"properties":    propertiesDoc(n.Properties),
		}
	}
	rels := make([]any, len(d.Relationships))
	for i, r := range d.Relationships {
		rels[i] = map[string]any{
			"type":          r.Type,
			"table":         r.Table,
			"key":           r.Key,
			"start":         map[string]any{"column": r.Start.Column, "label": r.Start.Label},
			"end":           map[string]any{"column": r.End.Column, "label": r.End.Label},
			"reverse":       r.Reverse,
			"discriminator": discriminatorDoc(r.Discriminator),
			"properties":    propertiesDoc(r.Properties),
		}
	}
	return canon.Hash(canon.DomainSchema, map[string]any{
		"version":       d.Version,
		"nodes":         nodes,
		"relationships": rels,
	})
}

func discriminatorDoc(d *Discriminator) any {
	if d == nil {
		return nil
	}
	return map[string]any{"column": d.Column, "value": d.Value}
}

func propertiesDoc(props []*Property) []any {
	out := make([]any, len(props))
	for i, p := range props {
		doc := map[string]any{
			"name":   p.Name,
			"column": p.Column,
			"type":   string(p.Type),
		}
		if p.Side != nil {
			doc["side_table"] = map[string]any{
				"table":  p.Side.Table,
				"key":    p.Side.Key,
				"column": p.Side.Column,
			}
		}
		out[i] = doc
	}
	return out
}
