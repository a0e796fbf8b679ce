package ecs

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the persisted form of components and entities: an ordered
// key-value mapping backed by a YAML mapping node. Key order is preserved on
// round trips.
type Document struct {
	node *yaml.Node
}

// NewDocument returns an empty mapping.
func NewDocument() *Document {
	return &Document{node: &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}}
}

// ParseDocument reads a YAML mapping. Empty input yields an empty document.
func ParseDocument(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	n := &root
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return NewDocument(), nil
		}
		n = n.Content[0]
	}
	if n.Kind == 0 {
		return NewDocument(), nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse document: top level is not a mapping (line %d)", n.Line)
	}
	return &Document{node: n}, nil
}

// Marshal renders the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d.node)
}

// Len returns the number of keys.
func (d *Document) Len() int { return len(d.node.Content) / 2 }

// Keys returns the keys in document order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.Len())
	for i := 0; i+1 < len(d.node.Content); i += 2 {
		keys = append(keys, d.node.Content[i].Value)
	}
	return keys
}

// Set stores v under key, replacing an existing value in place.
func (d *Document) Set(key string, v any) error {
	var vn yaml.Node
	if err := vn.Encode(v); err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	d.setNode(key, &vn)
	return nil
}

// Get decodes the value under key into out. A missing key leaves out
// untouched and reports false.
func (d *Document) Get(key string, out any) (bool, error) {
	vn := d.lookup(key)
	if vn == nil {
		return false, nil
	}
	if err := vn.Decode(out); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// Child returns the nested mapping under key.
func (d *Document) Child(key string) (*Document, bool) {
	vn := d.lookup(key)
	if vn == nil || vn.Kind != yaml.MappingNode {
		return nil, false
	}
	return &Document{node: vn}, true
}

// SetChild nests child under key.
func (d *Document) SetChild(key string, child *Document) {
	d.setNode(key, child.node)
}

// Encode merges the fields of v (a struct or map) into the document.
func (d *Document) Encode(v any) error {
	var vn yaml.Node
	if err := vn.Encode(v); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if vn.Kind != yaml.MappingNode {
		return fmt.Errorf("encode document: %T is not a mapping", v)
	}
	for i := 0; i+1 < len(vn.Content); i += 2 {
		d.setNode(vn.Content[i].Value, vn.Content[i+1])
	}
	return nil
}

// Decode fills v from the document. Fields without a key keep their value.
func (d *Document) Decode(v any) error {
	if err := d.node.Decode(v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func (d *Document) lookup(key string) *yaml.Node {
	for i := 0; i+1 < len(d.node.Content); i += 2 {
		if d.node.Content[i].Value == key {
			return d.node.Content[i+1]
		}
	}
	return nil
}

func (d *Document) setNode(key string, vn *yaml.Node) {
	for i := 0; i+1 < len(d.node.Content); i += 2 {
		if d.node.Content[i].Value == key {
			d.node.Content[i+1] = vn
			return
		}
	}
	d.node.Content = append(d.node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		vn,
	)
}
