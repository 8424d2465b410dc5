// Package mapping loads entity mapping documents from YAML and compiles
// them into descriptor registries. A mapping document declares each
// entity's name, table, identifier column, and properties; the compiled
// registry drives transience detection and reference nullification
// without hand-written descriptor code.
//
// A minimal document:
//
//	entities:
//	  - name: Order
//	    table: orders
//	    id_column: id
//	    properties:
//	      - name: reference
//	        kind: scalar
//	      - name: customer
//	        kind: many-to-one
//	        target: Customer
//
// Composite value types are declared once and referenced by name, so an
// Address embedded in several entities is described in one place.
package mapping

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

// Property kinds accepted in mapping documents.
const (
	KindScalar    = "scalar"
	KindManyToOne = "many-to-one"
	KindOneToOne  = "one-to-one"
	KindAny       = "any"
	KindComposite = "composite"
)

// Document is a parsed mapping file.
type Document struct {
	// Entities lists the mapped entity types. Order is preserved and
	// becomes the registry's registration order.
	Entities []Entity `json:"entities"`

	// Composites lists named composite value types that entity
	// properties may reference.
	Composites []Composite `json:"composites,omitempty"`
}

// Entity maps one entity type to its table.
type Entity struct {
	Name     string `json:"name"`
	Table    string `json:"table"`
	IDColumn string `json:"id_column"`

	// IDField names the Go struct field holding the identifier.
	// Defaults to "ID".
	IDField string `json:"id_field,omitempty"`

	// Unsaved selects the unsaved-value strategy: "zero" treats a
	// zero-valued identifier as unsaved, "none" (the default) leaves
	// transience to interceptors and store probes.
	Unsaved string `json:"unsaved,omitempty"`

	Properties []Property `json:"properties"`
}

// Property maps one entity property. Kind determines which of the other
// fields apply: Target for entity references, Composite for composite
// values, Column for scalars.
type Property struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Target    string `json:"target,omitempty"`
	Composite string `json:"composite,omitempty"`
	Column    string `json:"column,omitempty"`
}

// Composite is a named composite value type.
type Composite struct {
	Name       string     `json:"name"`
	Properties []Property `json:"properties"`
}

// Parse parses and validates a YAML mapping document. Unknown fields are
// rejected so typos surface as errors rather than silently dropped
// configuration.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("mapping: parse: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Composite returns the named composite, or false when absent.
func (d *Document) Composite(name string) (Composite, bool) {
	for _, c := range d.Composites {
		if c.Name == name {
			return c, true
		}
	}
	return Composite{}, false
}

// Entity returns the named entity, or false when absent.
func (d *Document) Entity(name string) (Entity, bool) {
	for _, e := range d.Entities {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}
