package mapping

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidDocument is returned when a mapping document is
	// structurally invalid.
	ErrInvalidDocument = errors.New("mapping: invalid document")

	// ErrCompositeCycle is returned when named composites reference each
	// other in a cycle, which would make property expansion infinite.
	ErrCompositeCycle = errors.New("mapping: composite cycle detected")
)

// IsInvalidDocumentErr returns true if err is or wraps ErrInvalidDocument.
func IsInvalidDocumentErr(err error) bool {
	return errors.Is(err, ErrInvalidDocument)
}

// IsCompositeCycleErr returns true if err is or wraps ErrCompositeCycle.
func IsCompositeCycleErr(err error) bool {
	return errors.Is(err, ErrCompositeCycle)
}

// Validate checks the document for structural defects: missing names or
// tables, duplicate entities, unknown property kinds, references to
// undeclared targets or composites, and composite cycles.
func (d *Document) Validate() error {
	if len(d.Entities) == 0 {
		return fmt.Errorf("%w: no entities declared", ErrInvalidDocument)
	}

	entityNames := make(map[string]bool, len(d.Entities))
	for _, e := range d.Entities {
		if e.Name == "" {
			return fmt.Errorf("%w: entity with empty name", ErrInvalidDocument)
		}
		if entityNames[e.Name] {
			return fmt.Errorf("%w: duplicate entity %q", ErrInvalidDocument, e.Name)
		}
		entityNames[e.Name] = true
	}

	compositeNames := make(map[string]bool, len(d.Composites))
	for _, c := range d.Composites {
		if c.Name == "" {
			return fmt.Errorf("%w: composite with empty name", ErrInvalidDocument)
		}
		if compositeNames[c.Name] {
			return fmt.Errorf("%w: duplicate composite %q", ErrInvalidDocument, c.Name)
		}
		compositeNames[c.Name] = true
	}

	for _, e := range d.Entities {
		if e.Table == "" {
			return fmt.Errorf("%w: entity %q has no table", ErrInvalidDocument, e.Name)
		}
		if e.IDColumn == "" {
			return fmt.Errorf("%w: entity %q has no id_column", ErrInvalidDocument, e.Name)
		}
		switch e.Unsaved {
		case "", "none", "zero":
		default:
			return fmt.Errorf("%w: entity %q has unknown unsaved strategy %q", ErrInvalidDocument, e.Name, e.Unsaved)
		}
		if err := d.validateProperties(e.Name, e.Properties, entityNames, compositeNames); err != nil {
			return err
		}
	}
	for _, c := range d.Composites {
		if len(c.Properties) == 0 {
			return fmt.Errorf("%w: composite %q has no properties", ErrInvalidDocument, c.Name)
		}
		if err := d.validateProperties("composite "+c.Name, c.Properties, entityNames, compositeNames); err != nil {
			return err
		}
	}

	return d.detectCompositeCycles()
}

func (d *Document) validateProperties(owner string, props []Property, entities, composites map[string]bool) error {
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		if p.Name == "" {
			return fmt.Errorf("%w: %s has a property with empty name", ErrInvalidDocument, owner)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s has duplicate property %q", ErrInvalidDocument, owner, p.Name)
		}
		seen[p.Name] = true

		switch p.Kind {
		case KindScalar, KindAny:
		case KindManyToOne, KindOneToOne:
			if p.Target == "" {
				return fmt.Errorf("%w: %s property %q is a %s reference with no target", ErrInvalidDocument, owner, p.Name, p.Kind)
			}
			if !entities[p.Target] {
				return fmt.Errorf("%w: %s property %q targets unknown entity %q", ErrInvalidDocument, owner, p.Name, p.Target)
			}
		case KindComposite:
			if p.Composite == "" {
				return fmt.Errorf("%w: %s property %q is a composite with no type", ErrInvalidDocument, owner, p.Name)
			}
			if !composites[p.Composite] {
				return fmt.Errorf("%w: %s property %q references unknown composite %q", ErrInvalidDocument, owner, p.Name, p.Composite)
			}
		default:
			return fmt.Errorf("%w: %s property %q has unknown kind %q", ErrInvalidDocument, owner, p.Name, p.Kind)
		}
	}
	return nil
}

// Colors for the composite reference walk.
type color int

const (
	white color = iota // unvisited
	gray               // in progress
	black              // done
)

// detectCompositeCycles walks the composite reference graph depth-first.
// Finding a gray composite on the path means we have returned to a type
// still being expanded, so expansion would never terminate.
func (d *Document) detectCompositeCycles() error {
	colors := make(map[string]color, len(d.Composites))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch colors[name] {
		case gray:
			cycle := append(path, name)
			return fmt.Errorf("%w: %s", ErrCompositeCycle, strings.Join(cycle, " -> "))
		case black:
			return nil
		}
		colors[name] = gray

		c, ok := d.Composite(name)
		if !ok {
			// Validated earlier; unreachable in practice.
			return fmt.Errorf("%w: unknown composite %q", ErrInvalidDocument, name)
		}
		for _, p := range c.Properties {
			if p.Kind != KindComposite {
				continue
			}
			if err := visit(p.Composite, append(path, name)); err != nil {
				return err
			}
		}
		colors[name] = black
		return nil
	}

	for _, c := range d.Composites {
		if colors[c.Name] != white {
			continue
		}
		if err := visit(c.Name, nil); err != nil {
			return err
		}
	}
	return nil
}
