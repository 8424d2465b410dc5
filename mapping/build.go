package mapping

import (
	"fmt"
	"reflect"

	"github.com/tetherhq/tether"
)

// Build compiles a parsed document into a descriptor registry. Entity
// identifiers are read by reflection from the configured struct field,
// and the "zero" unsaved strategy compares that field against its type's
// zero value.
func Build(doc *Document) (*tether.Registry, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	reg := tether.NewRegistry()
	for _, e := range doc.Entities {
		props, err := buildProperties(doc, e.Properties)
		if err != nil {
			return nil, fmt.Errorf("mapping: entity %q: %w", e.Name, err)
		}

		field := e.IDField
		if field == "" {
			field = "ID"
		}
		opts := []tether.TypeOption{
			tether.WithIdentifierFunc(fieldIdentifier(e.Name, field)),
		}
		if e.Unsaved == "zero" {
			opts = append(opts, tether.WithTransienceFunc(zeroUnsaved(field)))
		}

		if err := reg.Register(tether.NewType(e.Name, props, opts...)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildProperties(doc *Document, props []Property) ([]tether.Property, error) {
	out := make([]tether.Property, 0, len(props))
	for _, p := range props {
		var pt tether.PropertyType
		switch p.Kind {
		case KindScalar:
			pt = tether.Scalar()
		case KindManyToOne:
			pt = tether.ManyToOneRef(p.Target)
		case KindOneToOne:
			pt = tether.OneToOneRef(p.Target)
		case KindAny:
			pt = tether.AnyRef()
		case KindComposite:
			c, ok := doc.Composite(p.Composite)
			if !ok {
				return nil, fmt.Errorf("unknown composite %q", p.Composite)
			}
			// Cycles are rejected by Validate, so this recursion terminates.
			sub, err := buildProperties(doc, c.Properties)
			if err != nil {
				return nil, err
			}
			pt = tether.CompositeOf(sub...)
		default:
			return nil, fmt.Errorf("unknown property kind %q", p.Kind)
		}
		out = append(out, tether.Property{Name: p.Name, Type: pt})
	}
	return out, nil
}

// fieldIdentifier returns an accessor reading the named struct field.
// Pointers are followed; a nil entity or nil pointer yields a nil
// identifier.
func fieldIdentifier(entityName, field string) tether.IdentifierFunc {
	return func(entity any) (any, error) {
		v, err := identifierField(entityName, field, entity)
		if err != nil {
			return nil, err
		}
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	}
}

// zeroUnsaved treats a zero-valued identifier field as unsaved.
func zeroUnsaved(field string) tether.TransienceFunc {
	return func(entity any) tether.Verdict {
		v, err := identifierField("", field, entity)
		if err != nil || !v.IsValid() {
			return tether.VerdictUnknown
		}
		return tether.VerdictOf(v.IsZero())
	}
}

func identifierField(entityName, field string, entity any) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("mapping: entity %q: %T is not a struct", entityName, entity)
	}
	f := v.FieldByName(field)
	if !f.IsValid() {
		return reflect.Value{}, fmt.Errorf("mapping: entity %q: %T has no field %q", entityName, entity, field)
	}
	return f, nil
}
