package tether

import "fmt"

// PropertyKind classifies a property for nullification purposes. The switch
// over kinds in the Nullifier is exhaustive: a kind outside this set is
// treated as scalar and passed through unchanged.
type PropertyKind int

const (
	// KindScalar is a plain value with no foreign key semantics.
	KindScalar PropertyKind = iota
	// KindEntity is a single-entity reference with a fixed target entity.
	KindEntity
	// KindAny is a polymorphic reference; the target entity is resolved
	// per value, never from the descriptor.
	KindAny
	// KindComposite is a nested value with its own ordered sub-properties.
	KindComposite
)

func (k PropertyKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindEntity:
		return "entity"
	case KindAny:
		return "any"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Cardinality distinguishes the two single-entity reference shapes.
type Cardinality int

const (
	// ManyToOne references own a physical foreign key column and are
	// candidates for nullification.
	ManyToOne Cardinality = iota
	// OneToOne references are owned by the other side; the dependent side
	// has no column to null, so they are never eagerly nulled.
	OneToOne
)

func (c Cardinality) String() string {
	if c == OneToOne {
		return "one-to-one"
	}
	return "many-to-one"
}

// PropertyType is the closed type variant for a property. Kind selects the
// shape; Cardinality and Target are meaningful for KindEntity, Sub for
// KindComposite. Types are immutable for the lifetime of their descriptor.
type PropertyType struct {
	Kind        PropertyKind
	Cardinality Cardinality
	Target      string
	Sub         []Property
}

// Property pairs a name with its type. A descriptor exposes a single
// ordered Property slice so that names, types, and a value array stay
// index-aligned; the order is fixed at construction and never permuted.
type Property struct {
	Name string
	Type PropertyType
}

// Scalar returns the type of a plain value property.
func Scalar() PropertyType {
	return PropertyType{Kind: KindScalar}
}

// ManyToOneRef returns the type of a many-to-one reference to the named
// entity.
func ManyToOneRef(target string) PropertyType {
	return PropertyType{Kind: KindEntity, Cardinality: ManyToOne, Target: target}
}

// OneToOneRef returns the type of a one-to-one reference to the named
// entity.
func OneToOneRef(target string) PropertyType {
	return PropertyType{Kind: KindEntity, Cardinality: OneToOne, Target: target}
}

// AnyRef returns the type of a polymorphic reference.
func AnyRef() PropertyType {
	return PropertyType{Kind: KindAny}
}

// CompositeOf returns a composite type with the given sub-properties, in
// declaration order.
func CompositeOf(sub ...Property) PropertyType {
	return PropertyType{Kind: KindComposite, Sub: sub}
}

// Descriptor is immutable per-entity-type metadata. Descriptors are owned
// by the engine's type registry and shared by reference; implementations
// must never mutate the returned property slice.
type Descriptor interface {
	// EntityName returns the entity name the descriptor describes.
	EntityName() string

	// Properties returns the ordered properties. The returned slice is
	// index-aligned with any value array handed to the Nullifier.
	Properties() []Property

	// Transience applies the descriptor's unsaved-value strategy to an
	// instance, e.g. a zero-valued identifier or version field default.
	// VerdictUnknown defers the decision.
	Transience(entity any) Verdict

	// Identifier extracts the instance's identifier.
	Identifier(entity any) (any, error)
}

// CompositeValue is the capability a composite property value must provide
// so the Nullifier can rewrite its sub-values in place.
//
// PropertyValues returns the sub-values in the composite's declared
// sub-property order; SetPropertyValues writes them back in the same order.
type CompositeValue interface {
	PropertyValues() []any
	SetPropertyValues(values []any)
}

// IdentifierFunc extracts an identifier from an entity instance.
type IdentifierFunc func(entity any) (any, error)

// TransienceFunc applies an unsaved-value strategy to an entity instance.
type TransienceFunc func(entity any) Verdict

// Type is the concrete Descriptor used by generated code and the mapping
// package. The identifier accessor and unsaved-value strategy are supplied
// as functions at construction time.
type Type struct {
	name       string
	properties []Property
	identifier IdentifierFunc
	transience TransienceFunc
}

// TypeOption configures a Type.
type TypeOption func(*Type)

// WithIdentifierFunc sets the identifier accessor. Without one,
// Identifier returns ErrNoIdentifier.
func WithIdentifierFunc(fn IdentifierFunc) TypeOption {
	return func(t *Type) {
		t.identifier = fn
	}
}

// WithTransienceFunc sets the unsaved-value strategy. Without one,
// Transience always answers VerdictUnknown.
func WithTransienceFunc(fn TransienceFunc) TypeOption {
	return func(t *Type) {
		t.transience = fn
	}
}

// NewType constructs a descriptor for the named entity with the given
// ordered properties.
func NewType(name string, properties []Property, opts ...TypeOption) *Type {
	t := &Type{
		name:       name,
		properties: properties,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// EntityName returns the entity name.
func (t *Type) EntityName() string {
	return t.name
}

// Properties returns the ordered properties.
func (t *Type) Properties() []Property {
	return t.properties
}

// Transience applies the configured unsaved-value strategy.
func (t *Type) Transience(entity any) Verdict {
	if t.transience == nil {
		return VerdictUnknown
	}
	return t.transience(entity)
}

// Identifier extracts the identifier via the configured accessor.
func (t *Type) Identifier(entity any) (any, error) {
	if t.identifier == nil {
		return nil, fmt.Errorf("%w: entity %q", ErrNoIdentifier, t.name)
	}
	return t.identifier(entity)
}

// Registry maps entity names to descriptors. Registries are populated once
// at startup (by hand, by the mapping package, or by generated code) and
// read-only afterwards; they are not safe for concurrent mutation.
type Registry struct {
	types map[string]Descriptor
	names []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Descriptor)}
}

// Register validates and adds a descriptor. Registering the same entity
// name twice returns ErrDuplicateEntity.
func (r *Registry) Register(d Descriptor) error {
	if err := ValidateDescriptor(d); err != nil {
		return err
	}
	name := d.EntityName()
	if _, exists := r.types[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateEntity, name)
	}
	r.types[name] = d
	r.names = append(r.names, name)
	return nil
}

// Lookup returns the descriptor for an entity name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.types[name]
	return d, ok
}

// Names returns the registered entity names in registration order.
func (r *Registry) Names() []string {
	return r.names
}
