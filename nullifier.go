package tether

import (
	"context"
	"fmt"
)

// Nullifier nulls out non-cascaded references to entities that have not
// yet been inserted, so that the owning entity's own write cannot violate
// a foreign key constraint. One Nullifier serves one nullification pass
// over one entity.
//
// The Nullifier does not own the entity or its value array; the caller
// owns both and must not touch the array concurrently while a pass runs.
// Object identity checks (the self-reference rule, dirty detection) use Go
// interface equality, so entity instances are expected to be
// pointer-shaped.
type Nullifier struct {
	session       Session
	self          any
	descriptor    Descriptor
	isDelete      bool
	isEarlyInsert bool
	tracker       ChangeTracker
	oracle        *Oracle
}

// NullifierOption configures a Nullifier.
type NullifierOption func(*Nullifier)

// WithChangeTracker installs a dirty-tracking side channel. The tracker is
// called with the (dot-qualified) property name each time a value is
// actually nulled out; a lazy value that was initialized but kept is not
// reported.
func WithChangeTracker(fn ChangeTracker) NullifierOption {
	return func(n *Nullifier) {
		n.tracker = fn
	}
}

// NewNullifier constructs a Nullifier for one pass over self. isDelete
// marks a delete operation; isEarlyInsert marks an insert issued before
// all associations are resolved (generated-id-before-insert strategy).
// Both flags change the self-reference rule, and isDelete additionally
// arms delete-time lazy initialization.
func NewNullifier(s Session, self any, d Descriptor, isDelete, isEarlyInsert bool, opts ...NullifierOption) *Nullifier {
	n := &Nullifier{
		session:       s,
		self:          self,
		descriptor:    d,
		isDelete:      isDelete,
		isEarlyInsert: isEarlyInsert,
		oracle:        NewOracle(s),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NullifyTransientReferences rewrites values in place, replacing every
// reference to a not-yet-saved entity with nil. values must be
// index-aligned with the descriptor's properties.
//
// Properties are processed strictly in declared order, one at a time.
// Composite sub-values are mutated in place and later properties must
// never observe a half-updated array, so the walk is sequential by
// contract, not as an optimization. A failure aborts the pass immediately;
// already-rewritten slots keep their new values and the caller abandons
// the operation.
func (n *Nullifier) NullifyTransientReferences(ctx context.Context, values []any) error {
	props := n.descriptor.Properties()
	if len(values) != len(props) {
		return fmt.Errorf("%w: entity %q has %d properties, got %d values",
			ErrInvalidDescriptor, n.descriptor.EntityName(), len(props), len(values))
	}
	for i, p := range props {
		replacement, err := n.resolve(ctx, values[i], p.Name, p.Type)
		if err != nil {
			return err
		}
		values[i] = replacement
	}
	return nil
}

// resolve returns nil if value is an unsaved entity, the (possibly
// initialized, possibly rewritten) value otherwise, and reports actual
// nullifications to the change tracker.
func (n *Nullifier) resolve(ctx context.Context, value any, name string, t PropertyType) (any, error) {
	replacement, err := n.replacement(ctx, value, name, t)
	if err != nil {
		return nil, err
	}
	// Only an actual nullification is a trackable change; an initialized
	// but kept value is not.
	if replacement == nil && value != nil && n.tracker != nil {
		n.tracker(name)
	}
	return replacement, nil
}

func (n *Nullifier) replacement(ctx context.Context, value any, name string, t PropertyType) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch t.Kind {
	case KindEntity:
		if t.Cardinality == OneToOne {
			// The dependent side of a one-to-one owns no foreign key
			// column; there is nothing to null.
			return value, nil
		}
		// A lazy value may need to be initialized before its
		// nullability can be decided.
		initialized, err := n.initializeIfNecessary(ctx, value, name, t)
		if err != nil {
			return nil, err
		}
		if initialized == nil {
			return nil, nil
		}
		nullify, err := n.isNullifiable(ctx, t.Target, initialized)
		if err != nil {
			return nil, err
		}
		if nullify {
			return nil, nil
		}
		return initialized, nil

	case KindAny:
		nullify, err := n.isNullifiable(ctx, "", value)
		if err != nil {
			return nil, err
		}
		if nullify {
			return nil, nil
		}
		return value, nil

	case KindComposite:
		comp, ok := value.(CompositeValue)
		if !ok {
			return nil, fmt.Errorf("%w: property %q holds %T", ErrNotComposite, name, value)
		}
		sub := comp.PropertyValues()
		if len(sub) != len(t.Sub) {
			return nil, fmt.Errorf("%w: composite %q has %d sub-properties, value carries %d",
				ErrInvalidDescriptor, name, len(t.Sub), len(sub))
		}
		for i, sp := range t.Sub {
			resolved, err := n.resolve(ctx, sub[i], name+"."+sp.Name, sp.Type)
			if err != nil {
				return nil, err
			}
			sub[i] = resolved
		}
		comp.SetPropertyValues(sub)
		return value, nil

	default:
		// Scalars and anything else pass through untouched.
		return value, nil
	}
}

// initializeIfNecessary eagerly initializes an unfetched lazy value, but
// only when all of: this is a delete, the value is the Unfetched sentinel,
// the property is an entity reference, and the identity map holds at least
// one nullifiable entity. The unfetched reference could then point at one
// of the entities being deleted, and the only way to find out is to load
// it. If cascade-delete was mapped for the association the value was
// already initialized when the delete cascaded, so this fires only when
// it was not.
//
// Outside those conditions the value is returned unchanged with no store
// access.
func (n *Nullifier) initializeIfNecessary(ctx context.Context, value any, name string, t PropertyType) (any, error) {
	if !n.isDelete ||
		value != Unfetched ||
		t.Kind != KindEntity ||
		!n.session.Persistence().HasNullifiableEntities() {
		return value, nil
	}
	loader, ok := n.session.(LazyPropertyLoader)
	if !ok {
		return nil, fmt.Errorf("%w: property %q must be initialized to decide nullability during delete",
			ErrLazyInitialization, name)
	}
	return loader.InitializeLazyProperty(ctx, name, n.self)
}

// isNullifiable determines, with a best guess, whether the object lacks a
// database row and its reference must therefore be nulled.
func (n *Nullifier) isNullifiable(ctx context.Context, entityName string, object any) (bool, error) {
	if object == Unfetched {
		// this is the best we can do
		return false, nil
	}

	if ref, ok := object.(LazyReference); ok {
		if ref.Uninitialized() {
			// we never have to null out a reference to an
			// uninitialized lazy target
			return false, nil
		}
		resolved, err := ref.Resolve(ctx)
		if err != nil {
			return false, err
		}
		if resolved == nil {
			return false, nil
		}
		object = resolved
	}

	// A reference to self needs nulling only under an early insert, or
	// during delete on a dialect that cannot delete self-referencing rows.
	if object == n.self {
		return n.isEarlyInsert ||
			n.isDelete && n.session.Dialect().HasSelfReferentialForeignKeyBug(), nil
	}

	// If the identity map tracks the object, its entry decides; otherwise
	// fall back to the full transience heuristics with no assumption,
	// relying on foreign keys to keep database integrity.
	if entry, ok := n.session.Persistence().EntryFor(object); ok {
		return entry.IsNullifiable(n.isEarlyInsert), nil
	}
	return n.oracle.IsTransient(ctx, entityName, object, VerdictUnknown)
}
