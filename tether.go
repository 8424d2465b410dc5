// Package tether implements foreign key constraint transparency for a
// persistence engine: deciding whether an in-memory object is transient
// (has no backing row yet) and nullifying references that point at
// not-yet-saved objects before a write is issued.
//
// # Why nullify
//
// When an entity is inserted or updated before its associations are saved,
// any foreign key column pointing at an unsaved object would violate a
// constraint. The Nullifier replaces such references with nil; a later
// cascaded save is expected to fix the reference up. This is how the engine
// avoids foreign key constraint violations without reordering writes.
//
// # Core Concepts
//
// Every operation runs against a Session, which bundles the external
// collaborators this core consumes: the persistence context (identity map
// plus store snapshots), the application interceptor, the dialect, and
// descriptor lookup. Sessions are supplied by the surrounding engine; the
// fakes used in this package's tests show the minimal contract.
//
// Object state is expressed as a Verdict: transient, persistent, or
// unknown. Verdicts are computed fresh on every call and never cached here;
// the session's identity map is the only persistent cache.
//
// # Basic Usage
//
//	oracle := tether.NewOracle(session)
//	transient, err := oracle.IsTransient(ctx, "Order", order, tether.VerdictUnknown)
//
//	n := tether.NewNullifier(session, order, descriptor, false, false)
//	err = n.NullifyTransientReferences(ctx, values)
//
// # Store Access
//
// The store is consulted only as a last resort, through
// PersistenceContext.Snapshot. Interceptor hints, descriptor unsaved-value
// strategies, and caller assumptions all short-circuit before any round
// trip. The store package provides a SQL-backed snapshot source for
// PersistenceContext implementations.
//
// # Descriptors
//
// Entity metadata is described by Descriptor values; the mapping package
// builds descriptor registries from YAML mapping documents, and the CLI
// can generate Go registration code from the same documents.
package tether

import "context"

// Session bundles the collaborators the transience core consumes. It is
// implemented by the surrounding engine's session; all state it exposes is
// owned elsewhere and read-only from this package's perspective.
//
// A session may additionally implement LazyPropertyLoader; without it,
// delete-time nullification of unfetched lazy references fails with
// ErrLazyInitialization.
type Session interface {
	// Persistence returns the session's persistence context (identity map
	// and store snapshot access).
	Persistence() PersistenceContext

	// Interceptor returns the application interceptor, or nil when none is
	// installed.
	Interceptor() Interceptor

	// Dialect reports store dialect facts.
	Dialect() Dialect

	// Descriptor resolves the descriptor for an entity. entityName may be
	// empty for polymorphic references, in which case the entity's runtime
	// shape decides. Returns an error wrapping ErrUnknownEntity when no
	// descriptor is known.
	Descriptor(entityName string, entity any) (Descriptor, error)

	// GuessEntityName returns a best-effort entity name for an object that
	// is not associated with the session, for use in diagnostics.
	GuessEntityName(entity any) string

	// ContextIdentifier returns the identifier the session already
	// associates with the object, or nil when the object is not associated
	// with the persistence context.
	ContextIdentifier(entity any) any
}

// PersistenceContext is the per-operation identity map. Implementations
// track which in-memory objects correspond to which stored rows and provide
// snapshot access to the backing store.
type PersistenceContext interface {
	// EntryFor returns the tracked entry for an object, if any.
	EntryFor(entity any) (EntityEntry, bool)

	// HasNullifiableEntities reports whether any entity in the current
	// operation is a candidate for reference nullification. Used to decide
	// whether delete-time lazy initialization is worth the cost.
	HasNullifiableEntities() bool

	// Snapshot returns the store row for the identifier, reading through
	// the context's snapshot cache first. A nil row means no such row
	// exists. This is the only store round trip in the core.
	Snapshot(ctx context.Context, id any, d Descriptor) ([]any, error)
}

// EntityEntry is the identity map's record for a tracked object.
type EntityEntry interface {
	// IsNullifiable reports whether references to the entry's object must
	// be nulled out, given the delete/early-insert flags of the entry and
	// the current operation.
	IsNullifiable(earlyInsert bool) bool
}

// Interceptor lets the application inspect an instance and decide its
// transience, e.g. by recognising application-specific unsaved-value
// markers such as a zero identifier field. A VerdictUnknown answer defers
// to the descriptor and, ultimately, the store.
//
// The hint package provides an expression-compiled implementation.
type Interceptor interface {
	Transience(entity any) Verdict
}

// Dialect reports store dialect facts consumed by this core.
type Dialect interface {
	// HasSelfReferentialForeignKeyBug reports whether the dialect cannot
	// delete a row that references itself, forcing self-references to be
	// nulled out first.
	HasSelfReferentialForeignKeyBug() bool
}

// LazyPropertyLoader is an optional Session capability: initializing an
// unfetched lazy property of an owning entity. It is required only on the
// delete path, when an unfetched reference might point at one of the
// entities being deleted.
type LazyPropertyLoader interface {
	InitializeLazyProperty(ctx context.Context, property string, owner any) (any, error)
}

// ChangeTracker receives the names of properties the Nullifier actually
// nulled out. It is supplied explicitly via WithChangeTracker; initializing
// a lazy value without nulling it is not reported.
type ChangeTracker func(property string)
