package tether

import "context"

// Oracle decides whether an object is transient, layering cheap heuristics
// before the store round trip. Oracles are lightweight and safe to create
// per operation; they hold no state beyond the session handle and never
// cache verdicts.
type Oracle struct {
	session Session
}

// NewOracle returns an oracle bound to the given session.
func NewOracle(s Session) *Oracle {
	return &Oracle{session: s}
}

// IsTransient reports whether the object has no corresponding row in the
// backing store. The decision layers, in order:
//
//  1. The Unfetched sentinel is never transient: an unfetched association
//     can only point at a row that already exists.
//  2. The interceptor's verdict, if definite.
//  3. The descriptor's unsaved-value strategy, if definite.
//  4. The caller's assumed verdict, if definite. No store access happens;
//     the caller must be prepared to recover if the assumption proves
//     wrong.
//  5. A store existence probe via PersistenceContext.Snapshot, reading
//     through the snapshot cache. Absence of a row means transient.
//
// Steps 1-4 short circuit before 5; the store probe is the most expensive
// step and strictly the last resort.
func (o *Oracle) IsTransient(ctx context.Context, entityName string, entity any, assumed Verdict) (bool, error) {
	if entity == Unfetched {
		return false, nil
	}

	// Let the interceptor inspect the instance to decide. It may know
	// application-specific unsaved-value markers.
	if ic := o.session.Interceptor(); ic != nil {
		if v := ic.Transience(entity); v.Known() {
			return v == VerdictTransient, nil
		}
	}

	// Let the descriptor inspect the instance to decide.
	d, err := o.session.Descriptor(entityName, entity)
	if err != nil {
		return false, err
	}
	if v := d.Transience(entity); v.Known() {
		return v == VerdictTransient, nil
	}

	if assumed.Known() {
		return assumed == VerdictTransient, nil
	}

	id, err := d.Identifier(entity)
	if err != nil {
		return false, err
	}
	row, err := o.session.Persistence().Snapshot(ctx, id, d)
	if err != nil {
		return false, err
	}
	return row == nil, nil
}

// IsNotTransient reports whether the object is persistent or detached. A
// lazy reference wrapper is never transient regardless of initialization
// state, and neither is an object the identity map already tracks; both
// answer true without consulting the heuristics.
//
// The assumed verdict is handed to IsTransient as-is, not inverted: a
// caller assuming "not transient" passes VerdictPersistent. This asymmetry
// is long-standing observable behavior and deliberately preserved.
func (o *Oracle) IsNotTransient(ctx context.Context, entityName string, entity any, assumed Verdict) (bool, error) {
	if _, ok := entity.(LazyReference); ok {
		return true, nil
	}
	if _, ok := o.session.Persistence().EntryFor(entity); ok {
		return true, nil
	}
	transient, err := o.IsTransient(ctx, entityName, entity, assumed)
	if err != nil {
		return false, err
	}
	return !transient, nil
}
