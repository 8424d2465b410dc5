package tether

import "context"

// IdentifierIfNotUnsaved returns the identifier of a persistent or
// detached object, or a *TransientObjectError if the object has no saved
// row yet. Reference serialization uses it to pick foreign key values for
// objects that may or may not be associated with the session.
//
// A nil object resolves to a nil identifier. An identifier the session
// already associates with the object is returned directly, with no
// descriptor lookup and no store access. Otherwise transience is decided
// with an assumed VerdictPersistent, so an object with no definite
// interceptor or descriptor verdict is taken to be saved rather than
// probed; when the heuristics do answer transient, the error is hard and
// the caller must persist the associated object first.
func (o *Oracle) IdentifierIfNotUnsaved(ctx context.Context, entityName string, object any) (any, error) {
	if object == nil {
		return nil, nil
	}

	if id := o.session.ContextIdentifier(object); id != nil {
		return id, nil
	}

	// The session returns no identifier for objects it does not track, so
	// make some deeper checks.
	transient, err := o.IsTransient(ctx, entityName, object, VerdictPersistent)
	if err != nil {
		return nil, err
	}
	if transient {
		name := entityName
		if name == "" {
			name = o.session.GuessEntityName(object)
		}
		return nil, &TransientObjectError{EntityName: name}
	}

	d, err := o.session.Descriptor(entityName, object)
	if err != nil {
		return nil, err
	}
	return d.Identifier(object)
}
