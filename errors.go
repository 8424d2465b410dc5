package tether

import (
	"errors"
	"fmt"
)

// Sentinel errors for the transience core. Transience checks themselves
// report state through boolean results and Verdicts; these errors mean the
// operation cannot proceed at all and must abort without partial writes.
//
// Use the Is*Err helpers to classify errors in application code.
var (
	// ErrTransientObject is returned when an object needed for a foreign
	// key value has no saved row. The caller must persist the associated
	// object first; there is no recovery at this layer. The concrete error
	// is a *TransientObjectError carrying the best-known entity name.
	ErrTransientObject = errors.New("tether: object references an unsaved transient instance")

	// ErrLazyInitialization is returned when delete-time nullification
	// needs to initialize an unfetched lazy property but the session does
	// not implement LazyPropertyLoader. This is a capability gap in the
	// surrounding engine, not a data error.
	ErrLazyInitialization = errors.New("tether: lazy property initialization not available")

	// ErrInvalidDescriptor is returned when descriptor metadata is
	// malformed: duplicate or empty property names, entity references
	// without a target, composites without sub-properties, or a value
	// array whose length does not match the property list.
	ErrInvalidDescriptor = errors.New("tether: invalid descriptor")

	// ErrDuplicateEntity is returned when an entity name is registered
	// twice in one Registry.
	ErrDuplicateEntity = errors.New("tether: entity already registered")

	// ErrUnknownEntity is returned when no descriptor is known for an
	// entity name or instance.
	ErrUnknownEntity = errors.New("tether: unknown entity")

	// ErrNoIdentifier is returned when a descriptor has no identifier
	// accessor but one is required, e.g. for a store probe.
	ErrNoIdentifier = errors.New("tether: descriptor has no identifier accessor")

	// ErrNotComposite is returned when a composite-typed property holds a
	// value that does not implement CompositeValue.
	ErrNotComposite = errors.New("tether: value does not implement CompositeValue")
)

// TransientObjectError reports that a foreign key value was requested for
// an unsaved object. EntityName is the best-known name: the explicit name
// when the caller supplied one, otherwise the session's guess from the
// object's runtime shape.
type TransientObjectError struct {
	EntityName string
}

func (e *TransientObjectError) Error() string {
	return fmt.Sprintf("tether: object references an unsaved transient instance - save the transient instance before flushing: %s", e.EntityName)
}

// Unwrap makes the error match ErrTransientObject via errors.Is.
func (e *TransientObjectError) Unwrap() error {
	return ErrTransientObject
}

// IsTransientObjectErr returns true if err is or wraps ErrTransientObject.
func IsTransientObjectErr(err error) bool {
	return errors.Is(err, ErrTransientObject)
}

// IsLazyInitializationErr returns true if err is or wraps ErrLazyInitialization.
func IsLazyInitializationErr(err error) bool {
	return errors.Is(err, ErrLazyInitialization)
}

// IsInvalidDescriptorErr returns true if err is or wraps ErrInvalidDescriptor.
func IsInvalidDescriptorErr(err error) bool {
	return errors.Is(err, ErrInvalidDescriptor)
}

// IsUnknownEntityErr returns true if err is or wraps ErrUnknownEntity.
func IsUnknownEntityErr(err error) bool {
	return errors.Is(err, ErrUnknownEntity)
}
