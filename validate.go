package tether

import "fmt"

// ValidateDescriptor checks descriptor metadata for the defects the
// Nullifier cannot tolerate: empty or duplicate property names, entity
// references without a target, and composites without sub-properties.
// Registry.Register runs it automatically; call it directly for
// hand-built descriptors used outside a registry.
//
// Errors wrap ErrInvalidDescriptor and name the offending property with
// its dot-qualified path.
func ValidateDescriptor(d Descriptor) error {
	if d.EntityName() == "" {
		return fmt.Errorf("%w: empty entity name", ErrInvalidDescriptor)
	}
	return validateProperties(d.EntityName(), "", d.Properties())
}

func validateProperties(entity, path string, props []Property) error {
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		qualified := p.Name
		if path != "" {
			qualified = path + "." + p.Name
		}
		if p.Name == "" {
			return fmt.Errorf("%w: entity %q has a property with an empty name under %q",
				ErrInvalidDescriptor, entity, path)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: entity %q declares property %q twice",
				ErrInvalidDescriptor, entity, qualified)
		}
		seen[p.Name] = true

		switch p.Type.Kind {
		case KindEntity:
			if p.Type.Target == "" {
				return fmt.Errorf("%w: entity %q property %q references no target entity",
					ErrInvalidDescriptor, entity, qualified)
			}
		case KindComposite:
			if len(p.Type.Sub) == 0 {
				return fmt.Errorf("%w: entity %q composite %q has no sub-properties",
					ErrInvalidDescriptor, entity, qualified)
			}
			if err := validateProperties(entity, qualified, p.Type.Sub); err != nil {
				return err
			}
		}
	}
	return nil
}
