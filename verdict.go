package tether

// Verdict is the tri-state outcome of a transience heuristic. Interceptors,
// descriptors, and caller assumptions all answer with a Verdict; an Unknown
// answer falls through to the next heuristic, ending at the store probe.
//
// Verdicts are produced fresh per call and never cached by this package.
type Verdict int

const (
	// VerdictUnknown means the heuristic cannot decide; fall through.
	VerdictUnknown Verdict = iota

	// VerdictTransient means the object has no backing row yet.
	VerdictTransient

	// VerdictPersistent means the object is or was associated with a
	// stored row (persistent or detached).
	VerdictPersistent
)

// Known reports whether the verdict is definite.
func (v Verdict) Known() bool {
	return v != VerdictUnknown
}

func (v Verdict) String() string {
	switch v {
	case VerdictTransient:
		return "transient"
	case VerdictPersistent:
		return "persistent"
	default:
		return "unknown"
	}
}

// VerdictOf collapses a definite boolean answer into a Verdict, with true
// meaning transient.
func VerdictOf(transient bool) Verdict {
	if transient {
		return VerdictTransient
	}
	return VerdictPersistent
}
