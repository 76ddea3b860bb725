package domain

// SliceReader reads a namespace slice out of a state tree.
// ports.Adapter satisfies it.
type SliceReader interface {
	Get(state any, namespace string) any
}

// StateDiff lists the namespaces whose slice was replaced by an update.
// It is designed to be serialized to JSON for clients that re-fetch only
// what changed.
type StateDiff struct {
	// Changed is true when the root reference changed.
	Changed bool `json:"changed"`

	// Namespaces contains the namespaces whose slice reference changed.
	Namespaces []string `json:"namespaces,omitempty"`
}

// Diff compares two state trees slice by slice.
// It returns nil when the root reference did not change.
func Diff(reader SliceReader, oldState, newState any, namespaces []string) *StateDiff {
	if Same(oldState, newState) {
		return nil
	}

	diff := &StateDiff{Changed: true}
	if reader == nil || oldState == nil || newState == nil {
		return diff
	}

	for _, ns := range namespaces {
		if !Same(reader.Get(oldState, ns), reader.Get(newState, ns)) {
			diff.Namespaces = append(diff.Namespaces, ns)
		}
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d == nil || !d.Changed
}
