package dirtry

// Change is a field's value before the pending change and its value now.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Split separates changes into before and after maps keyed by field name.
func Split(changes map[string]Change) (before, after map[string]any) {
	before = make(map[string]any, len(changes))
	after = make(map[string]any, len(changes))
	for k, c := range changes {
		before[k] = c.Old
		after[k] = c.New
	}
	return before, after
}
