package activity

// PendingUse is a registered tool_use awaiting its matching tool_result.
type PendingUse struct {
	Name  string
	Input map[string]any
}

// PendingRegistry maps tool_use.id -> PendingUse. Entries are created on
// tool_use and consumed on the matching tool_result; there is no TTL, so
// orphan entries leak modestly in pathological cases, bounded by session
// size (spec.md §3).
type PendingRegistry struct {
	uses map[string]PendingUse
}

// NewPendingRegistry constructs an empty registry.
func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{uses: make(map[string]PendingUse)}
}

// Register records a tool_use.
func (r *PendingRegistry) Register(id, name string, input map[string]any) {
	r.uses[id] = PendingUse{Name: name, Input: input}
}

// Take removes and returns the pending use for id, if any. A tool_result
// whose tool_use_id has no pending entry is silently dropped by the caller
// (spec.md §3 invariant).
func (r *PendingRegistry) Take(id string) (PendingUse, bool) {
	u, ok := r.uses[id]
	if ok {
		delete(r.uses, id)
	}
	return u, ok
}
