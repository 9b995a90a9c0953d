package gateway

// Allowlist is the fixed set of identities permitted to request actions.
// It is injected at construction so each environment carries its own list.
type Allowlist struct {
	humans map[string]struct{}
	agents map[string]struct{}
}

func NewAllowlist(humans, agents []string) Allowlist {
	a := Allowlist{
		humans: make(map[string]struct{}, len(humans)),
		agents: make(map[string]struct{}, len(agents)),
	}
	for _, id := range humans {
		if id != "" {
			a.humans[id] = struct{}{}
		}
	}
	for _, id := range agents {
		if id != "" {
			a.agents[id] = struct{}{}
		}
	}
	return a
}

func (a Allowlist) Allowed(id string) bool {
	if _, ok := a.humans[id]; ok {
		return true
	}
	_, ok := a.agents[id]
	return ok
}

func (a Allowlist) IsAgent(id string) bool {
	_, ok := a.agents[id]
	return ok
}

func (a Allowlist) Empty() bool {
	return len(a.humans) == 0 && len(a.agents) == 0
}
