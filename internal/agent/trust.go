package agent

import "sync"

// TrustSet is the session-scoped cache of "always approve" decisions
// for remote tools, keyed by server or by server+tool.
type TrustSet struct {
	mu      sync.RWMutex
	servers map[string]struct{}
	tools   map[string]struct{}
}

// NewTrustSet returns an empty trust set.
func NewTrustSet() *TrustSet {
	return &TrustSet{
		servers: make(map[string]struct{}),
		tools:   make(map[string]struct{}),
	}
}

func toolKey(server, tool string) string {
	return server + "\x00" + tool
}

// TrustServer trusts every tool on a server for the session.
func (t *TrustSet) TrustServer(server string) {
	if server == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.servers[server] = struct{}{}
}

// TrustTool trusts one tool on a server for the session.
func (t *TrustSet) TrustTool(server, tool string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tools[toolKey(server, tool)] = struct{}{}
}

// IsTrusted reports whether a server or server+tool pair has been
// approved for the session.
func (t *TrustSet) IsTrusted(server, tool string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if server != "" {
		if _, ok := t.servers[server]; ok {
			return true
		}
	}
	_, ok := t.tools[toolKey(server, tool)]
	return ok
}
