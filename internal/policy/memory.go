package policy

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]*User
	orgs        map[string]*Organization
	workspaces  map[string]*Workspace
	teams       map[string]*Team
	objectives  map[string]*Objective
	keyResults  map[string]*KeyResult
	cycles      map[string]*Cycle
	assignments map[string][]RoleAssignment
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*User),
		orgs:        make(map[string]*Organization),
		workspaces:  make(map[string]*Workspace),
		teams:       make(map[string]*Team),
		objectives:  make(map[string]*Objective),
		keyResults:  make(map[string]*KeyResult),
		cycles:      make(map[string]*Cycle),
		assignments: make(map[string][]RoleAssignment),
	}
}

// Seed helpers. Each Put overwrites by id; entities are copied on the way in
// and out so callers cannot mutate shared state.

func (m *MemoryStore) PutUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &u
}

func (m *MemoryStore) PutOrganization(o Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[o.ID] = &o
}

func (m *MemoryStore) PutWorkspace(w Workspace) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workspaces[w.ID] = &w
}

func (m *MemoryStore) PutTeam(t Team) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[t.ID] = &t
}

func (m *MemoryStore) PutObjective(o Objective) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objectives[o.ID] = &o
}

func (m *MemoryStore) PutKeyResult(k KeyResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyResults[k.ID] = &k
}

func (m *MemoryStore) PutCycle(c Cycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles[c.ID] = &c
}

func (m *MemoryStore) Grant(_ context.Context, a RoleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.assignments[a.UserID] {
		if existing.Role == a.Role && existing.ScopeType == a.ScopeType && existing.ScopeID == a.ScopeID {
			return ErrConflict
		}
	}
	if a.GrantedAt.IsZero() {
		a.GrantedAt = time.Now().UTC()
	}
	m.assignments[a.UserID] = append(m.assignments[a.UserID], a)
	return nil
}

func (m *MemoryStore) Revoke(_ context.Context, userID string, role Role, scopeType ScopeType, scopeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.assignments[userID]
	for i, a := range list {
		if a.Role == role && a.ScopeType == scopeType && a.ScopeID == scopeID {
			m.assignments[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) AssignmentsForUser(_ context.Context, userID string) ([]RoleAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.assignments[userID]
	out := make([]RoleAssignment, len(list))
	copy(out, list)
	return out, nil
}

func (m *MemoryStore) User(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Organization(_ context.Context, id string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.orgs[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateOrganization(_ context.Context, id string, upd OrganizationUpdate) (*Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		o.Name = *upd.Name
	}
	if upd.Metadata != nil {
		o.Metadata = upd.Metadata
	}
	if upd.PrivateWhitelist != nil {
		o.PrivateWhitelist = append([]string(nil), (*upd.PrivateWhitelist)...)
	}
	if upd.ExecOnlyWhitelist != nil {
		o.ExecOnlyWhitelist = append([]string(nil), (*upd.ExecOnlyWhitelist)...)
	}
	o.UpdatedAt = time.Now().UTC()
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) Workspace(_ context.Context, id string) (*Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.workspaces[id]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SetWorkspaceParent(_ context.Context, id, parentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	if !ok {
		return ErrNotFound
	}
	w.ParentID = parentID
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryStore) Team(_ context.Context, id string) (*Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.teams[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Objective(_ context.Context, id string) (*Objective, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.objectives[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdateObjective(_ context.Context, id string, upd ObjectiveUpdate) (*Objective, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objectives[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Title != nil {
		o.Title = *upd.Title
	}
	if upd.Visibility != nil {
		o.Visibility = *upd.Visibility
	}
	if upd.IsPublished != nil {
		o.IsPublished = *upd.IsPublished
	}
	if upd.CycleID != nil {
		o.CycleID = *upd.CycleID
	}
	o.UpdatedAt = time.Now().UTC()
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) ListObjectives(_ context.Context, filter ObjectiveFilter) ([]*Objective, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Objective
	for _, o := range m.objectives {
		if !filter.Unfiltered && o.OrganizationID != filter.TenantID {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) KeyResult(_ context.Context, id string) (*KeyResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k, ok := m.keyResults[id]; ok {
		cp := *k
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) Cycle(_ context.Context, id string) (*Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cycles[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, ErrNotFound
}
