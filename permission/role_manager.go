package permission

import (
	"errors"
	"sync"
)

// RoleManager holds named, application-scoped roles and resolves role names
// into a [Snapshot]. Roles are registered at startup and then frozen.
type RoleManager struct {
	scope string

	mu     sync.RWMutex
	roles  map[string]Snapshot
	frozen bool
}

// NewRoleManager returns a manager whose roles may only hold permissions of scope
// (plus the two sentinels).
func NewRoleManager(scope string) *RoleManager {
	return &RoleManager{
		scope: scope,
		roles: make(map[string]Snapshot),
	}
}

// RegisterRole validates perms and stores them under roleName.
func (rm *RoleManager) RegisterRole(roleName string, perms []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if roleName == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[roleName]; exists {
		return errors.New("role already registered")
	}

	snap, err := NewSnapshot(perms)
	if err != nil {
		return err
	}
	if rm.scope != "" {
		for p := range snap.set {
			if s := p.Scope(); s != "" && s != rm.scope {
				return errors.New("permission outside role manager scope: " + string(p))
			}
		}
	}

	rm.roles[roleName] = snap
	return nil
}

// Freeze prevents further registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	rm.frozen = true
	rm.mu.Unlock()
}

// Resolve returns the union of the named roles. Unknown roles are an error.
func (rm *RoleManager) Resolve(roleNames ...string) (Snapshot, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := Snapshot{set: map[Permission]struct{}{}}
	for _, name := range roleNames {
		snap, ok := rm.roles[name]
		if !ok {
			return Snapshot{}, errors.New("unknown role: " + name)
		}
		out = out.Union(snap)
	}
	return out, nil
}

// Scope returns the application scope this manager is bound to.
func (rm *RoleManager) Scope() string {
	return rm.scope
}
