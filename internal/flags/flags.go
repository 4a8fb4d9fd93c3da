// Package flags reads feature toggles from the environment. A flag named
// "rbacInspector" maps to ALIGND_FLAG_RBAC_INSPECTOR; truthy values are
// "1", "true", "yes" and "on".
package flags

import (
	"os"
	"strings"
	"sync"
)

const envPrefix = "ALIGND_FLAG_"

// RBACInspector gates the policy explorer endpoint.
const RBACInspector = "rbacInspector"

// Set resolves feature flags, preferring runtime overrides over environment
// variables. The zero value is usable and reads the environment only.
type Set struct {
	mu        sync.RWMutex
	overrides map[string]bool
}

// New returns an empty flag set backed by the environment.
func New() *Set {
	return &Set{}
}

// Enabled reports whether the named flag is on.
func (s *Set) Enabled(name string) bool {
	if s != nil {
		s.mu.RLock()
		v, ok := s.overrides[name]
		s.mu.RUnlock()
		if ok {
			return v
		}
	}
	return truthy(os.Getenv(envName(name)))
}

// Override pins a flag value regardless of the environment. Used by tests
// and by operational tooling that flips flags at runtime.
func (s *Set) Override(name string, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overrides == nil {
		s.overrides = make(map[string]bool)
	}
	s.overrides[name] = value
}

// Clear removes a runtime override, falling back to the environment.
func (s *Set) Clear(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, name)
}

// envName converts a camelCase flag name to its environment variable form:
// rbacInspector -> ALIGND_FLAG_RBAC_INSPECTOR.
func envName(name string) string {
	var b strings.Builder
	b.WriteString(envPrefix)
	for i, r := range name {
		if r >= 'A' && r <= 'Z' && i > 0 {
			prev := name[i-1]
			if prev < 'A' || prev > 'Z' {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
