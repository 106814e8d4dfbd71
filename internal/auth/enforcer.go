package auth

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/justsurfingit/jobtrackr/internal/models"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = r.sub == p.sub && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Enforcer decides which role may call which route. Policies are static and live in memory.
type Enforcer struct {
	enforcer *casbin.Enforcer
	mu       sync.RWMutex
}

// DefaultPolicies grant users the API except /admin, and admins everything.
var DefaultPolicies = [][]string{
	{models.RoleUser, "/api/v1/*", "*", "allow"},
	{models.RoleUser, "/api/v1/admin/*", "*", "deny"},
	{models.RoleAdmin, "/api/v1/*", "*", "allow"},
}

func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	for _, p := range DefaultPolicies {
		if _, err := e.AddPolicy(p[0], p[1], p[2], p[3]); err != nil {
			return nil, fmt.Errorf("failed to add policy: %w", err)
		}
	}
	return &Enforcer{enforcer: e}, nil
}

func (e *Enforcer) Enforce(role, path, method string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	allowed, err := e.enforcer.Enforce(role, path, method)
	if err != nil {
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	return allowed, nil
}
