package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (p.act == "*" || r.act == p.act)
`

// Default route policies. Paths use keyMatch2 syntax.
var defaultPolicies = [][]string{
	{RoleCustomer, "/me", "GET"},
	{RoleCustomer, "/me", "PUT"},
	{RoleCustomer, "/cart", "*"},
	{RoleCustomer, "/cart/*", "*"},
	{RoleCustomer, "/checkout", "POST"},
	{RoleCustomer, "/orders", "*"},
	{RoleCustomer, "/orders/:id", "GET"},
	{RoleCustomer, "/orders/:id/status", "GET"},
	{RoleCustomer, "/orders/:id/cancel", "POST"},
	{RoleCustomer, "/orders/:id/payment", "POST"},
	{RoleCustomer, "/orders/:id/items/:item/refund", "POST"},
	{RoleCustomer, "/notifications", "GET"},
	{RoleCustomer, "/notifications/*", "*"},

	{RoleRider, "/rider/*", "*"},

	{RoleAdmin, "/*", "*"},
}

// Riders are customers too.
var defaultGroups = [][]string{
	{RoleRider, RoleCustomer},
}

type Policy struct {
	e *casbin.SyncedEnforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("init enforcer: %w", err)
	}
	for _, p := range defaultPolicies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", p, err)
		}
	}
	for _, g := range defaultGroups {
		if _, err := e.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, fmt.Errorf("add group %v: %w", g, err)
		}
	}
	return &Policy{e: e}, nil
}

func (p *Policy) Allowed(role, path, method string) (bool, error) {
	ok, err := p.e.Enforce(role, path, method)
	if err != nil {
		return false, fmt.Errorf("rbac check: %w", err)
	}
	return ok, nil
}
