// Package auth implements the authorization gate consulted by every mutating
// ledger, reserve and distributor operation.
//
// Authority is explicit: callers pass a Capability naming who is acting, and
// the component asks its Gate whether that capability carries the role the
// operation needs. The gate never infers identity from ambient state.
package auth

import (
	"fmt"
	"sync"

	"github.com/bitfsorg/digikoin-go/account"
)

// Role is a privilege checked by a Gate.
type Role uint8

const (
	// RoleMinter may mint, and burn from any account.
	RoleMinter Role = iota + 1
	// RoleDistributor may fund dividend rounds under the owner-only policy.
	RoleDistributor
	// RoleCustodian may move units out of accounts it does not own. Held by
	// the reserve manager for the reserve holding.
	RoleCustodian
)

var roleNames = map[Role]string{
	RoleMinter:      "minter",
	RoleDistributor: "distributor",
	RoleCustodian:   "custodian",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Capability is the authority a caller presents to a mutating operation.
type Capability struct {
	Caller account.Address
	Grants []Grant // signed role grants, consulted by SignedGate
}

// As returns a capability for caller carrying no signed grants.
func As(caller account.Address) Capability {
	return Capability{Caller: caller}
}

// Gate decides whether a capability carries a role.
type Gate interface {
	// Authorize returns nil if c carries role, or an error wrapping ErrUnauthorized.
	Authorize(c Capability, role Role) error
}

func unauthorized(c Capability, role Role) error {
	return fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, c.Caller, role)
}

// StaticGate grants every role to the owner and individual roles to
// explicitly registered addresses.
type StaticGate struct {
	mu     sync.RWMutex
	owner  account.Address
	grants map[account.Address]map[Role]bool
}

// Compile-time interface check.
var _ Gate = (*StaticGate)(nil)

// NewStaticGate creates a gate owned by owner.
func NewStaticGate(owner account.Address) *StaticGate {
	return &StaticGate{
		owner:  owner,
		grants: make(map[account.Address]map[Role]bool),
	}
}

// Owner returns the owner address.
func (g *StaticGate) Owner() account.Address { return g.owner }

// Grant gives role to addr.
func (g *StaticGate) Grant(role Role, addr account.Address) {
	g.mu.Lock()
	defer g.mu.Unlock()
	roles, ok := g.grants[addr]
	if !ok {
		roles = make(map[Role]bool)
		g.grants[addr] = roles
	}
	roles[role] = true
}

// Revoke removes role from addr. The owner cannot be revoked.
func (g *StaticGate) Revoke(role Role, addr account.Address) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.grants[addr], role)
}

// Authorize implements Gate.
func (g *StaticGate) Authorize(c Capability, role Role) error {
	if c.Caller.IsZero() {
		return unauthorized(c, role)
	}
	if c.Caller == g.owner {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.grants[c.Caller][role] {
		return nil
	}
	return unauthorized(c, role)
}
