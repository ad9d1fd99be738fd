// package permissions decides whether the principal behind a request may run batch processes.
package permissions

import (
	"context"
	"slices"

	"github.com/charmbracelet/log"
)

// ManageAffiliates is the capability required to run the user migration.
const ManageAffiliates = "manage_affiliates"

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying the login of the acting user.
func WithPrincipal(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, principalKey{}, login)
}

// PrincipalFrom returns the login attached by [WithPrincipal].
func PrincipalFrom(ctx context.Context) (string, bool) {
	login, ok := ctx.Value(principalKey{}).(string)
	return login, ok && login != ""
}

// RoleLookup resolves the roles of a login.
type RoleLookup interface {
	RolesOf(ctx context.Context, login string) ([]string, error)
}

// RoleChecker grants capabilities through the roles a principal holds.
type RoleChecker struct {
	lookup RoleLookup
	grants map[string][]string
	logger *log.Logger
}

// NewRoleChecker creates a RoleChecker. grants maps a role to the capabilities it confers.
func NewRoleChecker(lookup RoleLookup, grants map[string][]string, logger *log.Logger) *RoleChecker {
	return &RoleChecker{lookup: lookup, grants: grants, logger: logger}
}

// CurrentPrincipalCan reports whether the principal in ctx holds capability.
//
// A missing principal or a failed lookup yields false.
func (c *RoleChecker) CurrentPrincipalCan(ctx context.Context, capability string) bool {
	login, ok := PrincipalFrom(ctx)
	if !ok {
		c.logger.Debug("no principal on context", "capability", capability)
		return false
	}

	roles, err := c.lookup.RolesOf(ctx, login)
	if err != nil {
		c.logger.Warn("role lookup failed", "principal", login, "error", err)
		return false
	}

	for _, role := range roles {
		if slices.Contains(c.grants[role], capability) {
			return true
		}
	}

	c.logger.Debug("capability denied", "principal", login, "capability", capability, "roles", roles)
	return false
}
