package auth

import (
	"context"
	"strings"

	"taskboard/internal/domain"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   string
	OrgID  string
}

// System is used by the CLI, which operates with full rights on the local
// database.
func System() Principal {
	return Principal{UserID: "cli", Role: "admin"}
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// Policy decides project visibility and administrative rights.
type Policy struct {
	AdminRoles []string
}

func (p Policy) IsAdmin(pr Principal) bool {
	roles := p.AdminRoles
	if len(roles) == 0 {
		roles = []string{"admin"}
	}
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r), pr.Role) {
			return true
		}
	}
	return false
}

// CanAccessProject reports a project outside the caller's organization as
// missing, and an in-org project the caller is not assigned to as forbidden.
// Administrators see every project of their organization; an administrator
// without an organization sees everything.
func (p Policy) CanAccessProject(pr Principal, proj domain.Project) error {
	if pr.UserID == "" {
		return domain.ForbiddenError{Reason: "authentication required"}
	}
	if proj.OrgID != "" && pr.OrgID != "" && proj.OrgID != pr.OrgID {
		return domain.NotFoundError{Entity: "project", ID: proj.ID}
	}
	if p.IsAdmin(pr) || proj.Assignee.Contains(pr.UserID) {
		return nil
	}
	return domain.ForbiddenError{Reason: "not a member of project " + proj.ID}
}

// RequireAdmin guards administrative actions.
func (p Policy) RequireAdmin(pr Principal, action string) error {
	if p.IsAdmin(pr) {
		return nil
	}
	return domain.ForbiddenError{Reason: action + " requires an administrator"}
}
