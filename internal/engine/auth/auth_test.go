package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/domain"
)

func TestCanAccessProject(t *testing.T) {
	policy := Policy{AdminRoles: []string{"admin", "owner"}}
	proj := domain.Project{ID: "p1", OrgID: "org1", Assignee: domain.NewAssigneeSet("u1")}

	cases := []struct {
		name      string
		principal Principal
		want      error
	}{
		{name: "member", principal: Principal{UserID: "u1", OrgID: "org1"}},
		{name: "admin same org", principal: Principal{UserID: "a1", Role: "admin", OrgID: "org1"}},
		{name: "owner role counts as admin", principal: Principal{UserID: "a2", Role: "owner", OrgID: "org1"}},
		{name: "global admin", principal: System()},
		{name: "non member", principal: Principal{UserID: "u2", OrgID: "org1"}, want: domain.ForbiddenError{}},
		{name: "admin other org", principal: Principal{UserID: "a1", Role: "admin", OrgID: "org2"}, want: domain.ErrNotFound},
		{name: "member other org", principal: Principal{UserID: "u1", OrgID: "org2"}, want: domain.ErrNotFound},
		{name: "anonymous", principal: Principal{}, want: domain.ForbiddenError{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.CanAccessProject(tc.principal, proj)
			switch want := tc.want.(type) {
			case nil:
				require.NoError(t, err)
			case domain.ForbiddenError:
				var fe domain.ForbiddenError
				require.True(t, errors.As(err, &fe), "got %v", err)
			default:
				require.ErrorIs(t, err, want)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	policy := Policy{}
	assert.NoError(t, policy.RequireAdmin(Principal{UserID: "a", Role: "ADMIN"}, "rename section"))
	err := policy.RequireAdmin(Principal{UserID: "u", Role: "member"}, "rename section")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rename section")
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	ctx := WithPrincipal(context.Background(), Principal{UserID: "u1", Role: "member"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", p.UserID)
}
