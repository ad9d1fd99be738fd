package permissions

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/desertthunder/affmigrate/internal/shared"
)

type staticRoles map[string][]string

func (s staticRoles) RolesOf(_ context.Context, login string) ([]string, error) {
	if login == "broken" {
		return nil, errors.New("directory offline")
	}
	roles, ok := s[login]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return roles, nil
}

func TestPrincipal(t *testing.T) {
	if _, ok := PrincipalFrom(context.Background()); ok {
		t.Error("empty context should carry no principal")
	}
	if _, ok := PrincipalFrom(WithPrincipal(context.Background(), "")); ok {
		t.Error("empty login should not count as a principal")
	}

	login, ok := PrincipalFrom(WithPrincipal(context.Background(), "admin"))
	if !ok || login != "admin" {
		t.Errorf("PrincipalFrom() = %q, %v; want admin, true", login, ok)
	}
}

func TestRoleChecker(t *testing.T) {
	directory := staticRoles{
		"admin":   {"administrator"},
		"manager": {"subscriber", "affiliate_manager"},
		"reader":  {"subscriber"},
	}
	grants := map[string][]string{
		"administrator":     {ManageAffiliates, "manage_users"},
		"affiliate_manager": {ManageAffiliates},
	}
	checker := NewRoleChecker(directory, grants, shared.NewLogger(io.Discard))

	tt := []struct {
		name      string
		principal string
		want      bool
	}{
		{name: "administrator", principal: "admin", want: true},
		{name: "granted by second role", principal: "manager", want: true},
		{name: "no granting role", principal: "reader", want: false},
		{name: "unknown user", principal: "ghost", want: false},
		{name: "lookup failure", principal: "broken", want: false},
		{name: "no principal", principal: "", want: false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.principal != "" {
				ctx = WithPrincipal(ctx, tc.principal)
			}
			if got := checker.CurrentPrincipalCan(ctx, ManageAffiliates); got != tc.want {
				t.Errorf("CurrentPrincipalCan() = %v, want %v", got, tc.want)
			}
		})
	}

	t.Run("other capability", func(t *testing.T) {
		ctx := WithPrincipal(context.Background(), "manager")
		if checker.CurrentPrincipalCan(ctx, "manage_users") {
			t.Error("affiliate_manager should not grant manage_users")
		}
	})
}
