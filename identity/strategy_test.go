package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magda-io/magda-auth-oidc/magda"
	"github.com/magda-io/magda-auth-oidc/oidc"
)

func TestNewOrgStrategy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("none-when-nothing-configured", func(t *testing.T) {
		t.Parallel()
		id, err := NewOrgStrategy(false, "").OrgUnitID(ctx, nil, &oidc.Claims{OrgName: "Acme"})
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("fixed-ignores-claims", func(t *testing.T) {
		t.Parallel()
		id, err := NewOrgStrategy(false, "unit-1").OrgUnitID(ctx, nil, &oidc.Claims{OrgName: "Acme"})
		require.NoError(t, err)
		assert.Equal(t, "unit-1", id)
	})
}

func TestOrgAutoMap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("existing-unit-first-match", func(t *testing.T) {
		t.Parallel()
		api, client := newFakeAuthAPI(t)
		api.orgUnits = []magda.OrgUnit{{ID: "unit-a", Name: "Acme"}, {ID: "unit-b", Name: "Acme"}}

		id, err := NewOrgStrategy(true, "").OrgUnitID(ctx, client, &oidc.Claims{OrgName: "Acme"})
		require.NoError(t, err)
		assert.Equal(t, "unit-a", id)
		assert.Zero(t, api.createdOrgUnits)
	})

	t.Run("creates-missing-unit-under-root", func(t *testing.T) {
		t.Parallel()
		api, client := newFakeAuthAPI(t)

		id, err := NewOrgStrategy(true, "").OrgUnitID(ctx, client, &oidc.Claims{OrgName: "Acme", OrgID: "org-42"})
		require.NoError(t, err)
		assert.Equal(t, "new-org-unit-id", id)
		require.Equal(t, 1, api.createdOrgUnits)
		assert.Equal(t, "Acme", api.orgUnits[0].Name)
		assert.Contains(t, api.orgUnits[0].Description, "org-42")
	})

	t.Run("fallback-unit-when-name-claim-absent", func(t *testing.T) {
		t.Parallel()
		_, client := newFakeAuthAPI(t)

		id, err := NewOrgStrategy(true, "fallback-unit").OrgUnitID(ctx, client, &oidc.Claims{})
		require.NoError(t, err)
		assert.Equal(t, "fallback-unit", id)
	})

	t.Run("no-membership-at-all", func(t *testing.T) {
		t.Parallel()
		_, client := newFakeAuthAPI(t)

		_, err := NewOrgStrategy(true, "").OrgUnitID(ctx, client, &oidc.Claims{})
		assert.ErrorIs(t, err, ErrNoOrgMembership)
	})

	t.Run("org-id-without-name", func(t *testing.T) {
		t.Parallel()
		_, client := newFakeAuthAPI(t)

		_, err := NewOrgStrategy(true, "").OrgUnitID(ctx, client, &oidc.Claims{OrgID: "org-42"})
		assert.ErrorIs(t, err, ErrOrgNameMissing)
	})
}

func TestNewRoleStrategy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		roleID string
		want   []string
	}{
		{"empty-id-assigns-nothing", "", nil},
		{"canonical-uuid", "14ff3f57-e8ea-4771-93af-c6ea91a798d5", []string{"14ff3f57-e8ea-4771-93af-c6ea91a798d5"}},
		{"unhyphenated-uuid", "14ff3f57e8ea477193afc6ea91a798d5", []string{"14ff3f57e8ea477193afc6ea91a798d5"}},
		{"malformed-id-ignored", "not-a-role-id", nil},
		{"truncated-id-ignored", "14ff3f57-e8ea", nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NewRoleStrategy(tt.roleID, nil).RoleIDs())
		})
	}
}
