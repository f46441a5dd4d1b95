package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magda-io/magda-auth-oidc/oidc"
)

func TestMapClaims(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name            string
		claims          *oidc.Claims
		providerKey     string
		wantDisplayName string
		wantErr         error
	}{
		{
			name:            "full-name-wins",
			claims:          &oidc.Claims{Subject: "sub-1", Email: "a@b.com", Name: "A B", GivenName: "Other"},
			providerKey:     "oidc",
			wantDisplayName: "A B",
		},
		{
			name:            "name-parts-joined",
			claims:          &oidc.Claims{Subject: "sub-1", Email: "a@b.com", GivenName: "A", FamilyName: "B"},
			providerKey:     "oidc",
			wantDisplayName: "A B",
		},
		{
			name:            "middle-name-included",
			claims:          &oidc.Claims{Subject: "sub-1", Email: "a@b.com", GivenName: "A", MiddleName: "M", FamilyName: "B"},
			providerKey:     "oidc",
			wantDisplayName: "A M B",
		},
		{
			name:            "email-fallback",
			claims:          &oidc.Claims{Subject: "sub-1", Email: "a@b.com"},
			providerKey:     "oidc",
			wantDisplayName: "a@b.com",
		},
		{
			name:        "missing-email",
			claims:      &oidc.Claims{Subject: "sub-1", Name: "A B"},
			providerKey: "oidc",
			wantErr:     ErrIncompleteProfile,
		},
		{
			name:        "missing-subject",
			claims:      &oidc.Claims{Email: "a@b.com"},
			providerKey: "oidc",
			wantErr:     ErrIncompleteProfile,
		},
		{
			name:        "nil-claims",
			providerKey: "oidc",
			wantErr:     ErrInvalidParameter,
		},
		{
			name:    "missing-provider-key",
			claims:  &oidc.Claims{Subject: "sub-1", Email: "a@b.com"},
			wantErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			user, err := MapClaims(tt.claims, tt.providerKey)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDisplayName, user.DisplayName)
			assert.Equal(t, tt.claims.Email, user.Email)
			assert.Equal(t, tt.providerKey, user.Source)
			assert.Equal(t, tt.claims.Subject, user.SourceID)
		})
	}
}
