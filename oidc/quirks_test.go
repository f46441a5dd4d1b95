package oidc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuth0EndSessionQuirk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		issuerHost string
		md         ProviderMetadata
		want       string
	}{
		{
			name:       "auth0-tenant-gets-synthesized-endpoint",
			issuerHost: "magda.au.auth0.com",
			md:         ProviderMetadata{Issuer: "https://magda.au.auth0.com/"},
			want:       "https://magda.au.auth0.com/v2/logout",
		},
		{
			name:       "existing-endpoint-untouched",
			issuerHost: "magda.au.auth0.com",
			md: ProviderMetadata{
				Issuer:             "https://magda.au.auth0.com/",
				EndSessionEndpoint: "https://magda.au.auth0.com/oidc/logout",
			},
			want: "https://magda.au.auth0.com/oidc/logout",
		},
		{
			name:       "non-auth0-host-untouched",
			issuerHost: "accounts.example.com",
			md:         ProviderMetadata{Issuer: "https://accounts.example.com"},
			want:       "",
		},
		{
			name:       "lookalike-host-untouched",
			issuerHost: "notauth0.com",
			md:         ProviderMetadata{Issuer: "https://notauth0.com"},
			want:       "",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := applyQuirks(tt.md, tt.issuerHost)
			assert.Equal(t, tt.want, got.EndSessionEndpoint)
		})
	}
}

func TestApplyQuirks_PureInput(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	md := ProviderMetadata{Issuer: "https://magda.au.auth0.com/"}
	_ = applyQuirks(md, "magda.au.auth0.com")
	// the caller's metadata value is never mutated
	assert.Empty(md.EndSessionEndpoint)
}
