package oidc

// ProviderMetadata holds the subset of the provider's discovery document the
// plugin cares about beyond what the underlying oidc library consumes.  It is
// captured once at startup and treated as read-only afterwards.
type ProviderMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`

	// EndSessionEndpoint is optional; providers that support RP-initiated
	// logout advertise it.  Some provider families omit it despite supporting
	// logout; see quirks.go.
	EndSessionEndpoint string `json:"end_session_endpoint"`
}
