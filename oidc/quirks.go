package oidc

import (
	"strings"
)

// MetadataQuirk patches discovered provider metadata for a known provider
// family.  Apply must be pure: it receives a copy of the metadata and the
// issuer host and returns the (possibly amended) metadata.  Quirks are
// applied once, in order, right after discovery — never per request.
type MetadataQuirk struct {
	// Name identifies the quirk in logs
	Name string

	// Applies reports whether the quirk targets the given issuer host
	Applies func(issuerHost string) bool

	// Apply returns the amended metadata
	Apply func(md ProviderMetadata) ProviderMetadata
}

// metadataQuirks is the ordered list of quirks applied after discovery.  Add
// new provider families here rather than branching in the flow controller.
var metadataQuirks = []MetadataQuirk{
	auth0EndSessionQuirk,
}

// auth0EndSessionQuirk synthesizes the conventional Auth0 logout endpoint.
// Auth0 supports RP-initiated logout but omits end_session_endpoint from its
// discovery document.
var auth0EndSessionQuirk = MetadataQuirk{
	Name: "auth0-end-session",
	Applies: func(issuerHost string) bool {
		return issuerHost == "auth0.com" || strings.HasSuffix(issuerHost, ".auth0.com")
	},
	Apply: func(md ProviderMetadata) ProviderMetadata {
		if md.EndSessionEndpoint == "" {
			md.EndSessionEndpoint = strings.TrimSuffix(md.Issuer, "/") + "/v2/logout"
		}
		return md
	},
}

// applyQuirks runs every registered quirk matching the issuer host, in order.
func applyQuirks(md ProviderMetadata, issuerHost string) ProviderMetadata {
	for _, q := range metadataQuirks {
		if q.Applies(issuerHost) {
			md = q.Apply(md)
		}
	}
	return md
}
