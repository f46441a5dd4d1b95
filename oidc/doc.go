// Package oidc provides the connection to the OpenID Connect identity
// provider used for authentication: discovery of the provider's metadata at
// startup, generation of authorization-code redirects, verification of
// authorization responses (code exchange, id_token validation, userinfo
// retrieval) and RP-initiated logout URLs.
//
// A Provider is created once at startup via NewProvider and is then shared
// read-only by all request handling paths.  Known provider quirks (such as
// issuers that omit end_session_endpoint from discovery) are patched by an
// ordered list of metadata quirks applied once after discovery.
package oidc
