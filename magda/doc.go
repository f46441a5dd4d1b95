// Package magda is a narrow client for the Magda authorization API — the
// host application that owns users, organizational units and roles.  The
// plugin only exchanges verified OIDC profiles for Magda identities and
// provisions org units/roles through it; everything else about the host
// application's data model stays on the other side of this client.
//
// Requests are authenticated with a short-lived JWT carrying the plugin's
// service user id in the X-Magda-Session header.
package magda
