// identity turns verified OIDC claims into Magda users.  The mapper derives
// the user record from claims, the strategies decide org-unit attachment and
// role grants, and the Provisioner drives the create-or-get call against the
// authorization API.
package identity
