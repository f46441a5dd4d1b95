package oidc

// Claims is the verified identity assertion returned by the provider after a
// successful token exchange.  It exists only for the duration of one callback
// request.  Email is the minimum viable identity signal; everything else is
// an optional enrichment.
type Claims struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	MiddleName string `json:"middle_name"`
	FamilyName string `json:"family_name"`

	// Provider-specific organization claims used for org-unit auto-mapping
	OrgName string `json:"org_name"`
	OrgID   string `json:"org_id"`
}

// merge overlays non-empty fields of other onto c.  Userinfo responses take
// precedence over id_token claims, matching the behavior of the original
// openid client strategy.
func (c *Claims) merge(other Claims) {
	if other.Subject != "" {
		c.Subject = other.Subject
	}
	if other.Email != "" {
		c.Email = other.Email
	}
	if other.Name != "" {
		c.Name = other.Name
	}
	if other.GivenName != "" {
		c.GivenName = other.GivenName
	}
	if other.MiddleName != "" {
		c.MiddleName = other.MiddleName
	}
	if other.FamilyName != "" {
		c.FamilyName = other.FamilyName
	}
	if other.OrgName != "" {
		c.OrgName = other.OrgName
	}
	if other.OrgID != "" {
		c.OrgID = other.OrgID
	}
}
