package magda

// User is a Magda user record.  Source/SourceID tie a Magda identity to the
// authentication provider that produced it: Source is the plugin key and
// SourceID the provider's stable subject id.
type User struct {
	ID          string   `json:"id,omitempty"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	PhotoURL    string   `json:"photoURL,omitempty"`
	Source      string   `json:"source"`
	SourceID    string   `json:"sourceId"`
	OrgUnitID   string   `json:"orgUnitId,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// OrgUnit is a node in Magda's organizational hierarchy.
type OrgUnit struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
