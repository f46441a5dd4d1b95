package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/magda-io/magda-auth-oidc/magda"
	"github.com/magda-io/magda-auth-oidc/oidc"
)

// OrgStrategy decides which org unit, if any, a user is attached to before
// the user record is created.  An empty id means no attachment.
type OrgStrategy interface {
	OrgUnitID(ctx context.Context, client *magda.Client, claims *oidc.Claims) (string, error)
}

// RoleStrategy decides which roles are granted to a user once the user
// record has been created.
type RoleStrategy interface {
	RoleIDs() []string
}

// NewOrgStrategy picks the org assignment strategy from configuration.
// With autoMap off, a configured org unit id attaches every user to that
// unit and an empty id attaches nobody.  With autoMap on, the unit is
// looked up (or created) from the org name claim, falling back to the
// configured unit when the claim is absent.
func NewOrgStrategy(autoMap bool, orgUnitID string) OrgStrategy {
	if autoMap {
		return &orgAutoMap{fallbackID: orgUnitID}
	}
	if orgUnitID != "" {
		return orgFixed{id: orgUnitID}
	}
	return orgNone{}
}

// NewRoleStrategy picks the role assignment strategy.  A role id is only
// honored when it parses as a UUID (hyphenated or plain hex); anything else
// is logged and ignored so a typo in configuration cannot grant a bogus
// role.
func NewRoleStrategy(roleID string, logger hclog.Logger) RoleStrategy {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if roleID == "" {
		return roleNone{}
	}
	if _, err := uuid.Parse(roleID); err != nil {
		logger.Warn("ignoring malformed default role id", "roleId", roleID, "error", err)
		return roleNone{}
	}
	return roleFixed{ids: []string{roleID}}
}

type orgNone struct{}

func (orgNone) OrgUnitID(context.Context, *magda.Client, *oidc.Claims) (string, error) {
	return "", nil
}

type orgFixed struct {
	id string
}

func (s orgFixed) OrgUnitID(context.Context, *magda.Client, *oidc.Claims) (string, error) {
	return s.id, nil
}

type orgAutoMap struct {
	fallbackID string
}

func (s *orgAutoMap) OrgUnitID(ctx context.Context, client *magda.Client, claims *oidc.Claims) (string, error) {
	const op = "identity.orgAutoMap.OrgUnitID"
	if claims.OrgName == "" {
		if s.fallbackID != "" {
			return s.fallbackID, nil
		}
		if claims.OrgID == "" {
			return "", fmt.Errorf("%s: %w", op, ErrNoOrgMembership)
		}
		return "", fmt.Errorf("%s: organization %q has no name claim: %w", op, claims.OrgID, ErrOrgNameMissing)
	}

	nodes, err := client.GetOrgUnitsByName(ctx, claims.OrgName)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrOrgResolution, err)
	}
	if len(nodes) > 0 {
		return nodes[0].ID, nil
	}

	root, err := client.GetRootOrgUnit(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrOrgResolution, err)
	}
	description := "Automatically created on first sign-in."
	if claims.OrgID != "" {
		description = fmt.Sprintf("Automatically created on first sign-in. Provider organization id: %s", claims.OrgID)
	}
	created, err := client.CreateOrgUnit(ctx, root.ID, magda.OrgUnit{
		Name:        claims.OrgName,
		Description: description,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrOrgResolution, err)
	}
	return created.ID, nil
}

type roleNone struct{}

func (roleNone) RoleIDs() []string { return nil }

type roleFixed struct {
	ids []string
}

func (s roleFixed) RoleIDs() []string { return s.ids }
