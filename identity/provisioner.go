package identity

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/magda-io/magda-auth-oidc/magda"
	"github.com/magda-io/magda-auth-oidc/oidc"
)

// Provisioner maps claims to a Magda user and drives the create-or-get call
// against the authorization API.  Safe for concurrent use; all fields are
// read-only after NewProvisioner.
type Provisioner struct {
	client      *magda.Client
	providerKey string
	orgs        OrgStrategy
	roles       RoleStrategy
	logger      hclog.Logger
}

func NewProvisioner(client *magda.Client, providerKey string, orgs OrgStrategy, roles RoleStrategy, logger hclog.Logger) (*Provisioner, error) {
	const op = "identity.NewProvisioner"
	if client == nil {
		return nil, fmt.Errorf("%s: nil authorization api client: %w", op, ErrInvalidParameter)
	}
	if providerKey == "" {
		return nil, fmt.Errorf("%s: missing provider key: %w", op, ErrInvalidParameter)
	}
	if orgs == nil {
		orgs = orgNone{}
	}
	if roles == nil {
		roles = roleNone{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Provisioner{
		client:      client,
		providerKey: providerKey,
		orgs:        orgs,
		roles:       roles,
		logger:      logger,
	}, nil
}

// Provision turns verified claims into a stored Magda user.  The org
// strategy runs before creation so its unit id is part of the new record;
// the role strategy runs only after a new record was actually created.
//
// A role grant failure returns the stored user together with an error
// wrapping ErrRoleAssignment: the user record is kept and callers decide
// whether to continue.
func (p *Provisioner) Provision(ctx context.Context, claims *oidc.Claims) (*magda.User, error) {
	const op = "Provisioner.Provision"

	user, err := MapClaims(claims, p.providerKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	orgUnitID, err := p.orgs.OrgUnitID(ctx, p.client, claims)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.OrgUnitID = orgUnitID

	stored, created, err := p.client.CreateOrGetUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrProvisioning, err)
	}
	if !created {
		p.logger.Debug("existing user signed in", "userId", stored.ID)
		return stored, nil
	}
	p.logger.Info("created user", "userId", stored.ID, "orgUnitId", orgUnitID)

	roleIDs := p.roles.RoleIDs()
	if len(roleIDs) == 0 {
		return stored, nil
	}
	if err := p.client.AddUserRoles(ctx, stored.ID, roleIDs); err != nil {
		p.logger.Error("role grant failed for new user", "userId", stored.ID, "roleIds", roleIDs, "error", err)
		return stored, fmt.Errorf("%s: %w: %v", op, ErrRoleAssignment, err)
	}
	return stored, nil
}
