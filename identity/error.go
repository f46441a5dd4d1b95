package identity

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrIncompleteProfile means the provider's claims lack the minimum
	// signal (an email address) needed to build a Magda user.
	ErrIncompleteProfile = errors.New("incomplete profile")

	// ErrNoOrgMembership means auto org mapping is on but the claims carry
	// neither an org name nor an org id: the user does not belong to any
	// organization at the provider.
	ErrNoOrgMembership = errors.New("user has no organization membership")

	// ErrOrgNameMissing means the claims carry an org id but no org name,
	// so the organization exists at the provider but cannot be mapped by
	// name.  Distinct from ErrNoOrgMembership because the fix is different:
	// the provider needs to release the name claim.
	ErrOrgNameMissing = errors.New("organization name claim is missing")

	// ErrOrgResolution wraps failures talking to the authorization API
	// while looking up or creating an org unit.
	ErrOrgResolution = errors.New("unable to resolve organization unit")

	// ErrRoleAssignment means the user was created but granting the
	// configured role failed.  The user record is kept.
	ErrRoleAssignment = errors.New("unable to assign role")

	// ErrProvisioning wraps any other rejection from the authorization API
	// while creating or looking up the user.
	ErrProvisioning = errors.New("unable to provision user")
)
