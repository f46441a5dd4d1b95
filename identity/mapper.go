package identity

import (
	"fmt"
	"strings"

	"github.com/magda-io/magda-auth-oidc/magda"
	"github.com/magda-io/magda-auth-oidc/oidc"
)

// MapClaims derives a Magda user record from verified provider claims.
// providerKey becomes the user's source so later logins find the same
// record.  The record's org unit and roles are left for the strategies.
func MapClaims(claims *oidc.Claims, providerKey string) (magda.User, error) {
	const op = "identity.MapClaims"
	if claims == nil {
		return magda.User{}, fmt.Errorf("%s: nil claims: %w", op, ErrInvalidParameter)
	}
	if providerKey == "" {
		return magda.User{}, fmt.Errorf("%s: missing provider key: %w", op, ErrInvalidParameter)
	}
	if claims.Subject == "" {
		return magda.User{}, fmt.Errorf("%s: no subject claim: %w", op, ErrIncompleteProfile)
	}
	if claims.Email == "" {
		return magda.User{}, fmt.Errorf("%s: no email claim: %w", op, ErrIncompleteProfile)
	}
	return magda.User{
		DisplayName: displayName(claims),
		Email:       claims.Email,
		Source:      providerKey,
		SourceID:    claims.Subject,
	}, nil
}

// displayName prefers the full name claim, then the joined name parts,
// then the email address.
func displayName(claims *oidc.Claims) string {
	if claims.Name != "" {
		return claims.Name
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{claims.GivenName, claims.MiddleName, claims.FamilyName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return claims.Email
}
