package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrNilParameter        = errors.New("nil parameter")
	ErrInvalidCACert       = errors.New("invalid CA certificate")
	ErrDiscoveryFailed     = errors.New("provider discovery failed")
	ErrMissingIdToken      = errors.New("id_token is missing")
	ErrMissingAuthCode     = errors.New("authorization code is missing")
	ErrAuthenticationFail  = errors.New("authentication failed")
	ErrVerificationFailed  = errors.New("id_token verification failed")
	ErrTokenNotYetValid    = errors.New("token is not yet valid")
	ErrUserInfoFailed      = errors.New("user info failed")
	ErrLogoutNotSupported  = errors.New("logout is not supported by the provider")
)
