package oidc

import "time"

const expirySkew = 10 * time.Second

// Token is the raw token set returned by the provider.  The IdToken is kept
// for the whole session since it is needed again as a hint during
// RP-initiated logout.
type Token struct {
	RefreshToken string `json:"refreshToken,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	IdToken      string `json:"idToken,omitempty"`
}

func (t *Token) Expired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return t.Expiry.Round(0).Before(time.Now().Add(expirySkew))
}

func (t *Token) Valid() bool {
	if t == nil {
		return false
	}
	if t.AccessToken == "" {
		return false
	}
	return !t.Expired()
}
