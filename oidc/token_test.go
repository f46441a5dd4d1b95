package oidc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToken_Expired(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	tk := &Token{AccessToken: "at", Expiry: time.Now().Add(1 * time.Minute)}
	assert.False(tk.Expired())

	tk = &Token{AccessToken: "at", Expiry: time.Now().Add(-1 * time.Minute)}
	assert.True(tk.Expired())

	// zero expiry means the provider issued a non-expiring access token
	tk = &Token{AccessToken: "at"}
	assert.False(tk.Expired())
}

func TestToken_Valid(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	var nilToken *Token
	assert.False(nilToken.Valid())
	assert.False((&Token{}).Valid())
	assert.True((&Token{AccessToken: "at"}).Valid())
	assert.False((&Token{AccessToken: "at", Expiry: time.Now().Add(-1 * time.Minute)}).Valid())
}
