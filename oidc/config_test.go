package oidc

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSecret_String(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert := assert.New(t)
		const want = RedactedClientSecret
		secret := ClientSecret("bob's phone number")
		assert.Equalf(want, secret.String(), "ClientSecret.String() = %v, want %v", secret.String(), want)
	})
}

func TestClientSecret_MarshalJSON(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		want := fmt.Sprintf(`"%s"`, RedactedClientSecret)
		secret := ClientSecret("bob's phone number")
		got, err := secret.MarshalJSON()
		require.NoError(err)
		assert.Equalf([]byte(want), got, "ClientSecret.MarshalJSON() = %s, want %s", got, want)
	})
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	type args struct {
		issuer       string
		clientID     string
		clientSecret ClientSecret
		redirectURL  string
		opt          []Option
	}
	tests := []struct {
		name      string
		args      args
		wantErr   bool
		wantIsErr error
	}{
		{
			name: "valid-with-defaults",
			args: args{
				issuer:       "https://accounts.example.com",
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "http://localhost:6100/auth/login/plugin/oidc/return",
			},
		},
		{
			name: "valid-with-all-opts",
			args: args{
				issuer:       "https://accounts.example.com",
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "http://localhost:6100/auth/login/plugin/oidc/return",
				opt: []Option{
					WithScopes([]string{"openid", "email"}),
					WithTimeout(5 * time.Second),
					WithMaxClockSkew(0),
					WithSupportedSigningAlgs(ES256),
				},
			},
		},
		{
			name: "empty-client-id",
			args: args{
				issuer:       "https://accounts.example.com",
				clientSecret: "client-secret",
				redirectURL:  "http://localhost:6100/return",
			},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "empty-client-secret",
			args: args{
				issuer:      "https://accounts.example.com",
				clientID:    "client-id",
				redirectURL: "http://localhost:6100/return",
			},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "empty-issuer",
			args: args{
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "http://localhost:6100/return",
			},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "bad-issuer-scheme",
			args: args{
				issuer:       "ldap://accounts.example.com",
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "http://localhost:6100/return",
			},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name: "unsupported-alg",
			args: args{
				issuer:       "https://accounts.example.com",
				clientID:     "client-id",
				clientSecret: "client-secret",
				redirectURL:  "http://localhost:6100/return",
				opt:          []Option{WithSupportedSigningAlgs(Alg("HS256"))},
			},
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			got, err := NewConfig(tt.args.issuer, tt.args.clientID, tt.args.clientSecret, tt.args.redirectURL, tt.args.opt...)
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted %q and got %q", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			require.NotNil(got)
			assert.Equal(tt.args.issuer, got.Issuer)
			assert.Equal(tt.args.clientID, got.ClientID)
			assert.NotEmpty(got.Scopes)
			assert.NotNil(got.Logger)
		})
	}

	t.Run("validation-reports-every-problem", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		_, err := NewConfig("", "", "", "")
		require.Error(err)
		for _, want := range []string{"client id", "client secret", "issuer", "redirect URL"} {
			assert.Contains(err.Error(), want)
		}
	})
}

func TestConfig_Validate_Defaults(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewConfig("https://accounts.example.com", "client-id", "client-secret", "http://localhost:6100/return")
	require.NoError(err)
	assert.Equal(DefaultTimeout, c.Timeout)
	assert.Equal(DefaultMaxClockSkew, c.MaxClockSkew)
	assert.Equal([]string{"openid", "profile", "email"}, c.Scopes)
	assert.Equal([]Alg{RS256}, c.SupportedSigningAlgs)
}

func TestConfig_Now(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	c := &Config{MaxClockSkew: 2 * time.Minute}
	// the validation clock runs behind the wall clock by exactly the skew
	diff := time.Since(c.Now())
	assert.InDelta((2 * time.Minute).Seconds(), diff.Seconds(), 1.0)

	c = &Config{}
	diff = time.Since(c.Now())
	assert.InDelta(0, diff.Seconds(), 1.0)
}
