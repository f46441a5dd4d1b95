package redirect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()
	allowed := []string{"data.example.com", "login.example.com:8080"}

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "empty-defaults-to-root",
			raw:  "",
			want: "/",
		},
		{
			name: "relative-path-unchanged",
			raw:  "/dashboard",
			want: "/dashboard",
		},
		{
			name: "relative-path-with-query-and-fragment",
			raw:  "/search?q=water#results",
			want: "/search?q=water#results",
		},
		{
			name: "foreign-host-stripped",
			raw:  "https://evil.com/dashboard?q=1",
			want: "/dashboard?q=1",
		},
		{
			name: "foreign-host-no-path-becomes-root",
			raw:  "https://evil.com",
			want: "/",
		},
		{
			name: "allow-listed-host-unchanged",
			raw:  "https://data.example.com/datasets?page=2",
			want: "https://data.example.com/datasets?page=2",
		},
		{
			name: "allow-listed-host-with-port-unchanged",
			raw:  "http://login.example.com:8080/done",
			want: "http://login.example.com:8080/done",
		},
		{
			name: "allow-list-is-exact-on-port",
			raw:  "http://login.example.com/done",
			want: "/done",
		},
		{
			name: "scheme-relative-foreign-host-stripped",
			raw:  "//evil.com/dashboard",
			want: "/dashboard",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Resolve(tt.raw, allowed))
		})
	}

	t.Run("nil-allow-list", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "/dashboard", Resolve("https://anywhere.com/dashboard", nil))
	})
}

// Resolve outputs are fixed points: resolving an already resolved value is a
// no-op, for same-origin and allow-listed results alike.
func TestResolve_Idempotent(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	allowed := []string{"data.example.com"}
	inputs := []string{
		"",
		"/",
		"/dashboard",
		"/a/b?c=d#e",
		"https://evil.com/x?y=z",
		"https://data.example.com/datasets",
		"not a url at all",
	}
	for _, in := range inputs {
		once := Resolve(in, allowed)
		twice := Resolve(once, allowed)
		require.Equalf(once, twice, "Resolve not idempotent for %q", in)
	}
}

func TestAbsolute(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		target string
		base   string
		want   string
	}{
		{
			name:   "path-joined-onto-base",
			target: "/sign-in-redirect",
			base:   "http://localhost:6100",
			want:   "http://localhost:6100/sign-in-redirect",
		},
		{
			name:   "base-path-preserved",
			target: "/oidc/return",
			base:   "http://gateway/auth/login/plugin",
			want:   "http://gateway/auth/login/plugin/oidc/return",
		},
		{
			name:   "trailing-slash-collapsed",
			target: "return",
			base:   "http://gateway/auth/",
			want:   "http://gateway/auth/return",
		},
		{
			name:   "absolute-target-unchanged",
			target: "https://other.example.com/done",
			base:   "http://localhost:6100",
			want:   "https://other.example.com/done",
		},
		{
			name:   "empty-target-returns-base",
			target: "",
			base:   "http://localhost:6100",
			want:   "http://localhost:6100",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Absolute(tt.target, tt.base))
		})
	}
}

func TestLooksLikeTarget(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.True(LooksLikeTarget("/dashboard"))
	assert.True(LooksLikeTarget("https://data.example.com/x"))
	assert.False(LooksLikeTarget("st_2Fn0aQ4tZ"))
	assert.False(LooksLikeTarget(""))
}
