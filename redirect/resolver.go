// Package redirect computes and sanitizes the URLs users are sent to after
// each leg of an authentication flow.  Every exit path of the flow (success,
// error, logout) must pass its target through Resolve so an attacker-supplied
// absolute URL can never be used for an open redirect.
package redirect

import (
	"net/url"
	"strings"

	"github.com/magda-io/magda-auth-oidc/internal/strutils"
)

// Resolve normalizes a raw redirect candidate against the allow-list of
// external hosts.  It is a pure function:
//
//   - an empty candidate resolves to "/"
//   - a relative candidate, or an absolute candidate whose host is not
//     allow-listed, is reduced to its path+query+fragment, forcing a
//     same-origin redirect
//   - an absolute candidate with an allow-listed host is returned unchanged
//
// Unparsable input is treated the same as a non-allow-listed host.
func Resolve(raw string, allowedHosts []string) string {
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "/"
	}
	if u.Host != "" && strutils.StrListContains(allowedHosts, u.Host) {
		return raw
	}
	return resource(u)
}

// resource returns the path+query+fragment of u, with scheme and host
// stripped.  A URL with no path at all becomes "/".
func resource(u *url.URL) string {
	var b strings.Builder
	path := u.EscapedPath()
	if path == "" || !strings.HasPrefix(path, "/") {
		b.WriteString("/")
	}
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteString("#")
		b.WriteString(u.EscapedFragment())
	}
	return b.String()
}

// Absolute joins target onto base unless target is already an absolute URL,
// in which case it is returned unchanged.  The base URL's path is preserved,
// so Absolute("/oidc/return", "http://gateway/auth/login/plugin") yields
// "http://gateway/auth/login/plugin/oidc/return".
func Absolute(target, base string) string {
	if target == "" {
		return base
	}
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		return target
	}
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return base + target
}

// LooksLikeTarget reports whether an echoed state value should be
// reinterpreted as a redirect target.  The login leg smuggles the
// post-login target through the oidc state parameter, so on the return leg
// a state is only treated as a redirect when it is path-like; anything
// opaque falls back to the configured default target.
func LooksLikeTarget(state string) bool {
	return strings.Contains(state, "/")
}
