package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider provides integration with an OIDC provider using the typical
// 3-legged authorization code flow.  It is created once at startup and is
// safe for concurrent use by all request handling paths: after NewProvider
// returns, nothing in it is ever mutated.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	metadata ProviderMetadata
	client   *http.Client
}

// NewProvider creates and initializes a Provider.  Initializing the provider
// includes an http request to the issuer's discovery endpoint; failure there
// is fatal — the plugin must not start serving without a provider.  Known
// provider quirks are patched into the discovered metadata before it is
// frozen.
func NewProvider(c *Config) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	client, err := c.HttpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	c.Logger.Info("fetching provider discovery document", "issuer", c.Issuer)

	ctx, cancel := context.WithTimeout(HttpClientContext(context.Background(), client), c.Timeout)
	defer cancel()
	provider, err := oidc.NewProvider(ctx, c.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to discover provider %s: %w: %v", op, c.Issuer, ErrDiscoveryFailed, err)
	}

	var md ProviderMetadata
	if err := provider.Claims(&md); err != nil {
		return nil, fmt.Errorf("%s: malformed provider metadata: %w: %v", op, ErrDiscoveryFailed, err)
	}

	issuerURL, err := url.Parse(c.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: issuer %s is invalid: %w", op, c.Issuer, err)
	}
	md = applyQuirks(md, issuerURL.Host)

	c.Logger.Info("provider ready",
		"client-id", c.ClientID,
		"scopes", c.Scopes,
		"timeout", c.Timeout.String(),
		"max-clock-skew", c.MaxClockSkew.String(),
		"end-session-endpoint", md.EndSessionEndpoint,
	)

	return &Provider{
		config:   c,
		provider: provider,
		metadata: md,
		client:   client,
	}, nil
}

// Metadata returns the discovered (and quirk-patched) provider metadata.
func (p *Provider) Metadata() ProviderMetadata {
	return p.metadata
}

// Config returns the provider's immutable config.
func (p *Provider) Config() *Config {
	return p.config
}

// LogoutSupported reports whether RP-initiated logout is available.  Logout
// is available only when the provider advertises (or a quirk synthesized) an
// end-session endpoint and configuration has not explicitly disabled it.  An
// absent endpoint makes logout unconditionally unavailable regardless of
// configuration.
func (p *Provider) LogoutSupported(disabledByConfig bool) bool {
	if p.metadata.EndSessionEndpoint == "" {
		return false
	}
	return !disabledByConfig
}

// AuthURL generates the URL used to kick off the authorization code flow
// with the provider.  The state value is echoed back verbatim by the provider
// on the return leg; it is treated as untrusted input there and re-validated
// before any redirect.
func (p *Provider) AuthURL(state string) string {
	return p.oauth2Config().AuthCodeURL(state)
}

// VerifyCallback verifies the provider's authorization response: it
// short-circuits on an error response, exchanges the authorization code,
// validates the id_token (signature, issuer, audience, and nbf/exp with the
// configured clock-skew slack) and merges userinfo claims when the provider
// exposes a userinfo endpoint.  Any failure means no identity — callers must
// route to their error path rather than treating the user as anonymous.
func (p *Provider) VerifyCallback(ctx context.Context, req *http.Request) (*Token, *Claims, error) {
	const op = "Provider.VerifyCallback"

	// get parameters from either the body or query parameters.
	// FormValue prioritizes body values, if found.
	if errCode := req.FormValue("error"); errCode != "" {
		return nil, nil, fmt.Errorf("%s: authorization response error %q (%s): %w",
			op, errCode, req.FormValue("error_description"), ErrAuthenticationFail)
	}
	code := req.FormValue("code")
	if code == "" {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrMissingAuthCode)
	}

	ctx, cancel := context.WithTimeout(HttpClientContext(ctx, p.client), p.config.Timeout)
	defer cancel()

	oauth2Token, err := p.oauth2Config().Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}

	rawIdToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIdToken)
	}

	claims, err := p.verifyIdToken(ctx, rawIdToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if p.metadata.UserInfoEndpoint != "" {
		userInfoClaims, err := p.userInfo(ctx, oauth2.StaticTokenSource(oauth2Token))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}
		claims.merge(*userInfoClaims)
	}

	t := &Token{
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
		Expiry:       oauth2Token.Expiry,
		IdToken:      rawIdToken,
	}
	return t, claims, nil
}

// verifyIdToken verifies the inbound id_token has been signed by the
// provider and carries the expected issuer and audience.  Timestamp checks
// run against a clock shifted back by the configured skew; nbf is checked
// here explicitly since the underlying library only covers exp.
func (p *Provider) verifyIdToken(ctx context.Context, rawIdToken string) (*Claims, error) {
	const op = "Provider.verifyIdToken"
	algs := make([]string, 0, len(p.config.SupportedSigningAlgs))
	for _, a := range p.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	verifier := p.provider.Verifier(&oidc.Config{
		ClientID:             p.config.ClientID,
		SupportedSigningAlgs: algs,
		Now:                  p.config.Now,
	})
	idToken, err := verifier.Verify(ctx, rawIdToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrVerificationFailed, err)
	}

	var timestamps struct {
		NotBefore int64 `json:"nbf"`
	}
	if err := idToken.Claims(&timestamps); err != nil {
		return nil, fmt.Errorf("%s: unable to parse id_token claims: %w", op, err)
	}
	if timestamps.NotBefore != 0 {
		nbf := time.Unix(timestamps.NotBefore, 0)
		if nbf.After(time.Now().Add(p.config.MaxClockSkew)) {
			return nil, fmt.Errorf("%s: id_token not valid before %s: %w", op, nbf, ErrTokenNotYetValid)
		}
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to parse id_token claims: %w", op, err)
	}
	return &claims, nil
}

// userInfo gets the userinfo claims from the provider using the token
// produced by the tokenSource.
func (p *Provider) userInfo(ctx context.Context, tokenSource oauth2.TokenSource) (*Claims, error) {
	const op = "Provider.userInfo"
	userinfo, err := p.provider.UserInfo(ctx, tokenSource)
	if err != nil {
		return nil, fmt.Errorf("%s: provider UserInfo request failed: %w: %v", op, ErrUserInfoFailed, err)
	}
	var claims Claims
	if err := userinfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: failed to get UserInfo claims: %w: %v", op, ErrUserInfoFailed, err)
	}
	return &claims, nil
}

// EndSessionURL builds the provider's RP-initiated logout URL.  The id token
// hint, opaque state and post-logout return URL are all optional; empty
// values are omitted from the query.
func (p *Provider) EndSessionURL(idTokenHint, state, postLogoutRedirectURI string) (string, error) {
	const op = "Provider.EndSessionURL"
	if p.metadata.EndSessionEndpoint == "" {
		return "", fmt.Errorf("%s: %w", op, ErrLogoutNotSupported)
	}
	u, err := url.Parse(p.metadata.EndSessionEndpoint)
	if err != nil {
		return "", fmt.Errorf("%s: end session endpoint is invalid: %w", op, err)
	}
	q := u.Query()
	q.Set("client_id", p.config.ClientID)
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if state != "" {
		q.Set("state", state)
	}
	if postLogoutRedirectURI != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *Provider) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       p.config.Scopes,
	}
}
