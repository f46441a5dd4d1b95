package oidc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/magda-io/magda-auth-oidc/internal/strutils"
)

const (
	// DefaultScope is requested of the provider when no scope is configured.
	DefaultScope = "openid profile email"

	// DefaultTimeout bounds every outbound request to the provider.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxClockSkew is the slack allowed between this server's clock
	// and the provider's when validating token timestamps.  Setting it to 0
	// is allowed but increases the likelihood that valid tokens fail
	// verification on nbf/exp.
	DefaultMaxClockSkew = 120 * time.Second
)

type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration for the connection to the OIDC
// provider.  It is immutable after NewConfig.
type Config struct {
	// ClientID is the relying party id registered with the provider
	ClientID string

	// ClientSecret is the relying party secret
	ClientSecret ClientSecret

	// Issuer is a case-sensitive URL using the https (or http) scheme with no
	// query or fragment components.  Discovery metadata is fetched from
	// <Issuer>/.well-known/openid-configuration.
	Issuer string

	// Scopes requested of the provider during the authorization leg
	Scopes []string

	// RedirectURL is the single fixed redirect URI registered for this
	// provider instance, derived from the external base URL and the plugin
	// key so multiple provider instances can coexist.
	RedirectURL string

	// Timeout for every outbound provider request
	Timeout time.Duration

	// MaxClockSkew is the slack added when validating nbf/exp claims
	MaxClockSkew time.Duration

	// SupportedSigningAlgs is a list of signing algorithms accepted for
	// id_tokens.  Defaults to RS256, which every conformant provider
	// supports.
	SupportedSigningAlgs []Alg

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider
	ProviderCA string

	// Logger is an optional logger; a no-op logger is used when unset
	Logger hclog.Logger
}

// NewConfig composes a new provider config.
// Supported options: WithScopes, WithTimeout, WithMaxClockSkew,
// WithProviderCA, WithLogger
func NewConfig(issuer string, clientID string, clientSecret ClientSecret, redirectURL string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:       issuer,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:               opts.withScopes,
		Timeout:              opts.withTimeout,
		MaxClockSkew:         opts.withMaxClockSkew,
		SupportedSigningAlgs: opts.withSupportedSigningAlgs,
		ProviderCA:           opts.withProviderCA,
		Logger:               opts.withLogger,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration.  All problems are reported, not just
// the first one found.  It verifies required parameters are present but does
// not verify the issuer is discoverable via an http request.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("provider config is nil: %w", ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("client id is empty: %w", ErrInvalidParameter))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("client secret is empty: %w", ErrInvalidParameter))
	}
	switch {
	case c.Issuer == "":
		result = multierror.Append(result, fmt.Errorf("issuer is empty: %w", ErrInvalidParameter))
	default:
		u, err := url.Parse(c.Issuer)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("issuer %s is invalid: %w", c.Issuer, err))
		} else if !strutils.StrListContains([]string{"https", "http"}, u.Scheme) {
			result = multierror.Append(result, fmt.Errorf("issuer %s scheme is not http or https: %w", c.Issuer, ErrInvalidParameter))
		}
	}
	if c.RedirectURL == "" {
		result = multierror.Append(result, fmt.Errorf("redirect URL is empty: %w", ErrInvalidParameter))
	}
	if c.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("timeout is negative: %w", ErrInvalidParameter))
	}
	if c.MaxClockSkew < 0 {
		result = multierror.Append(result, fmt.Errorf("max clock skew is negative: %w", ErrInvalidParameter))
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			result = multierror.Append(result, fmt.Errorf("unsupported algorithm %s: %w", a, ErrInvalidParameter))
		}
	}
	return result.ErrorOrNil()
}

// Now returns the time used when validating token timestamps, shifted back by
// the configured clock skew so tokens within the tolerance still verify.
func (c *Config) Now() time.Time {
	return time.Now().Add(-1 * c.MaxClockSkew)
}

// HttpClient creates a new http client for the configured provider.  Every
// request carries the plugin's user agent and honors the configured timeout.
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	tr := cleanhttp.DefaultPooledTransport()

	if c.ProviderCA != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}

	return &http.Client{
		Timeout: c.Timeout,
		Transport: &userAgentTransport{
			base:      tr,
			userAgent: UserAgent(),
		},
	}, nil
}

// UserAgent returns the user-agent tag applied to outbound provider requests.
func UserAgent() string {
	return fmt.Sprintf("magda-auth-oidc/%s %s %s/%s", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// userAgentTransport stamps each outbound request with the plugin's user
// agent, leaving the wrapped transport untouched otherwise.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// per RoundTripper contract, don't mutate the caller's request
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}

// HttpClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HttpClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

// configOptions is the set of available options
type configOptions struct {
	withScopes               []string
	withTimeout              time.Duration
	withMaxClockSkew         time.Duration
	withSupportedSigningAlgs []Alg
	withProviderCA           string
	withLogger               hclog.Logger
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{
		withScopes:               []string{"openid", "profile", "email"},
		withTimeout:              DefaultTimeout,
		withMaxClockSkew:         DefaultMaxClockSkew,
		withSupportedSigningAlgs: []Alg{RS256},
		withLogger:               hclog.NewNullLogger(),
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes to request of the provider
func WithScopes(scopes []string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && len(scopes) > 0 {
			o.withScopes = scopes
		}
	}
}

// WithTimeout provides an optional timeout for outbound provider requests
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && d > 0 {
			o.withTimeout = d
		}
	}
}

// WithMaxClockSkew provides an optional clock skew tolerance for token
// timestamp validation.  Zero disables the tolerance.
func WithMaxClockSkew(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && d >= 0 {
			o.withMaxClockSkew = d
		}
	}
}

// WithSupportedSigningAlgs provides an optional list of accepted id_token
// signing algorithms
func WithSupportedSigningAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && len(algs) > 0 {
			o.withSupportedSigningAlgs = algs
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithLogger provides an optional logger
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
