// config loads the plugin's startup configuration from the environment.
// Values are read once at startup; nothing is re-read per request.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults match the dev-cluster layout of the host application: the
// gateway on 6100, the authorization API on 6104 and this plugin on 6201.
const (
	DefaultListenPort     = 6201
	DefaultExternalURL    = "http://localhost:6100"
	DefaultResultRedirect = "/sign-in-redirect"
	DefaultAuthAPIURL     = "http://localhost:6104/v0"
	DefaultScope          = "openid profile email"
	DefaultTimeout        = 10000 * time.Millisecond
	DefaultMaxClockSkew   = 120 * time.Second
	DefaultPluginKey      = "oidc"
	DefaultPluginName     = "OpenID Connect"
)

// Config is the full startup configuration surface.
type Config struct {
	ListenPort int

	// plugin identity as registered with the host gateway
	PluginKey  string
	PluginName string
	IconURL    string

	// provider connection
	Issuer       string
	ClientID     string
	ClientSecret string
	Scope        string
	Timeout      time.Duration
	MaxClockSkew time.Duration

	// redirect handling
	ExternalURL    string
	ResultRedirect string
	AllowedHosts   []string
	DisableLogout  bool

	// provisioning
	AuthAPIURL string
	JWTSecret  string
	UserID     string
	OrgUnitID  string
	RoleID     string
	AutoMapOrg bool

	// session storage; empty DB URL selects the in-memory store
	SessionDBURL     string
	SessionTTL       time.Duration
	CookieName       string
	CookieDomain     string
	CookieSecure     bool
	SessionCookieTTL time.Duration
}

// Load reads the configuration from the environment, applying defaults for
// everything optional.  Call Validate before using the result.
func Load() (*Config, error) {
	c := &Config{
		ListenPort:     intEnv("LISTEN_PORT", DefaultListenPort),
		PluginKey:      stringEnv("AUTH_PLUGIN_KEY", DefaultPluginKey),
		PluginName:     stringEnv("AUTH_PLUGIN_NAME", DefaultPluginName),
		IconURL:        stringEnv("AUTH_PLUGIN_ICON_URL", "/icon.svg"),
		Issuer:         os.Getenv("ISSUER"),
		ClientID:       os.Getenv("CLIENT_ID"),
		ClientSecret:   os.Getenv("CLIENT_SECRET"),
		Scope:          stringEnv("SCOPE", DefaultScope),
		Timeout:        durationEnvMillis("TIMEOUT", DefaultTimeout),
		MaxClockSkew:   durationEnvSeconds("MAX_CLOCK_SKEW", DefaultMaxClockSkew),
		ExternalURL:    stringEnv("EXTERNAL_URL", DefaultExternalURL),
		ResultRedirect: stringEnv("AUTH_PLUGIN_REDIRECT_URL", DefaultResultRedirect),
		AllowedHosts:   listEnv("ALLOWED_EXTERNAL_REDIRECT_DOMAINS"),
		DisableLogout:  boolEnv("DISABLE_LOGOUT"),
		AuthAPIURL:     stringEnv("AUTH_API_URL", DefaultAuthAPIURL),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		UserID:         os.Getenv("USER_ID"),
		OrgUnitID:      os.Getenv("DEFAULT_ORG_UNIT_ID"),
		RoleID:         os.Getenv("DEFAULT_ROLE_ID"),
		AutoMapOrg:     boolEnv("AUTO_MAP_ORG"),
		SessionDBURL:   os.Getenv("SESSION_DB_URL"),
		SessionTTL:     durationEnvMillis("SESSION_TTL", 7*24*time.Hour),
		CookieName:     os.Getenv("SESSION_COOKIE_NAME"),
		CookieDomain:   os.Getenv("SESSION_COOKIE_DOMAIN"),
		CookieSecure:   boolEnv("SESSION_COOKIE_SECURE"),
	}
	c.SessionCookieTTL = c.SessionTTL
	return c, nil
}

// Validate reports every problem at once so a misconfigured deployment can
// be fixed in a single pass.
func (c *Config) Validate() error {
	const op = "config.Validate"
	var result *multierror.Error
	if c.Issuer == "" {
		result = multierror.Append(result, fmt.Errorf("ISSUER is required: %w", ErrInvalidConfig))
	} else if _, err := url.ParseRequestURI(c.Issuer); err != nil {
		result = multierror.Append(result, fmt.Errorf("ISSUER is not a valid URL: %w", ErrInvalidConfig))
	}
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("CLIENT_ID is required: %w", ErrInvalidConfig))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("CLIENT_SECRET is required: %w", ErrInvalidConfig))
	}
	if c.JWTSecret == "" {
		result = multierror.Append(result, fmt.Errorf("JWT_SECRET is required: %w", ErrInvalidConfig))
	}
	if c.UserID == "" {
		result = multierror.Append(result, fmt.Errorf("USER_ID is required: %w", ErrInvalidConfig))
	}
	if _, err := url.ParseRequestURI(c.ExternalURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("EXTERNAL_URL is not a valid URL: %w", ErrInvalidConfig))
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("LISTEN_PORT %d is out of range: %w", c.ListenPort, ErrInvalidConfig))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// BasePath is the gateway mount path for this plugin's flow routes.
func (c *Config) BasePath() string {
	return "/auth/login/plugin/" + c.PluginKey
}

// RedirectURL is the callback URL registered with the provider.
func (c *Config) RedirectURL() string {
	return strings.TrimSuffix(c.ExternalURL, "/") + c.BasePath() + "/return"
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func listEnv(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func durationEnvMillis(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func durationEnvSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
