package router

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"

	"github.com/magda-io/magda-auth-oidc/identity"
	"github.com/magda-io/magda-auth-oidc/oidc"
	"github.com/magda-io/magda-auth-oidc/redirect"
	"github.com/magda-io/magda-auth-oidc/session"
)

var ErrInvalidParameter = errors.New("invalid parameter")

// Options configures the sign-in flow handler.
type Options struct {
	Provider    *oidc.Provider
	Provisioner *identity.Provisioner
	Sessions    *session.Manager

	// ProviderKey is the plugin key the flow is mounted under, recorded in
	// each session it establishes.
	ProviderKey string

	// ExternalURL is the public base URL of the host application; relative
	// redirect targets are made absolute against it before the provider
	// echoes them back as state.
	ExternalURL string

	// BasePath is the mount path of this handler on the external URL, used
	// to build the post-logout return URL.
	BasePath string

	// ResultRedirect is the default post-auth target when the caller
	// supplies no redirect hint.
	ResultRedirect string

	// AllowedHosts may keep cross-host redirect targets intact; everything
	// else is reduced to a same-origin path.
	AllowedHosts []string

	// DisableLogout suppresses the logout legs even when the provider
	// advertises an end-session endpoint.
	DisableLogout bool

	Logger hclog.Logger
}

type handler struct {
	provider    *oidc.Provider
	provisioner *identity.Provisioner
	sessions    *session.Manager
	providerKey string

	externalURL     string
	defaultTarget   string
	logoutReturnURL string
	allowedHosts    []string
	logoutEnabled   bool

	logger hclog.Logger
}

// New builds the flow router.  Mount it under Options.BasePath with the
// prefix stripped.
func New(opts Options) (http.Handler, error) {
	const op = "router.New"
	switch {
	case opts.Provider == nil:
		return nil, fmt.Errorf("%s: nil provider: %w", op, ErrInvalidParameter)
	case opts.Provisioner == nil:
		return nil, fmt.Errorf("%s: nil provisioner: %w", op, ErrInvalidParameter)
	case opts.Sessions == nil:
		return nil, fmt.Errorf("%s: nil session manager: %w", op, ErrInvalidParameter)
	case opts.ProviderKey == "":
		return nil, fmt.Errorf("%s: missing provider key: %w", op, ErrInvalidParameter)
	case opts.ExternalURL == "":
		return nil, fmt.Errorf("%s: missing external URL: %w", op, ErrInvalidParameter)
	}
	if opts.ResultRedirect == "" {
		opts.ResultRedirect = "/"
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	h := &handler{
		provider:        opts.Provider,
		provisioner:     opts.Provisioner,
		sessions:        opts.Sessions,
		providerKey:     opts.ProviderKey,
		externalURL:     opts.ExternalURL,
		defaultTarget:   redirect.Absolute(opts.ResultRedirect, opts.ExternalURL),
		logoutReturnURL: redirect.Absolute(strings.TrimSuffix(opts.BasePath, "/")+"/logout/return", opts.ExternalURL),
		allowedHosts:    opts.AllowedHosts,
		logoutEnabled:   opts.Provider.LogoutSupported(opts.DisableLogout),
		logger:          opts.Logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", h.handleLogin).Methods(http.MethodGet)
	r.HandleFunc("/return", h.handleCallback).Methods(http.MethodGet)
	if h.logoutEnabled {
		r.HandleFunc("/logout", h.handleLogout).Methods(http.MethodGet)
		r.HandleFunc("/logout/return", h.handleLogoutReturn).Methods(http.MethodGet)
	}
	return r, nil
}

// handleLogin starts the authorization-code flow.  The post-login target
// rides along as state; it is not validated here because the provider
// echoes it back verbatim and the callback leg resolves it.
func (h *handler) handleLogin(w http.ResponseWriter, req *http.Request) {
	state := h.defaultTarget
	if hint := req.URL.Query().Get("redirect"); hint != "" {
		state = redirect.Absolute(hint, h.externalURL)
	}
	h.logger.Debug("starting sign-in", "state", state)
	http.Redirect(w, req, h.provider.AuthURL(state), http.StatusFound)
}

// handleCallback verifies the provider's response, provisions the user and
// establishes the session.  Any failure redirects to the resolved error
// target without a session; detail stays in the log.
func (h *handler) handleCallback(w http.ResponseWriter, req *http.Request) {
	target := h.returnTarget(req.URL.Query().Get("state"))

	token, claims, err := h.provider.VerifyCallback(req.Context(), req)
	if err != nil {
		h.errorRedirect(w, req, target, "sign-in verification failed", err)
		return
	}

	user, err := h.provisioner.Provision(req.Context(), claims)
	switch {
	case errors.Is(err, identity.ErrRoleAssignment) && user != nil:
		// user exists; the missing role grant is logged, not fatal
		h.logger.Warn("continuing sign-in without role grant", "userId", user.ID, "error", err)
	case err != nil:
		h.errorRedirect(w, req, target, provisionFailureReason(err), err)
		return
	}

	var logoutURL string
	if h.logoutEnabled && token.IdToken != "" {
		logoutURL, err = h.provider.EndSessionURL(token.IdToken, "", h.logoutReturnURL)
		if err != nil {
			h.logger.Warn("unable to build end-session URL", "error", err)
		}
	}

	data := &session.Data{
		User:        *user,
		Tokens:      *token,
		ProviderKey: h.providerKey,
		LogoutURL:   logoutURL,
	}
	if _, err := h.sessions.Establish(w, req, data); err != nil {
		h.errorRedirect(w, req, target, "unable to establish session", err)
		return
	}
	h.logger.Info("sign-in complete", "userId", user.ID)
	http.Redirect(w, req, target, http.StatusFound)
}

// handleLogout destroys the host session first, then sends the browser to
// the provider's end-session endpoint when the session holds an identity
// token, or straight to the resolved target when it does not.
func (h *handler) handleLogout(w http.ResponseWriter, req *http.Request) {
	candidate := h.defaultTarget
	if hint := req.URL.Query().Get("redirect"); hint != "" {
		candidate = redirect.Absolute(hint, h.externalURL)
	}
	target := redirect.Resolve(candidate, h.allowedHosts)

	_, data, loadErr := h.sessions.Load(req)
	if err := h.sessions.Destroy(w, req); err != nil {
		h.logger.Error("unable to destroy session", "error", err)
	}
	if loadErr != nil || data.Tokens.IdToken == "" || data.LogoutURL == "" {
		http.Redirect(w, req, target, http.StatusFound)
		return
	}

	endSession, err := withStateParam(data.LogoutURL, candidate)
	if err != nil {
		h.logger.Error("malformed end-session URL in session", "error", err)
		http.Redirect(w, req, target, http.StatusFound)
		return
	}
	http.Redirect(w, req, endSession, http.StatusFound)
}

// handleLogoutReturn finishes the logout round-trip from the provider.
func (h *handler) handleLogoutReturn(w http.ResponseWriter, req *http.Request) {
	if err := h.sessions.Destroy(w, req); err != nil {
		h.logger.Error("unable to destroy session", "error", err)
	}
	http.Redirect(w, req, h.returnTarget(req.URL.Query().Get("state")), http.StatusFound)
}

// returnTarget resolves the echoed state into a safe redirect target.
// State that does not look like a URL or path falls back to the default
// target.
func (h *handler) returnTarget(state string) string {
	candidate := h.defaultTarget
	if redirect.LooksLikeTarget(state) {
		candidate = state
	}
	return redirect.Resolve(candidate, h.allowedHosts)
}

// errorRedirect logs the failure server-side and sends the browser to the
// target with only a generic reason attached.
func (h *handler) errorRedirect(w http.ResponseWriter, req *http.Request, target, reason string, err error) {
	h.logger.Error("sign-in flow failed", "reason", reason, "error", err)
	u, parseErr := url.Parse(target)
	if parseErr != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	q.Set("result", "failure")
	q.Set("errorMessage", reason)
	u.RawQuery = q.Encode()
	http.Redirect(w, req, u.String(), http.StatusFound)
}

func provisionFailureReason(err error) string {
	switch {
	case errors.Is(err, identity.ErrIncompleteProfile):
		return "profile is missing an email address"
	case errors.Is(err, identity.ErrNoOrgMembership):
		return "user has no organization membership"
	case errors.Is(err, identity.ErrOrgNameMissing):
		return "organization name claim is missing"
	case errors.Is(err, identity.ErrOrgResolution):
		return "unable to resolve organization"
	default:
		return "unable to provision user"
	}
}

// withStateParam returns raw with its state query parameter set.
func withStateParam(raw, state string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
