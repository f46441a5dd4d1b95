// magda-auth-oidc is a Magda authentication plugin that delegates sign-in
// to an OpenID Connect provider.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"

	"github.com/magda-io/magda-auth-oidc/config"
	"github.com/magda-io/magda-auth-oidc/identity"
	"github.com/magda-io/magda-auth-oidc/magda"
	"github.com/magda-io/magda-auth-oidc/oidc"
	"github.com/magda-io/magda-auth-oidc/router"
	"github.com/magda-io/magda-auth-oidc/session"
)

func main() {
	// a .env file is a dev convenience; absence is fine
	_ = godotenv.Load()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "magda-auth-oidc",
		Level:      hclog.LevelFromString(envOr("LOG_LEVEL", "info")),
		JSONFormat: true,
	})

	if err := run(logger); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger hclog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	providerConfig, err := oidc.NewConfig(cfg.Issuer, cfg.ClientID, oidc.ClientSecret(cfg.ClientSecret), cfg.RedirectURL(),
		oidc.WithScopes(strings.Fields(cfg.Scope)),
		oidc.WithTimeout(cfg.Timeout),
		oidc.WithMaxClockSkew(cfg.MaxClockSkew),
		oidc.WithLogger(logger.Named("oidc")),
	)
	if err != nil {
		return err
	}
	provider, err := oidc.NewProvider(providerConfig)
	if err != nil {
		return err
	}

	authAPI, err := magda.NewClient(cfg.AuthAPIURL, cfg.JWTSecret, cfg.UserID, cfg.Timeout, logger.Named("magda"))
	if err != nil {
		return err
	}
	provisioner, err := identity.NewProvisioner(authAPI, cfg.PluginKey,
		identity.NewOrgStrategy(cfg.AutoMapOrg, cfg.OrgUnitID),
		identity.NewRoleStrategy(cfg.RoleID, logger.Named("identity")),
		logger.Named("identity"),
	)
	if err != nil {
		return err
	}

	store, err := newSessionStore(cfg, logger)
	if err != nil {
		return err
	}
	sessions, err := session.NewManager(store, session.CookieOptions{
		Name:     cfg.CookieName,
		Domain:   cfg.CookieDomain,
		MaxAge:   cfg.SessionCookieTTL,
		Secure:   cfg.CookieSecure,
		HTTPOnly: true,
	})
	if err != nil {
		return err
	}

	flow, err := router.New(router.Options{
		Provider:       provider,
		Provisioner:    provisioner,
		Sessions:       sessions,
		ProviderKey:    cfg.PluginKey,
		ExternalURL:    cfg.ExternalURL,
		BasePath:       cfg.BasePath(),
		ResultRedirect: cfg.ResultRedirect,
		AllowedHosts:   cfg.AllowedHosts,
		DisableLogout:  cfg.DisableLogout,
		Logger:         logger.Named("flow"),
	})
	if err != nil {
		return err
	}

	root := mux.NewRouter()
	base := cfg.BasePath()
	root.Path(base).Handler(http.RedirectHandler(base+"/", http.StatusMovedPermanently))
	root.PathPrefix(base + "/").Handler(http.StripPrefix(base, flow))
	root.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	root.HandleFunc("/config", handlePluginConfig(cfg, provider)).Methods(http.MethodGet)
	root.HandleFunc("/icon.svg", handleIcon).Methods(http.MethodGet)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ListenPort),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr, "basePath", base, "issuer", cfg.Issuer)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func newSessionStore(cfg *config.Config, logger hclog.Logger) (session.Store, error) {
	if cfg.SessionDBURL == "" {
		logger.Warn("no session database configured, sessions will not survive a restart")
		return session.NewMemoryStore(cfg.SessionTTL), nil
	}
	store, err := session.NewPostgresStore(cfg.SessionDBURL, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := store.EnsureTable(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

// handlePluginConfig serves the auth plugin descriptor the host gateway
// fetches at registration time.
func handlePluginConfig(cfg *config.Config, provider *oidc.Provider) http.HandlerFunc {
	descriptor := map[string]interface{}{
		"key":                  cfg.PluginKey,
		"name":                 cfg.PluginName,
		"iconUrl":              cfg.IconURL,
		"authenticationMethod": "IDP-URI-REDIRECTION",
	}
	if provider.LogoutSupported(cfg.DisableLogout) {
		descriptor["logoutUrl"] = cfg.BasePath() + "/logout"
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(descriptor)
	}
}

func handleIcon(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(iconSVG)
}

var iconSVG = []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" width="24" height="24">
  <circle cx="12" cy="12" r="10" fill="#f78f1e"/>
  <path d="M8 12a4 4 0 1 1 8 0 4 4 0 0 1-8 0zm4-2a2 2 0 1 0 0 4 2 2 0 0 0 0-4z" fill="#fff"/>
</svg>
`)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
