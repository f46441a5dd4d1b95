package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-uuid"
)

// DefaultCookieName matches the cookie the host application's gateway
// forwards to auth plugins.
const DefaultCookieName = "magda-auth-session"

// CookieOptions controls the session-id cookie.  Zero values fall back to
// the defaults applied by NewManager.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// Manager round-trips a session id through a cookie and the payload through
// a Store.
type Manager struct {
	store   Store
	options CookieOptions
}

func NewManager(store Store, options CookieOptions) (*Manager, error) {
	const op = "session.NewManager"
	if store == nil {
		return nil, fmt.Errorf("%s: nil store: %w", op, ErrInvalidParameter)
	}
	if options.Name == "" {
		options.Name = DefaultCookieName
	}
	if options.Path == "" {
		options.Path = "/"
	}
	if options.MaxAge <= 0 {
		options.MaxAge = DefaultTTL
	}
	if options.SameSite == 0 {
		options.SameSite = http.SameSiteLaxMode
	}
	return &Manager{store: store, options: options}, nil
}

// Load returns the live session attached to the request, or ErrNotFound
// when the request carries no cookie or the session has expired.
func (m *Manager) Load(req *http.Request) (string, *Data, error) {
	cookie, err := req.Cookie(m.options.Name)
	if err != nil {
		return "", nil, ErrNotFound
	}
	data, err := m.store.Get(req.Context(), cookie.Value)
	if err != nil {
		return "", nil, err
	}
	return cookie.Value, data, nil
}

// Establish saves the payload under a fresh session id and sets the cookie.
func (m *Manager) Establish(w http.ResponseWriter, req *http.Request, data *Data) (string, error) {
	const op = "Manager.Establish"
	sid, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate session id: %w", op, err)
	}
	if err := m.store.Save(req.Context(), sid, data); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	http.SetCookie(w, m.cookie(sid, m.options.MaxAge))
	return sid, nil
}

// Destroy removes the session from the store and expires the cookie.  Safe
// to call on requests without a session.
func (m *Manager) Destroy(w http.ResponseWriter, req *http.Request) error {
	const op = "Manager.Destroy"
	cookie, err := req.Cookie(m.options.Name)
	if err != nil {
		return nil
	}
	if err := m.store.Destroy(req.Context(), cookie.Value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	http.SetCookie(w, m.cookie("", -time.Second))
	return nil
}

func (m *Manager) cookie(value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     m.options.Name,
		Value:    value,
		Path:     m.options.Path,
		Domain:   m.options.Domain,
		MaxAge:   int(maxAge / time.Second),
		Secure:   m.options.Secure,
		HttpOnly: m.options.HTTPOnly,
		SameSite: m.options.SameSite,
	}
}
