// session persists the authenticated-session payload between the callback
// leg and later requests.  A Store keeps the payload server-side keyed by a
// random session id; the Manager round-trips that id through a cookie.
package session
