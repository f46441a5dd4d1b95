// router wires the sign-in flow legs onto an HTTP mux: login initiation,
// the provider callback, and (when the provider supports it) logout and the
// post-logout callback.  Every leg exits through the redirect resolver so
// no response can send the browser to an unvetted location.
package router
