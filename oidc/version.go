package oidc

// Version of the plugin, reported in the user agent of outbound provider
// requests.  Overridden at release build time.
var Version = "2.0.0"
