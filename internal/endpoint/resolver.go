// Package endpoint derives per-tenant connection URLs for the
// websocket and event-stream transports. All functions are pure:
// no network calls, no failure paths, a host that cannot be parsed
// degrades to the default tenant.
package endpoint

import (
	"net"
	"net/url"
	"strings"
)

// DefaultTenant is used for loopback hosts, bare IPs, and anything
// that cannot be split into a tenant-bearing hostname.
const DefaultTenant = "default"

// Resolver shapes connection URLs from configured base URLs and the
// current hostname.
type Resolver struct {
	host    string
	apiBase string
	wsBase  string
}

// New creates a resolver. apiBase is the http(s) base for the event
// stream, wsBase is the ws(s) base for persistent sockets.
func New(host, apiBase, wsBase string) Resolver {
	return Resolver{
		host:    host,
		apiBase: strings.TrimRight(apiBase, "/"),
		wsBase:  strings.TrimRight(wsBase, "/"),
	}
}

// Tenant extracts the tenant identifier from the current host.
// Loopback names and numeric IPs map to "localhost" (the unmodified
// base); "acme.localhost" and "acme.example.com" map to "acme".
func Tenant(host string) string {
	h := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if h == "" {
		return DefaultTenant
	}
	if h == "localhost" || net.ParseIP(h) != nil {
		return "localhost"
	}

	parts := strings.Split(h, ".")
	switch {
	case len(parts) == 2 && parts[1] == "localhost":
		return parts[0]
	case len(parts) >= 3:
		return parts[0]
	}
	return DefaultTenant
}

// Tenant returns the tenant for the resolver's configured host.
func (r Resolver) Tenant() string {
	return Tenant(r.host)
}

// spliceTenant inserts the tenant label into a base URL's authority.
// The localhost and default tenants leave the base unmodified so
// connectivity never hard-fails on URL shaping.
func spliceTenant(base, tenant string) string {
	if tenant == "localhost" || tenant == DefaultTenant {
		return base
	}
	return strings.Replace(base, "://", "://"+tenant+".", 1)
}

// APIBase returns the tenant-adjusted HTTP base URL.
func (r Resolver) APIBase() string {
	return spliceTenant(r.apiBase, r.Tenant())
}

// SocketURL returns the persistent-socket URL for a path such as
// "chat", "direct/chats/{id}", or "notifications".
func (r Resolver) SocketURL(path string, params url.Values) string {
	u := spliceTenant(r.wsBase, r.Tenant()) + "/ws/" + path
	if q := params.Encode(); q != "" {
		u += "?" + q
	}
	return u
}

// StreamURL returns the one-way event-stream URL for a path such as
// "stream".
func (r Resolver) StreamURL(path string, params url.Values) string {
	u := spliceTenant(r.apiBase, r.Tenant()) + "/v1/sse/" + path
	if q := params.Encode(); q != "" {
		u += "?" + q
	}
	return u
}
