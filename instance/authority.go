// Package instance handles identity-provider instance metadata: authority
// parsing, the static known-environment table, and a caching adapter over
// the network instance-discovery resolver the host application supplies.
package instance

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-secure-stdlib/strutil"
)

// Tenant aliases that address more than one tenant. Cache reads against
// them cannot pin a realm.
var multiTenantAliases = []string{"common", "organizations", "consumers"}

// Authority identifies the token endpoint a request targets:
// https://<host>/<tenant>.
type Authority struct {
	Raw    string
	Host   string
	Tenant string
	// ADFS authorities (path "adfs") omit client_info and use UPN
	// usernames.
	IsADFS bool
}

// ParseAuthority splits an authority URL into host and tenant.
func ParseAuthority(raw string) (Authority, error) {
	if raw == "" {
		return Authority{}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Authority{}, fmt.Errorf("parsing authority %q: %w", raw, err)
	}
	if u.Host == "" {
		return Authority{}, fmt.Errorf("authority %q has no host", raw)
	}
	a := Authority{Raw: raw, Host: strings.ToLower(u.Hostname())}
	if segs := strings.Split(strings.Trim(u.Path, "/"), "/"); len(segs) > 0 && segs[0] != "" {
		a.Tenant = strings.ToLower(segs[0])
	}
	a.IsADFS = a.Tenant == "adfs"
	return a, nil
}

// IsMultiTenant reports whether the authority addresses a tenant alias
// (/common, /organizations, /consumers) rather than one concrete tenant.
func (a Authority) IsMultiTenant() bool {
	return a.Tenant == "" || strutil.StrListContains(multiTenantAliases, a.Tenant)
}

// CacheTenant is the tenant value used in cache keys: the concrete tenant,
// or empty for tenant-less and alias authorities.
func (a Authority) CacheTenant() string {
	if a.IsMultiTenant() {
		return ""
	}
	return a.Tenant
}
