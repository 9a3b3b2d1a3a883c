package credential

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// UsernameSentinel is stored when the identity token carries no usable
// username claim. The cache schema forbids empty username fields for
// compatibility with the legacy format.
const UsernameSentinel = "missing_from_the_token_response"

// IDTokenClaims carries the subset of identity-token claims the cache
// engine needs. The token is decoded without signature verification; the
// transport layer is responsible for validation before the response ever
// reaches the cache.
type IDTokenClaims struct {
	Subject           string
	PreferredUsername string
	UPN               string
	ObjectID          string
	TenantID          string
	Name              string
	Issuer            string
}

// ParseIDTokenClaims decodes a raw identity token.
func ParseIDTokenClaims(raw string) (IDTokenClaims, error) {
	var out IDTokenClaims
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return out, fmt.Errorf("decoding identity token: %w", err)
	}

	str := func(key string) string {
		if v, ok := claims[key].(string); ok {
			return v
		}
		return ""
	}
	out.Subject = str("sub")
	out.PreferredUsername = str("preferred_username")
	out.UPN = str("upn")
	out.ObjectID = str("oid")
	out.TenantID = str("tid")
	out.Name = str("name")
	out.Issuer = str("iss")
	return out, nil
}

// Username resolves the display username. ADFS deployments use the UPN
// claim; everything else uses preferred_username with the sentinel
// substituted when absent.
func (c IDTokenClaims) Username(isADFS bool) string {
	if isADFS {
		if c.UPN != "" {
			return c.UPN
		}
		return UsernameSentinel
	}
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return UsernameSentinel
}

// LocalAccountID is the tenant-local account identifier: the oid claim
// when present, else the subject.
func (c IDTokenClaims) LocalAccountID() string {
	if c.ObjectID != "" {
		return c.ObjectID
	}
	return c.Subject
}
