// Package credential defines the value records held by the token cache:
// access tokens, refresh tokens, ID tokens, accounts and app metadata,
// together with their composite keys and the token-response material they
// are constructed from.
//
// Items are immutable by convention. Mutation happens by overwriting the
// stored item under the same key ("last write wins").
package credential

import "strings"

// Credential type names embedded in composite keys. These strings are part
// of the persisted schema and must not change.
const (
	KindAccessToken  = "accesstoken"
	KindRefreshToken = "refreshtoken"
	KindIDToken      = "idtoken"
	KindAccount      = "account"
	KindAppMetadata  = "appmetadata"
)

// joinKey builds a composite cache key. Keys compare case-insensitively
// with ordinal semantics, so every component is lowercased up front.
func joinKey(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "-"))
}
