package credential

import (
	"strings"
	"time"

	"github.com/stephnangue/tokenvault/helper"
)

// DefaultTokenType is assumed when a stored item carries no token type.
const DefaultTokenType = "Bearer"

// AccessToken is a cached access token. The zero value is not useful;
// build instances with NewAccessToken or by deserializing the cache.
type AccessToken struct {
	HomeAccountID     string          `json:"home_account_id,omitempty"`
	Environment       string          `json:"environment,omitempty"`
	Realm             string          `json:"realm,omitempty"`
	ClientID          string          `json:"client_id,omitempty"`
	Secret            string          `json:"secret,omitempty"`
	Scopes            []string        `json:"scopes,omitempty"`
	IssuedAt          helper.UnixTime `json:"issued_at,omitempty"`
	ExpiresOn         helper.UnixTime `json:"expires_on,omitempty"`
	ExtendedExpiresOn helper.UnixTime `json:"extended_expires_on,omitempty"`
	KeyID             string          `json:"key_id,omitempty"`
	TokenType         string          `json:"token_type,omitempty"`
	UserAssertionHash string          `json:"user_assertion_hash,omitempty"`
	IsADFS            bool            `json:"is_adfs,omitempty"`
}

// ownerID is the identity component of the composite key: the assertion
// hash for on-behalf-of tokens, the home account id otherwise.
func (a AccessToken) ownerID() string {
	if a.UserAssertionHash != "" {
		return a.UserAssertionHash
	}
	return a.HomeAccountID
}

// Key returns the item's unique composite key. Two access tokens with
// equal keys describe the same logical credential.
func (a AccessToken) Key() string {
	return joinKey(a.ownerID(), a.Environment, KindAccessToken, a.ClientID, a.Realm,
		NormalizeScopes(a.Scopes), a.KeyID)
}

// IDTokenKey returns the key of the ID token this access token is attached
// to.
func (a AccessToken) IDTokenKey() string {
	return joinKey(a.HomeAccountID, a.Environment, KindIDToken, a.ClientID, a.Realm)
}

// Equal reports key-based value equality.
func (a AccessToken) Equal(other AccessToken) bool {
	return a.Key() == other.Key()
}

// TokenTypeOrDefault normalizes an absent token type to Bearer.
func (a AccessToken) TokenTypeOrDefault() string {
	if a.TokenType == "" {
		return DefaultTokenType
	}
	return a.TokenType
}

// MatchesTokenType compares token types case-insensitively, treating an
// absent type as Bearer on both sides.
func (a AccessToken) MatchesTokenType(requested string) bool {
	if requested == "" {
		requested = DefaultTokenType
	}
	return strings.EqualFold(a.TokenTypeOrDefault(), requested)
}

// Expired reports whether the token's nominal lifetime has passed, with
// the caller's refresh buffer applied.
func (a AccessToken) Expired(now time.Time, buffer time.Duration) bool {
	return !a.ExpiresOn.T.After(now.Add(buffer))
}

// WithinExtendedLifetime reports whether the token is still inside its
// extended-lifetime grace window.
func (a AccessToken) WithinExtendedLifetime(now time.Time) bool {
	return !a.ExtendedExpiresOn.IsZero() && a.ExtendedExpiresOn.T.After(now)
}
