// Package partition computes cache partition keys. Every collection except
// app metadata is split into named partitions so that lookups touch one
// partition instead of the whole cache; the functions here derive that
// partition name from request attributes or from a stored item.
//
// The same keys are surfaced to integrators of external persistence as the
// suggested storage key, so one partition maps to one storage blob.
package partition

import (
	"fmt"

	"github.com/stephnangue/tokenvault/credential"
)

// Kind identifies the API shape of the request asking for cache access.
type Kind int

const (
	// KindOther covers request shapes with no partitioning rule; lookups
	// fall back to a full scan.
	KindOther Kind = iota
	// KindOnBehalfOf exchanges an inbound user assertion.
	KindOnBehalfOf
	// KindClientCredential is an app-only grant.
	KindClientCredential
	// KindSilent redeems cached credentials for a known account.
	KindSilent
	// KindRemoveAccount removes one account and its credentials.
	KindRemoveAccount
	// KindAccountByID looks up one account by an explicit home account id.
	KindAccountByID
)

func (k Kind) String() string {
	switch k {
	case KindOnBehalfOf:
		return "on_behalf_of"
	case KindClientCredential:
		return "client_credential"
	case KindSilent:
		return "silent"
	case KindRemoveAccount:
		return "remove_account"
	case KindAccountByID:
		return "account_by_id"
	default:
		return "other"
	}
}

// AppKey is the partition key for app-only (client credential) tokens.
// The tenant id participates even when empty: an empty-tenant partition is
// a real partition, not "no partition".
func AppKey(clientID, tenantID string) string {
	return fmt.Sprintf("%s_%s_AppTokenCache", clientID, tenantID)
}

// ForRequest computes the partition key for a request. The boolean is
// false when no partition applies and the caller must scan all partitions,
// which is correct but O(all items).
//
// Precedence, first match wins: OBO assertion hash, app token cache key,
// target account's home account id, explicit home account id.
func ForRequest(kind Kind, clientID, tenantID, homeAccountID, assertionHash string) (string, bool) {
	switch kind {
	case KindOnBehalfOf:
		if assertionHash == "" {
			return "", false
		}
		return assertionHash, true
	case KindClientCredential:
		return AppKey(clientID, tenantID), true
	case KindSilent, KindRemoveAccount:
		if homeAccountID == "" {
			return "", false
		}
		return homeAccountID, true
	case KindAccountByID:
		return homeAccountID, true
	default:
		return "", false
	}
}

// ForAccessToken derives the partition of a stored access token: the
// assertion hash when set, else the home account id.
func ForAccessToken(at credential.AccessToken) string {
	if at.UserAssertionHash != "" {
		return at.UserAssertionHash
	}
	return at.HomeAccountID
}

// ForRefreshToken derives the partition of a stored refresh token.
func ForRefreshToken(rt credential.RefreshToken) string {
	if rt.UserAssertionHash != "" {
		return rt.UserAssertionHash
	}
	return rt.HomeAccountID
}

// ForIDToken derives the partition of a stored ID token. ID tokens are
// always keyed by home account id.
func ForIDToken(it credential.IDToken) string {
	return it.HomeAccountID
}

// ForAccount derives the partition of a stored account record.
func ForAccount(a credential.Account) string {
	return a.HomeAccountID
}
