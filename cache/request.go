package cache

import (
	"github.com/stephnangue/tokenvault/helper"
	"github.com/stephnangue/tokenvault/instance"
	"github.com/stephnangue/tokenvault/partition"
)

// Request carries the parameters of one cache operation. The engine never
// sees grant-flow details, only what it needs to partition, filter and
// stamp cache entries.
type Request struct {
	// Kind selects the partitioning rule (see partition.Kind).
	Kind     partition.Kind
	ClientID string
	// Authority is the raw authority URL the request targets. An empty
	// authority makes token lookups miss immediately.
	Authority string
	Scopes    []string
	// HomeAccountID targets one account for silent, remove-account and
	// account-by-id requests.
	HomeAccountID string
	// UserAssertion is the inbound on-behalf-of assertion. Only its hash
	// ever reaches cache keys or logs.
	UserAssertion string
	// KeyID constrains lookups to proof-of-possession tokens bound to
	// this key. Empty matches only unbound tokens.
	KeyID string
	// TokenType defaults to Bearer when empty.
	TokenType string
}

// assertionHash returns the partition-safe digest of the user assertion
// for on-behalf-of requests, empty otherwise.
func (r Request) assertionHash() string {
	if r.Kind != partition.KindOnBehalfOf {
		return ""
	}
	return helper.HashAssertion(r.UserAssertion)
}

// partitionKey computes the request's partition. ok is false when the
// request has no partitioning rule and lookups must scan all partitions.
func (r Request) partitionKey(auth instance.Authority) (string, bool) {
	return partition.ForRequest(r.Kind, r.ClientID, auth.CacheTenant(), r.HomeAccountID, r.assertionHash())
}

// isAppCache reports whether the request runs against the app-level token
// cache.
func (r Request) isAppCache() bool {
	return r.Kind == partition.KindClientCredential
}
