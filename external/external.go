// Package external defines the serialization contract for hosts that
// persist the cache outside the process: lifecycle notification hooks
// around every externally visible cache operation, and serializer
// wrappers including an encrypting one for untrusted storage.
package external

import (
	"context"
	"time"

	"github.com/stephnangue/tokenvault/credential"
)

// Notification is the record passed to every hook invocation.
type Notification struct {
	// ClientID is the application the operation runs for.
	ClientID string
	// Account is the account the operation affects, nil for app-level or
	// account-less operations.
	Account *credential.Account
	// StateChanged reports whether the operation mutated the cache. Hosts
	// typically persist only when true.
	StateChanged bool
	// IsAppCache marks operations against the app-level (client
	// credential) token cache.
	IsAppCache bool
	// HasTokens reports whether any token currently exists in the
	// operation's partition.
	HasTokens bool
	// SuggestedKey is the partition-derived key under which a host should
	// store this operation's blob, so one partition maps to one blob.
	SuggestedKey string
	// SuggestedExpiry is the latest credential expiry seen, usable as a
	// storage TTL. Zero when unknown.
	SuggestedExpiry time.Time
}

// Hook is one lifecycle callback. A hook error aborts the operation.
type Hook func(ctx context.Context, n Notification) error

// Hooks carries the three lifecycle notification points. Any field may be
// nil; the zero value disables external serialization entirely.
type Hooks struct {
	// BeforeAccess runs before the engine reads cache state, giving the
	// host a chance to load and deserialize its persisted blob.
	BeforeAccess Hook
	// BeforeWrite runs after BeforeAccess and before any mutation, only
	// on operations that may write.
	BeforeWrite Hook
	// AfterAccess runs after the operation completes; StateChanged tells
	// the host whether to persist.
	AfterAccess Hook
}

// Empty reports whether no hook is configured.
func (h Hooks) Empty() bool {
	return h.BeforeAccess == nil && h.BeforeWrite == nil && h.AfterAccess == nil
}

// Marshaler serializes cache contents to the cache's JSON schema.
type Marshaler interface {
	Marshal() ([]byte, error)
}

// Unmarshaler replaces cache contents from serialized form.
type Unmarshaler interface {
	Unmarshal(data []byte) error
}

// Serializer is the full external-serialization surface of a cache.
type Serializer interface {
	Marshaler
	Unmarshaler
}
