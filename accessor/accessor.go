// Package accessor provides the partitioned storage layer beneath the
// token cache engine. The default backend is an in-memory, thread-safe
// radix tree; callers with external persistence implement the same
// interface against their own store.
package accessor

import (
	"errors"

	"github.com/stephnangue/tokenvault/credential"
)

var (
	ErrSaveDisabled   = errors.New("save operations disabled in accessor")
	ErrDeleteDisabled = errors.New("delete operations disabled in accessor")
	ErrListDisabled   = errors.New("list operations disabled in accessor")
	ErrTooManyItems   = errors.New("accessor item limit exceeded")
)

// Accessor is the storage contract per credential type.
//
// Deleting an absent item is not an error; it is logged and ignored.
// Listing with an empty partition key scans every partition — correct, but
// O(all items) and without any snapshot guarantee relative to concurrent
// writers.
type Accessor interface {
	SaveAccessToken(partitionKey string, at credential.AccessToken) error
	DeleteAccessToken(partitionKey string, at credential.AccessToken) error
	AccessTokens(partitionKey string) ([]credential.AccessToken, error)

	SaveRefreshToken(partitionKey string, rt credential.RefreshToken) error
	DeleteRefreshToken(partitionKey string, rt credential.RefreshToken) error
	RefreshTokens(partitionKey string) ([]credential.RefreshToken, error)

	SaveIDToken(partitionKey string, it credential.IDToken) error
	DeleteIDToken(partitionKey string, it credential.IDToken) error
	IDTokens(partitionKey string) ([]credential.IDToken, error)

	SaveAccount(partitionKey string, a credential.Account) error
	DeleteAccount(partitionKey string, a credential.Account) error
	Account(partitionKey, key string) (credential.Account, bool, error)
	Accounts(partitionKey string) ([]credential.Account, error)

	// App metadata is shared reference data, not partitioned.
	SaveAppMetadata(md credential.AppMetadata) error
	AppMetadata(environment, clientID string) (credential.AppMetadata, bool, error)
	AppMetadataAll() ([]credential.AppMetadata, error)

	Clear() error

	// HasAnyValidToken reports whether the partition currently holds any
	// unexpired access token or any refresh token.
	HasAnyValidToken(partitionKey string) (bool, error)
}
