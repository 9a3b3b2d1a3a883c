// Package legacy bridges the engine to the older single-blob cache format
// kept for backward compatibility. The engine consults it only when legacy
// compatibility is enabled; every operation here is best-effort from the
// engine's point of view.
package legacy

import (
	"context"

	"github.com/stephnangue/tokenvault/credential"
)

// User is an account record in the legacy format. The legacy schema knows
// nothing of tenant profiles or alias maps; it carries just enough to
// rebuild an account stub.
type User struct {
	HomeAccountID string `json:"home_account_id"`
	Environment   string `json:"environment"`
	Username      string `json:"username"`
	Realm         string `json:"realm,omitempty"`
}

// Account converts a legacy user into an engine account record.
func (u User) Account() credential.Account {
	return credential.Account{
		HomeAccountID:     u.HomeAccountID,
		Environment:       u.Environment,
		Realm:             u.Realm,
		PreferredUsername: u.Username,
	}
}

// Bridge is the legacy-cache contract the engine consumes. Implementations
// operate over one opaque serialized blob, load-mutate-save per call. The
// legacy format never stored family refresh tokens, so family ids are
// dropped on write and never returned on read.
type Bridge interface {
	// WriteRefreshToken mirrors a refresh token into the legacy store.
	WriteRefreshToken(ctx context.Context, rt credential.RefreshToken) error

	// RefreshToken looks up the refresh token for one client and account.
	// Absence is (zero, false, nil), not an error.
	RefreshToken(ctx context.Context, clientID, homeAccountID string, environments []string) (credential.RefreshToken, bool, error)

	// RemoveUser deletes the user and every refresh token stored for them,
	// across all clients.
	RemoveUser(ctx context.Context, homeAccountID string) error

	// AllUsers lists the users known to the legacy store, filtered to the
	// given environments when non-empty.
	AllUsers(ctx context.Context, environments []string) ([]User, error)
}
