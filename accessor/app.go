package accessor

import (
	"github.com/stephnangue/tokenvault/credential"
	"github.com/stephnangue/tokenvault/logger"
)

// AppOnly wraps an accessor for client-credential caches. App-only flows
// never produce refresh tokens, ID tokens or accounts, so those writes are
// dropped instead of stored.
type AppOnly struct {
	Accessor
	logger logger.Logger
}

// ForApp wraps an accessor with app-only write semantics.
func ForApp(inner Accessor, log logger.Logger) *AppOnly {
	if log == nil {
		log = logger.NewNop()
	}
	return &AppOnly{Accessor: inner, logger: log.WithSubsystem("accessor")}
}

func (a *AppOnly) SaveRefreshToken(partitionKey string, rt credential.RefreshToken) error {
	a.logger.Debug("dropping refresh token write on app-only cache")
	return nil
}

func (a *AppOnly) SaveIDToken(partitionKey string, it credential.IDToken) error {
	a.logger.Debug("dropping id token write on app-only cache")
	return nil
}

func (a *AppOnly) SaveAccount(partitionKey string, acct credential.Account) error {
	a.logger.Debug("dropping account write on app-only cache")
	return nil
}
