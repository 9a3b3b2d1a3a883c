package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stephnangue/tokenvault/credential"
)

func TestForRequestPrecedence(t *testing.T) {
	tests := []struct {
		name          string
		kind          Kind
		clientID      string
		tenantID      string
		homeAccountID string
		assertionHash string
		wantKey       string
		wantOK        bool
	}{
		{
			name:          "on-behalf-of uses the assertion hash",
			kind:          KindOnBehalfOf,
			homeAccountID: "ignored",
			assertionHash: "hash-1",
			wantKey:       "hash-1",
			wantOK:        true,
		},
		{
			name:   "on-behalf-of with no assertion falls back to scan",
			kind:   KindOnBehalfOf,
			wantOK: false,
		},
		{
			name:     "client credential uses the app token cache key",
			kind:     KindClientCredential,
			clientID: "client-1",
			tenantID: "tenant-1",
			wantKey:  "client-1_tenant-1_AppTokenCache",
			wantOK:   true,
		},
		{
			name:     "client credential keeps an empty tenant id",
			kind:     KindClientCredential,
			clientID: "client-1",
			wantKey:  "client-1__AppTokenCache",
			wantOK:   true,
		},
		{
			name:          "silent uses the home account id",
			kind:          KindSilent,
			homeAccountID: "uid.utid",
			wantKey:       "uid.utid",
			wantOK:        true,
		},
		{
			name:   "silent without an account triggers the scan fallback",
			kind:   KindSilent,
			wantOK: false,
		},
		{
			name:          "remove account uses the home account id",
			kind:          KindRemoveAccount,
			homeAccountID: "uid.utid",
			wantKey:       "uid.utid",
			wantOK:        true,
		},
		{
			name:          "account by id uses the supplied id",
			kind:          KindAccountByID,
			homeAccountID: "uid.utid",
			wantKey:       "uid.utid",
			wantOK:        true,
		},
		{
			name:   "other request shapes scan",
			kind:   KindOther,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := ForRequest(tt.kind, tt.clientID, tt.tenantID, tt.homeAccountID, tt.assertionHash)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantKey, key)
			}
		})
	}
}

func TestItemDerivedKeys(t *testing.T) {
	at := credential.AccessToken{HomeAccountID: "uid.utid"}
	assert.Equal(t, "uid.utid", ForAccessToken(at))

	at.UserAssertionHash = "hash"
	assert.Equal(t, "hash", ForAccessToken(at), "assertion hash wins over home account id")

	rt := credential.RefreshToken{HomeAccountID: "uid.utid", UserAssertionHash: "hash"}
	assert.Equal(t, "hash", ForRefreshToken(rt))

	idt := credential.IDToken{HomeAccountID: "uid.utid"}
	assert.Equal(t, "uid.utid", ForIDToken(idt))

	acct := credential.Account{HomeAccountID: "uid.utid"}
	assert.Equal(t, "uid.utid", ForAccount(acct))
}
