package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephnangue/tokenvault/accessor"
	"github.com/stephnangue/tokenvault/credential"
	"github.com/stephnangue/tokenvault/external"
	"github.com/stephnangue/tokenvault/helper"
	"github.com/stephnangue/tokenvault/legacy"
	"github.com/stephnangue/tokenvault/logger"
	"github.com/stephnangue/tokenvault/partition"
)

const (
	testAuthority      = "https://login.microsoftonline.com/tenant1"
	testAliasAuthority = "https://login.windows.net/tenant1"
	// login.microsoftonline.com's preferred cache environment in the
	// static table
	testCacheEnv = "login.windows.net"
)

func unsignedJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	body, err := json.Marshal(claims)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + "."
}

func fakeClientInfo(t *testing.T, uid, utid string) string {
	t.Helper()
	body, err := json.Marshal(map[string]string{"uid": uid, "utid": utid})
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(body)
}

func userTokenResponse(t *testing.T) credential.TokenResponse {
	now := time.Now()
	return credential.TokenResponse{
		AccessToken:  "at-secret",
		RefreshToken: "rt-secret",
		IDToken: unsignedJWT(t, map[string]interface{}{
			"sub":                "sub1",
			"preferred_username": "user@example.com",
			"oid":                "oid1",
			"tid":                "tenant1",
		}),
		ClientInfo:    fakeClientInfo(t, "uid", "utid"),
		GrantedScopes: []string{"user.read"},
		IssuedAt:      now,
		ExpiresOn:     now.Add(time.Hour),
	}
}

func silentRequest() Request {
	return Request{
		Kind:          partition.KindSilent,
		ClientID:      "client-a",
		Authority:     testAuthority,
		Scopes:        []string{"user.read"},
		HomeAccountID: "uid.utid",
	}
}

func newTestCache(t *testing.T, mutate func(*Config)) *Cache {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = logger.NewNop()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func snapshotOf(t *testing.T, c *Cache) serializedCache {
	t.Helper()
	raw, err := c.Marshal()
	require.NoError(t, err)
	var snap serializedCache
	require.NoError(t, json.Unmarshal(raw, &snap))
	return snap
}

func TestSaveStampsPreferredEnvironment(t *testing.T) {
	c := newTestCache(t, nil)
	res, err := c.SaveTokenResponse(context.Background(), silentRequest(), userTokenResponse(t))
	require.NoError(t, err)
	require.NotNil(t, res.AccessToken)
	assert.Equal(t, testCacheEnv, res.AccessToken.Environment)
	require.NotNil(t, res.Account)
	assert.Equal(t, "user@example.com", res.Account.PreferredUsername)
	assert.Equal(t, "uid.utid", res.Account.HomeAccountID)
}

func TestPartitionConvergenceAcrossAliases(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	req := silentRequest()
	_, err := c.SaveTokenResponse(ctx, req, userTokenResponse(t))
	require.NoError(t, err)

	// same logical token acquired via an equivalent alias
	req.Authority = testAliasAuthority
	_, err = c.SaveTokenResponse(ctx, req, userTokenResponse(t))
	require.NoError(t, err)

	snap := snapshotOf(t, c)
	assert.Len(t, snap.AccessTokens, 1, "alias saves must converge onto one entry")
	assert.Len(t, snap.RefreshTokens, 1)
	assert.Len(t, snap.Accounts, 1)
}

func TestScopeSupersession(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	req := silentRequest()
	tr := userTokenResponse(t)
	tr.GrantedScopes = []string{"mail.read", "user.read"}
	_, err := c.SaveTokenResponse(ctx, req, tr)
	require.NoError(t, err)

	// intersecting scope set supersedes the stored token
	tr2 := userTokenResponse(t)
	tr2.AccessToken = "at-secret-2"
	tr2.GrantedScopes = []string{"user.read", "calendars.read"}
	_, err = c.SaveTokenResponse(ctx, req, tr2)
	require.NoError(t, err)

	// disjoint scope set is untouched
	tr3 := userTokenResponse(t)
	tr3.AccessToken = "at-secret-3"
	tr3.GrantedScopes = []string{"files.read"}
	_, err = c.SaveTokenResponse(ctx, req, tr3)
	require.NoError(t, err)

	snap := snapshotOf(t, c)
	require.Len(t, snap.AccessTokens, 2)
	secrets := make(map[string]bool)
	for _, at := range snap.AccessTokens {
		secrets[at.Secret] = true
	}
	assert.True(t, secrets["at-secret-2"])
	assert.True(t, secrets["at-secret-3"])
	assert.False(t, secrets["at-secret"], "superseded token must be evicted")
	assert.GreaterOrEqual(t, c.Stats().Evictions, uint64(1))
}

func TestFindAccessTokenHitAndScopeMiss(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	_, err := c.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	require.NoError(t, err)

	res, ok, err := c.FindAccessToken(ctx, silentRequest())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "at-secret", res.Token.Secret)
	assert.False(t, res.ExtendedLifetime)

	// reserved scopes do not defeat the match
	req := silentRequest()
	req.Scopes = []string{"user.read", "openid", "profile"}
	_, ok, err = c.FindAccessToken(ctx, req)
	require.NoError(t, err)
	assert.True(t, ok)

	req.Scopes = []string{"mail.send"}
	_, ok, err = c.FindAccessToken(ctx, req)
	require.NoError(t, err)
	assert.False(t, ok)

	// empty authority is an immediate miss
	req = silentRequest()
	req.Authority = ""
	_, ok, err = c.FindAccessToken(ctx, req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindAccessTokenViaAlias(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	_, err := c.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	require.NoError(t, err)

	req := silentRequest()
	req.Authority = testAliasAuthority
	_, ok, err := c.FindAccessToken(ctx, req)
	require.NoError(t, err)
	assert.True(t, ok, "equivalent alias must hit the same entry")
}

func TestAppOnlyTokenReuse(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	now := time.Now()
	req := Request{
		Kind:      partition.KindClientCredential,
		ClientID:  "client-a",
		Authority: testAuthority,
		Scopes:    []string{"https://resource.example/.default"},
	}
	tr := credential.TokenResponse{
		AccessToken:   "app-at",
		GrantedScopes: req.Scopes,
		IssuedAt:      now,
		ExpiresOn:     now.Add(3600 * time.Second),
	}
	_, err := c.SaveTokenResponse(ctx, req, tr)
	require.NoError(t, err)

	res, ok, err := c.FindAccessToken(ctx, req)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "app-at", res.Token.Secret)

	other := req
	other.Scopes = []string{"https://other.example/.default"}
	_, ok, err = c.FindAccessToken(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAmbiguousMatch(t *testing.T) {
	c := newTestCache(t, nil)
	now := time.Now()

	at1 := credential.AccessToken{
		HomeAccountID: "uid.utid",
		Environment:   testCacheEnv,
		Realm:         "tenant1",
		ClientID:      "client-a",
		Secret:        "s1",
		Scopes:        []string{"user.read"},
		ExpiresOn:     helper.NewUnixTime(now.Add(time.Hour)),
		KeyID:         "kid1",
	}
	at2 := at1
	at2.Secret = "s2"
	at2.KeyID = "kid2"

	raw, err := json.Marshal(serializedCache{
		Version: serializedVersion,
		AccessTokens: map[string]credential.AccessToken{
			at1.Key(): at1,
			at2.Key(): at2,
		},
	})
	require.NoError(t, err)
	require.NoError(t, c.Unmarshal(raw))

	_, _, err = c.FindAccessToken(context.Background(), silentRequest())
	assert.ErrorIs(t, err, ErrAmbiguousMatch)
	assert.Equal(t, uint64(1), c.Stats().Ambiguous)

	// pinning the key id resolves the ambiguity... once only one survives
	req := silentRequest()
	req.KeyID = "kid1"
	_, _, err = c.FindAccessToken(context.Background(), req)
	assert.ErrorIs(t, err, ErrAmbiguousMatch, "key id is checked after ambiguity detection")
}

func TestKeyIDMismatchIsMiss(t *testing.T) {
	c := newTestCache(t, nil)
	now := time.Now()

	at := credential.AccessToken{
		HomeAccountID: "uid.utid",
		Environment:   testCacheEnv,
		Realm:         "tenant1",
		ClientID:      "client-a",
		Secret:        "bound",
		Scopes:        []string{"user.read"},
		ExpiresOn:     helper.NewUnixTime(now.Add(time.Hour)),
		KeyID:         "kid1",
	}
	raw, err := json.Marshal(serializedCache{
		Version:      serializedVersion,
		AccessTokens: map[string]credential.AccessToken{at.Key(): at},
	})
	require.NoError(t, err)
	require.NoError(t, c.Unmarshal(raw))

	// unbound request must not receive a bound token
	_, ok, err := c.FindAccessToken(context.Background(), silentRequest())
	require.NoError(t, err)
	assert.False(t, ok)

	req := silentRequest()
	req.KeyID = "kid1"
	res, ok, err := c.FindAccessToken(context.Background(), req)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bound", res.Token.Secret)
}

func TestCorruptExpiryTreatedAsMiss(t *testing.T) {
	c := newTestCache(t, nil)
	at := credential.AccessToken{
		HomeAccountID: "uid.utid",
		Environment:   testCacheEnv,
		Realm:         "tenant1",
		ClientID:      "client-a",
		Secret:        "corrupt",
		Scopes:        []string{"user.read"},
		ExpiresOn:     helper.NewUnixTime(time.Now().Add(10 * 365 * 24 * time.Hour)),
	}
	raw, err := json.Marshal(serializedCache{
		Version:      serializedVersion,
		AccessTokens: map[string]credential.AccessToken{at.Key(): at},
	})
	require.NoError(t, err)
	require.NoError(t, c.Unmarshal(raw))

	_, ok, err := c.FindAccessToken(context.Background(), silentRequest())
	require.NoError(t, err)
	assert.False(t, ok, "implausible expiry is a miss, not a hit or an error")
}

func TestExtendedLifetime(t *testing.T) {
	now := time.Now()
	tr := userTokenResponse(t)
	tr.IssuedAt = now.Add(-time.Hour)
	tr.ExpiresOn = now.Add(-10 * time.Minute)
	tr.ExtendedExpiresOn = now.Add(time.Hour)

	enabled := newTestCache(t, func(cfg *Config) { cfg.EnableExtendedLifetime = true })
	_, err := enabled.SaveTokenResponse(context.Background(), silentRequest(), tr)
	require.NoError(t, err)
	res, ok, err := enabled.FindAccessToken(context.Background(), silentRequest())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, res.ExtendedLifetime)

	disabled := newTestCache(t, nil)
	_, err = disabled.SaveTokenResponse(context.Background(), silentRequest(), tr)
	require.NoError(t, err)
	_, ok, err = disabled.FindAccessToken(context.Background(), silentRequest())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOnBehalfOfPartitioning(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	obo := Request{
		Kind:          partition.KindOnBehalfOf,
		ClientID:      "client-a",
		Authority:     testAuthority,
		Scopes:        []string{"user.read"},
		UserAssertion: "inbound-assertion",
	}
	_, err := c.SaveTokenResponse(ctx, obo, userTokenResponse(t))
	require.NoError(t, err)

	res, ok, err := c.FindAccessToken(ctx, obo)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, helper.HashAssertion("inbound-assertion"), res.Token.UserAssertionHash)

	// a different assertion lives in a different partition
	other := obo
	other.UserAssertion = "other-assertion"
	_, ok, err = c.FindAccessToken(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindRefreshTokenAndFamily(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	tr := userTokenResponse(t)
	tr.FamilyID = "1"
	_, err := c.SaveTokenResponse(ctx, silentRequest(), tr)
	require.NoError(t, err)

	// a family token is excluded from plain client lookups
	_, ok, err := c.FindRefreshToken(ctx, silentRequest(), "")
	require.NoError(t, err)
	assert.False(t, ok)

	// but serves any client of the family
	req := silentRequest()
	req.ClientID = "client-b"
	rt, ok, err := c.FindRefreshToken(ctx, req, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rt-secret", rt.Secret)

	// family sharing disabled pins the client id again
	strict := newTestCache(t, func(cfg *Config) { cfg.EnableFamilySharing = false })
	_, err = strict.SaveTokenResponse(ctx, silentRequest(), tr)
	require.NoError(t, err)
	_, ok, err = strict.FindRefreshToken(ctx, req, "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLegacyFallbackAndMirror(t *testing.T) {
	ctx := context.Background()
	bridge := legacy.NewJSONBridge(&legacy.InMemoryBlob{}, logger.NewNop())

	// seed only the legacy store
	require.NoError(t, bridge.WriteRefreshToken(ctx, credential.RefreshToken{
		HomeAccountID: "uid.utid",
		Environment:   testCacheEnv,
		ClientID:      "client-a",
		Secret:        "legacy-rt",
	}))

	c := newTestCache(t, func(cfg *Config) {
		cfg.Legacy = bridge
		cfg.EnableLegacyCache = true
	})

	rt, ok, err := c.FindRefreshToken(ctx, silentRequest(), "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "legacy-rt", rt.Secret)

	// the legacy format never stored family tokens, so family lookups
	// skip the bridge
	_, ok, err = c.FindRefreshToken(ctx, silentRequest(), "1")
	require.NoError(t, err)
	assert.False(t, ok)

	// saves mirror into the bridge
	_, err = c.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	require.NoError(t, err)
	mirrored, ok, err := bridge.RefreshToken(ctx, "client-a", "uid.utid", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rt-secret", mirrored.Secret)
}

func TestGetAccounts(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	_, err := c.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	require.NoError(t, err)

	// second tenant for the same user
	req2 := silentRequest()
	req2.Authority = "https://login.microsoftonline.com/tenant2"
	tr2 := userTokenResponse(t)
	tr2.IDToken = unsignedJWT(t, map[string]interface{}{
		"sub":                "sub1",
		"preferred_username": "user@example.com",
		"oid":                "oid2",
		"tid":                "tenant2",
	})
	_, err = c.SaveTokenResponse(ctx, req2, tr2)
	require.NoError(t, err)

	all := Request{Kind: partition.KindOther, ClientID: "client-a", Authority: testAuthority}
	accounts, err := c.GetAccounts(ctx, all)
	require.NoError(t, err)
	require.Len(t, accounts, 2, "one account record per realm")

	for _, a := range accounts {
		assert.Equal(t, "uid.utid", a.HomeAccountID)
		require.Len(t, a.TenantProfiles, 2)
	}

	// filter to one explicit home account id
	all.HomeAccountID = "other.utid"
	accounts, err = c.GetAccounts(ctx, all)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestGetAccountsMergesBrokerAccounts(t *testing.T) {
	broker := credential.Account{
		HomeAccountID:     "broker.utid",
		Environment:       testCacheEnv,
		PreferredUsername: "broker@example.com",
	}
	c := newTestCache(t, func(cfg *Config) {
		cfg.BrokerAccounts = func() []credential.Account { return []credential.Account{broker} }
	})

	accounts, err := c.GetAccounts(context.Background(), Request{Kind: partition.KindOther, ClientID: "client-a", Authority: testAuthority})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "broker.utid", accounts[0].HomeAccountID)
}

func TestRemoveAccountCascade(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	_, err := c.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	require.NoError(t, err)

	// an unrelated account
	req2 := silentRequest()
	req2.HomeAccountID = "uid2.utid2"
	tr2 := userTokenResponse(t)
	tr2.ClientInfo = fakeClientInfo(t, "uid2", "utid2")
	tr2.AccessToken = "at-2"
	tr2.RefreshToken = "rt-2"
	_, err = c.SaveTokenResponse(ctx, req2, tr2)
	require.NoError(t, err)

	removeReq := Request{Kind: partition.KindRemoveAccount, ClientID: "client-a", Authority: testAuthority}
	err = c.RemoveAccount(ctx, credential.Account{HomeAccountID: "uid.utid"}, removeReq)
	require.NoError(t, err)

	snap := snapshotOf(t, c)
	for _, at := range snap.AccessTokens {
		assert.NotEqual(t, "uid.utid", at.HomeAccountID)
	}
	for _, rt := range snap.RefreshTokens {
		assert.NotEqual(t, "uid.utid", rt.HomeAccountID)
	}
	for _, it := range snap.IDTokens {
		assert.NotEqual(t, "uid.utid", it.HomeAccountID)
	}
	for _, a := range snap.Accounts {
		assert.NotEqual(t, "uid.utid", a.HomeAccountID)
	}

	// the unrelated account's credentials survive intact
	assert.Len(t, snap.AccessTokens, 1)
	assert.Len(t, snap.RefreshTokens, 1)
	assert.Len(t, snap.Accounts, 1)

	// removing again is harmless
	require.NoError(t, c.RemoveAccount(ctx, credential.Account{HomeAccountID: "uid.utid"}, removeReq))
}

func TestRemoveAccountFamilyWide(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	// two clients of one family hold tokens for the same account
	trA := userTokenResponse(t)
	trA.FamilyID = "1"
	_, err := c.SaveTokenResponse(ctx, silentRequest(), trA)
	require.NoError(t, err)

	reqB := silentRequest()
	reqB.ClientID = "client-b"
	trB := userTokenResponse(t)
	trB.FamilyID = "1"
	trB.RefreshToken = "rt-b"
	_, err = c.SaveTokenResponse(ctx, reqB, trB)
	require.NoError(t, err)

	err = c.RemoveAccount(ctx, credential.Account{HomeAccountID: "uid.utid"},
		Request{Kind: partition.KindRemoveAccount, ClientID: "client-a", Authority: testAuthority})
	require.NoError(t, err)

	snap := snapshotOf(t, c)
	assert.Empty(t, snap.RefreshTokens, "family removal takes every client's tokens")
	assert.Empty(t, snap.AccessTokens)
}

func TestHookOrdering(t *testing.T) {
	var sequence []string
	var lastSave external.Notification
	hooks := external.Hooks{
		BeforeAccess: func(ctx context.Context, n external.Notification) error {
			sequence = append(sequence, "before_access")
			return nil
		},
		BeforeWrite: func(ctx context.Context, n external.Notification) error {
			sequence = append(sequence, "before_write")
			return nil
		},
		AfterAccess: func(ctx context.Context, n external.Notification) error {
			sequence = append(sequence, "after_access")
			lastSave = n
			return nil
		},
	}
	c := newTestCache(t, func(cfg *Config) { cfg.Hooks = hooks })
	ctx := context.Background()

	_, err := c.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"before_access", "before_write", "after_access"}, sequence)
	assert.True(t, lastSave.StateChanged)
	assert.Equal(t, "uid.utid", lastSave.SuggestedKey)
	assert.False(t, lastSave.SuggestedExpiry.IsZero())

	sequence = nil
	_, _, err = c.FindAccessToken(ctx, silentRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"before_access", "after_access"}, sequence, "reads skip before_write")
}

func TestHookErrorAbortsOperation(t *testing.T) {
	sentinel := errors.New("host persistence failed")
	c := newTestCache(t, func(cfg *Config) {
		cfg.Hooks = external.Hooks{
			BeforeAccess: func(ctx context.Context, n external.Notification) error { return sentinel },
		}
	})
	_, err := c.SaveTokenResponse(context.Background(), silentRequest(), userTokenResponse(t))
	assert.ErrorIs(t, err, sentinel)
}

func TestBeforeWriteErrorStillNotifiesAfterAccess(t *testing.T) {
	sentinel := errors.New("write rejected by host")
	var afterCalls int
	var last external.Notification
	hooks := external.Hooks{
		BeforeWrite: func(ctx context.Context, n external.Notification) error { return sentinel },
		AfterAccess: func(ctx context.Context, n external.Notification) error {
			afterCalls++
			last = n
			return nil
		},
	}
	c := newTestCache(t, func(cfg *Config) { cfg.Hooks = hooks })
	ctx := context.Background()

	_, err := c.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, afterCalls, "after_access pairs with before_access even when before_write rejects the save")
	assert.False(t, last.StateChanged)
	assert.False(t, last.HasTokens)

	err = c.RemoveAccount(ctx,
		credential.Account{HomeAccountID: "uid.utid"},
		Request{Kind: partition.KindRemoveAccount, ClientID: "client-a"})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, afterCalls)
	assert.False(t, last.StateChanged)
}

func TestAfterAccessReportsObservedState(t *testing.T) {
	store, err := accessor.NewInMemory(nil, logger.NewNop())
	require.NoError(t, err)

	var last external.Notification
	c := newTestCache(t, func(cfg *Config) {
		cfg.Accessor = store
		cfg.Hooks = external.Hooks{
			AfterAccess: func(ctx context.Context, n external.Notification) error {
				last = n
				return nil
			},
		}
	})
	ctx := context.Background()

	store.FailSave(true)
	_, err = c.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	require.Error(t, err)
	assert.False(t, last.StateChanged, "nothing was written")
	assert.False(t, last.HasTokens, "partition is still empty")

	store.FailSave(false)
	_, err = c.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	require.NoError(t, err)
	assert.True(t, last.StateChanged)
	assert.True(t, last.HasTokens, "partition now holds the saved tokens")
}

func TestSharedAccessorAndHooksConflict(t *testing.T) {
	shared, err := accessor.NewShared(nil, logger.NewNop())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Shared = shared
	cfg.Hooks = external.Hooks{
		BeforeAccess: func(ctx context.Context, n external.Notification) error { return nil },
	}
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrConfigConflict)
}

func TestSharedAccessorVisibleAcrossInstances(t *testing.T) {
	shared, err := accessor.NewShared(nil, logger.NewNop())
	require.NoError(t, err)

	c1 := newTestCache(t, func(cfg *Config) { cfg.Shared = shared })
	c2 := newTestCache(t, func(cfg *Config) { cfg.Shared = shared })

	_, err = c1.SaveTokenResponse(context.Background(), silentRequest(), userTokenResponse(t))
	require.NoError(t, err)

	_, ok, err := c2.FindAccessToken(context.Background(), silentRequest())
	require.NoError(t, err)
	assert.True(t, ok, "instances sharing the accessor see each other's writes")
}

func TestSaveMutexHonorsCancellation(t *testing.T) {
	c := newTestCache(t, nil)

	// occupy the instance mutex
	require.NoError(t, c.mu.lock(context.Background()))
	defer c.mu.unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSerializationRoundTrip(t *testing.T) {
	src := newTestCache(t, nil)
	ctx := context.Background()

	_, err := src.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	require.NoError(t, err)

	raw, err := src.Marshal()
	require.NoError(t, err)

	dst := newTestCache(t, nil)
	require.NoError(t, dst.Unmarshal(raw))

	res, ok, err := dst.FindAccessToken(ctx, silentRequest())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "at-secret", res.Token.Secret)

	rt, ok, err := dst.FindRefreshToken(ctx, silentRequest(), "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rt-secret", rt.Secret)
}

func TestSealedSerializationRoundTrip(t *testing.T) {
	src := newTestCache(t, nil)
	ctx := context.Background()
	key := []byte("0123456789abcdef0123456789abcdef")

	_, err := src.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	require.NoError(t, err)

	sealer, err := external.NewSealedAESGCM(src, key)
	require.NoError(t, err)
	sealed, err := sealer.Seal(ctx)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "at-secret")

	dst := newTestCache(t, nil)
	opener, err := external.NewSealedAESGCM(dst, key)
	require.NoError(t, err)
	require.NoError(t, opener.Open(ctx, sealed))

	_, ok, err := dst.FindAccessToken(ctx, silentRequest())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSaveWithoutIdentityTokenDegradesSoftly(t *testing.T) {
	c := newTestCache(t, nil)
	tr := userTokenResponse(t)
	tr.IDToken = ""
	tr.ClientInfo = ""

	res, err := c.SaveTokenResponse(context.Background(), silentRequest(), tr)
	require.NoError(t, err)
	assert.NotNil(t, res.AccessToken)
	assert.Nil(t, res.Account)
	assert.Empty(t, res.AccessToken.HomeAccountID)

	// account-keyed lookups never match the identity-less token
	_, ok, err := c.FindAccessToken(context.Background(), silentRequest())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfigApplyConfMap(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyConfMap(map[string]string{
		"expiry_buffer":            "120s",
		"enable_legacy_cache":      "true",
		"enable_family_sharing":    "false",
		"enable_extended_lifetime": "true",
	}))
	assert.Equal(t, 2*time.Minute, cfg.ExpiryBuffer)
	assert.True(t, cfg.EnableLegacyCache)
	assert.False(t, cfg.EnableFamilySharing)
	assert.True(t, cfg.EnableExtendedLifetime)

	assert.Error(t, cfg.ApplyConfMap(map[string]string{"bogus": "1"}))
	assert.Error(t, cfg.ApplyConfMap(map[string]string{"expiry_buffer": "not a duration"}))
}

func TestStatsCounters(t *testing.T) {
	c := newTestCache(t, nil)
	ctx := context.Background()

	_, err := c.SaveTokenResponse(ctx, silentRequest(), userTokenResponse(t))
	require.NoError(t, err)
	_, ok, err := c.FindAccessToken(ctx, silentRequest())
	require.NoError(t, err)
	require.True(t, ok)

	miss := silentRequest()
	miss.Scopes = []string{"nope"}
	_, _, err = c.FindAccessToken(ctx, miss)
	require.NoError(t, err)

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Saves)
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
}
