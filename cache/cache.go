// Package cache implements the token cache engine: saving token
// responses across all credential collections, the filtered lookup
// pipelines, account enumeration and removal, and the serialization
// contract for hosts persisting the cache externally.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	metrics "github.com/hashicorp/go-metrics"

	"github.com/stephnangue/tokenvault/accessor"
	"github.com/stephnangue/tokenvault/credential"
	"github.com/stephnangue/tokenvault/external"
	"github.com/stephnangue/tokenvault/helper"
	"github.com/stephnangue/tokenvault/instance"
	"github.com/stephnangue/tokenvault/legacy"
	"github.com/stephnangue/tokenvault/logger"
	"github.com/stephnangue/tokenvault/partition"
)

// ErrAmbiguousMatch is returned when multiple access tokens satisfy every
// lookup filter. Silently picking one could hand out a token bound to the
// wrong key, so the caller must resolve the ambiguity instead.
var ErrAmbiguousMatch = errors.New("ambiguous cache state: multiple access tokens match the request")

// Cache is the token cache engine. One instance serves one logical client
// application; instances sharing a process may opt into a shared accessor.
//
// Reads run against live storage without engine-level locking. Saves,
// removals and deserialization serialize on one instance-wide mutex whose
// acquisition honors context cancellation.
type Cache struct {
	store    accessor.Accessor
	resolver *instance.CachingResolver
	legacy   legacy.Bridge
	hooks    external.Hooks
	cfg      Config
	mu       ctxMutex
	logger   logger.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	saves     atomic.Uint64
	evictions atomic.Uint64
	removals  atomic.Uint64
	ambiguous atomic.Uint64
}

// New builds a Cache from the config. The zero config yields a private
// in-memory cache with no discovery resolver and no legacy bridge.
func New(cfg Config) (*Cache, error) {
	if cfg.Shared != nil && !cfg.Hooks.Empty() {
		return nil, ErrConfigConflict
	}
	if cfg.Shared != nil && cfg.Accessor != nil {
		return nil, errors.New("configure either Accessor or Shared, not both")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	store := cfg.Accessor
	if cfg.Shared != nil {
		store = cfg.Shared
	}
	if store == nil {
		var err error
		store, err = accessor.NewInMemory(nil, log)
		if err != nil {
			return nil, fmt.Errorf("building default accessor: %w", err)
		}
	}

	if cfg.ExpiryBuffer == 0 {
		cfg.ExpiryBuffer = DefaultExpiryBuffer
	}

	return &Cache{
		store:    store,
		resolver: cfg.Resolver,
		legacy:   cfg.Legacy,
		hooks:    cfg.Hooks,
		cfg:      cfg,
		mu:       newCtxMutex(),
		logger:   log.WithSubsystem("cache"),
	}, nil
}

// Stats is a point-in-time snapshot of the engine's operation counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Saves     uint64
	Evictions uint64
	Removals  uint64
	Ambiguous uint64
}

// Stats returns the current counter snapshot.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Saves:     c.saves.Load(),
		Evictions: c.evictions.Load(),
		Removals:  c.removals.Load(),
		Ambiguous: c.ambiguous.Load(),
	}
}

func (c *Cache) legacyEnabled() bool {
	return c.cfg.EnableLegacyCache && c.legacy != nil
}

// resolveMetadata resolves the alias group for an authority. With no
// resolver configured, resolution falls back to the static table and then
// to treating the authority host as its own single-member environment.
func (c *Cache) resolveMetadata(ctx context.Context, auth instance.Authority, candidateEnvs []string) (instance.Metadata, error) {
	if c.resolver != nil {
		return c.resolver.Resolve(ctx, auth, candidateEnvs)
	}
	for _, md := range instance.DefaultKnownEnvironments() {
		if md.HasAlias(auth.Host) {
			return md, nil
		}
	}
	return instance.Metadata{
		PreferredCache:   auth.Host,
		PreferredNetwork: auth.Host,
		Aliases:          []string{auth.Host},
	}, nil
}

// preferredEnv resolves the canonical cache environment new entries are
// stamped with.
func (c *Cache) preferredEnv(ctx context.Context, auth instance.Authority) (string, error) {
	md, err := c.resolveMetadata(ctx, auth, nil)
	if err != nil {
		return "", err
	}
	if md.PreferredCache == "" {
		return auth.Host, nil
	}
	return md.PreferredCache, nil
}

func (c *Cache) notify(ctx context.Context, hook external.Hook, n external.Notification) error {
	if hook == nil {
		return nil
	}
	return hook(ctx, n)
}

// SaveResult reports the items persisted by SaveTokenResponse. Fields are
// nil when the token response did not carry the corresponding credential.
type SaveResult struct {
	AccessToken *credential.AccessToken
	IDToken     *credential.IDToken
	Account     *credential.Account
}

// SaveTokenResponse persists every credential a successful token grant
// produced: access token (with intersecting-scope eviction first), ID
// token and account (with alias-map union merge), refresh token, app
// metadata, and the legacy mirror when enabled. The whole write runs
// under the instance mutex; partial writes are not rolled back on error.
func (c *Cache) SaveTokenResponse(ctx context.Context, req Request, tr credential.TokenResponse) (SaveResult, error) {
	var res SaveResult
	log := c.logger.WithFields(
		logger.String("correlation_id", helper.CorrelationID()),
		logger.String("op", "save"),
		logger.String("client_id", req.ClientID),
	)

	auth, err := instance.ParseAuthority(req.Authority)
	if err != nil {
		return res, err
	}

	var claims *credential.IDTokenClaims
	if tr.IDToken != "" {
		parsed, perr := credential.ParseIDTokenClaims(tr.IDToken)
		if perr != nil {
			// absence of usable claims degrades the save, it does not fail it
			log.Warn("identity token could not be decoded", logger.Err(perr))
		} else {
			claims = &parsed
		}
	}

	// authority tenant wins over the token's tenant claim
	realm := auth.CacheTenant()
	if realm == "" && claims != nil {
		realm = strings.ToLower(claims.TenantID)
	}

	home := tr.HomeAccountID(claims)
	if home == "" {
		log.Warn("token response carries no account identity; account-keyed lookups will never match it")
	}

	env, err := c.preferredEnv(ctx, auth)
	if err != nil {
		return res, err
	}

	hash := req.assertionHash()
	pk := hash
	if pk == "" {
		if req.isAppCache() {
			pk = partition.AppKey(req.ClientID, realm)
		} else {
			pk = home
		}
	}

	if err := c.mu.lock(ctx); err != nil {
		return res, err
	}
	defer c.mu.unlock()

	hadTokens, err := c.store.HasAnyValidToken(pk)
	if err != nil {
		log.Warn("checking partition for existing tokens failed", logger.Err(err))
	}
	n := external.Notification{
		ClientID:     req.ClientID,
		IsAppCache:   req.isAppCache(),
		HasTokens:    hadTokens,
		SuggestedKey: pk,
	}
	if err := c.notify(ctx, c.hooks.BeforeAccess, n); err != nil {
		return res, err
	}
	// after-access pairs with the successful before-access on every exit
	// path, hook and write failures included
	var mutated bool
	defer func() {
		n.StateChanged = mutated
		n.Account = res.Account
		if res.AccessToken != nil {
			n.SuggestedExpiry = res.AccessToken.ExpiresOn.T
		}
		if hasTokens, herr := c.store.HasAnyValidToken(pk); herr == nil {
			n.HasTokens = hasTokens
		}
		if aerr := c.notify(ctx, c.hooks.AfterAccess, n); aerr != nil {
			log.Warn("after-access hook failed", logger.Err(aerr))
		}
	}()
	if err := c.notify(ctx, c.hooks.BeforeWrite, n); err != nil {
		return res, err
	}

	if tr.AccessToken != "" {
		item := credential.NewAccessToken(home, env, realm, req.ClientID, hash, tr, auth.IsADFS)
		evicted, err := c.evictIntersecting(pk, item, log)
		if evicted > 0 {
			mutated = true
		}
		if err != nil {
			return res, err
		}
		if err := c.store.SaveAccessToken(pk, item); err != nil {
			return res, err
		}
		mutated = true
		res.AccessToken = &item
	}

	if claims != nil && home != "" {
		idt := credential.NewIDToken(home, env, realm, req.ClientID, tr)
		if err := c.store.SaveIDToken(home, idt); err != nil {
			return res, err
		}
		mutated = true
		res.IDToken = &idt

		acct := credential.NewAccount(home, env, realm, *claims, auth.IsADFS)
		if stored, ok, gerr := c.store.Account(home, acct.Key()); gerr == nil && ok {
			acct.MergeAliases(stored)
		}
		if err := c.store.SaveAccount(home, acct); err != nil {
			return res, err
		}
		res.Account = &acct
	}

	var rt *credential.RefreshToken
	if tr.RefreshToken != "" {
		item := credential.NewRefreshToken(home, env, req.ClientID, hash, tr)
		rpk := hash
		if rpk == "" {
			rpk = home
		}
		if err := c.store.SaveRefreshToken(rpk, item); err != nil {
			return res, err
		}
		mutated = true
		rt = &item
	}

	if err := c.store.SaveAppMetadata(credential.AppMetadata{
		ClientID:    req.ClientID,
		Environment: env,
		FamilyID:    tr.FamilyID,
	}); err != nil {
		return res, err
	}
	mutated = true

	if c.legacyEnabled() && rt != nil {
		if lerr := c.legacy.WriteRefreshToken(ctx, *rt); lerr != nil {
			// the legacy mirror is best-effort
			log.Warn("legacy cache mirror failed", logger.Err(lerr))
		}
	}

	c.saves.Add(1)
	metrics.IncrCounter([]string{"tokenvault", "cache", "save"}, 1)
	log.Debug("token response saved",
		logger.String("environment", env),
		logger.String("realm", realm),
		logger.Bool("has_refresh_token", rt != nil))
	return res, nil
}

// evictIntersecting removes access tokens in the partition that the new
// token supersedes: same client, tenant, owner and token type, with an
// overlapping scope set. It returns the number of tokens removed.
func (c *Cache) evictIntersecting(pk string, item credential.AccessToken, log logger.Logger) (int, error) {
	evicted := 0
	existing, err := c.store.AccessTokens(pk)
	if err != nil {
		return evicted, err
	}
	for _, old := range existing {
		if !strings.EqualFold(old.ClientID, item.ClientID) {
			continue
		}
		if !strings.EqualFold(old.Realm, item.Realm) {
			continue
		}
		if old.HomeAccountID != item.HomeAccountID || old.UserAssertionHash != item.UserAssertionHash {
			continue
		}
		if !old.MatchesTokenType(item.TokenTypeOrDefault()) {
			continue
		}
		if !credential.ScopesIntersect(old.Scopes, item.Scopes) {
			continue
		}
		if err := c.store.DeleteAccessToken(pk, old); err != nil {
			return evicted, err
		}
		evicted++
		c.evictions.Add(1)
		metrics.IncrCounter([]string{"tokenvault", "cache", "eviction"}, 1)
		log.Debug("evicted superseded access token", logger.Strings("scopes", old.Scopes))
	}
	return evicted, nil
}

// currentTime is swapped by tests that need deterministic expiry checks.
var currentTime = time.Now
