package cache

import (
	"context"
	"strings"

	metrics "github.com/hashicorp/go-metrics"

	"github.com/stephnangue/tokenvault/credential"
	"github.com/stephnangue/tokenvault/external"
	"github.com/stephnangue/tokenvault/helper"
	"github.com/stephnangue/tokenvault/instance"
	"github.com/stephnangue/tokenvault/logger"
	"github.com/stephnangue/tokenvault/partition"
)

// AccessTokenResult is a successful access token lookup.
type AccessTokenResult struct {
	Token credential.AccessToken
	// ExtendedLifetime marks a token served past its nominal expiry but
	// inside its extended grace window. Callers should treat it as
	// best-effort and refresh when the provider recovers.
	ExtendedLifetime bool
}

// FindAccessToken runs the lookup pipeline: partition, identity filter,
// token type, scopes, environment aliases. More than one survivor is
// ErrAmbiguousMatch; a single survivor must still pass key-id and expiry
// checks. Lookups do not take the instance mutex.
func (c *Cache) FindAccessToken(ctx context.Context, req Request) (AccessTokenResult, bool, error) {
	var zero AccessTokenResult
	if req.Authority == "" {
		return zero, false, nil
	}
	log := c.logger.WithFields(
		logger.String("correlation_id", helper.CorrelationID()),
		logger.String("op", "find_access_token"),
		logger.String("client_id", req.ClientID),
	)

	auth, err := instance.ParseAuthority(req.Authority)
	if err != nil {
		return zero, false, err
	}
	hash := req.assertionHash()
	pk, scoped := req.partitionKey(auth)
	if !scoped {
		pk = ""
		log.Debug("request has no partition; scanning all partitions")
	}

	hasTokens, err := c.store.HasAnyValidToken(pk)
	if err != nil {
		log.Warn("checking partition for existing tokens failed", logger.Err(err))
	}
	n := external.Notification{
		ClientID:     req.ClientID,
		IsAppCache:   req.isAppCache(),
		HasTokens:    hasTokens,
		SuggestedKey: pk,
	}
	if err := c.notify(ctx, c.hooks.BeforeAccess, n); err != nil {
		return zero, false, err
	}
	defer func() {
		if aerr := c.notify(ctx, c.hooks.AfterAccess, n); aerr != nil {
			log.Warn("after-access hook failed", logger.Err(aerr))
		}
	}()

	candidates, err := c.store.AccessTokens(pk)
	if err != nil {
		return zero, false, err
	}

	requested := credential.FilterReservedScopes(req.Scopes)
	var remaining []credential.AccessToken
	for _, at := range candidates {
		if !strings.EqualFold(at.ClientID, req.ClientID) {
			continue
		}
		switch req.Kind {
		case partition.KindOnBehalfOf:
			if at.UserAssertionHash != hash {
				continue
			}
			// a concrete tenant in the authority pins the realm; the
			// multi-tenant aliases cannot
			if !auth.IsMultiTenant() && !strings.EqualFold(at.Realm, auth.CacheTenant()) {
				continue
			}
		case partition.KindClientCredential:
			if !strings.EqualFold(at.Realm, auth.CacheTenant()) {
				continue
			}
		default:
			if !strings.EqualFold(at.HomeAccountID, req.HomeAccountID) {
				continue
			}
			if ct := auth.CacheTenant(); ct != "" && !strings.EqualFold(at.Realm, ct) {
				continue
			}
		}
		if !at.MatchesTokenType(req.TokenType) {
			continue
		}
		if !credential.ScopesContain(at.Scopes, requested) {
			continue
		}
		remaining = append(remaining, at)
	}

	if len(remaining) == 0 {
		return c.miss(zero, log, "no candidate survived filtering")
	}

	envs := distinctEnvironments(accessTokenEnvs(remaining))
	md, err := c.resolveMetadata(ctx, auth, envs)
	if err != nil {
		return zero, false, err
	}
	var preferred, aliased []credential.AccessToken
	for _, at := range remaining {
		switch {
		case at.Environment == md.PreferredCache:
			preferred = append(preferred, at)
		case md.HasAlias(at.Environment):
			aliased = append(aliased, at)
		}
	}
	final := preferred
	if len(final) == 0 {
		final = aliased
	}

	if len(final) > 1 {
		c.ambiguous.Add(1)
		metrics.IncrCounter([]string{"tokenvault", "cache", "ambiguous"}, 1)
		return zero, false, ErrAmbiguousMatch
	}
	if len(final) == 0 {
		return c.miss(zero, log, "no candidate in a matching environment")
	}

	at := final[0]
	if at.KeyID != req.KeyID {
		return c.miss(zero, log, "key binding mismatch")
	}

	now := currentTime()
	if at.ExpiresOn.T.After(now.Add(maxTokenLifetime)) {
		log.Warn("discarding access token with implausible expiry",
			logger.Time("expires_on", at.ExpiresOn.T))
		return c.miss(zero, log, "corrupt expiry")
	}
	if !at.Expired(now, c.cfg.ExpiryBuffer) {
		c.hits.Add(1)
		metrics.IncrCounter([]string{"tokenvault", "cache", "hit"}, 1)
		return AccessTokenResult{Token: at}, true, nil
	}
	if c.cfg.EnableExtendedLifetime && at.WithinExtendedLifetime(now) {
		c.hits.Add(1)
		metrics.IncrCounter([]string{"tokenvault", "cache", "extended_hit"}, 1)
		log.Debug("serving token within extended lifetime")
		return AccessTokenResult{Token: at, ExtendedLifetime: true}, true, nil
	}
	return c.miss(zero, log, "token expired")
}

func (c *Cache) miss(zero AccessTokenResult, log logger.Logger, reason string) (AccessTokenResult, bool, error) {
	c.misses.Add(1)
	metrics.IncrCounter([]string{"tokenvault", "cache", "miss"}, 1)
	log.Debug("access token cache miss", logger.String("reason", reason))
	return zero, false, nil
}

// FindRefreshToken looks up a refresh token. With an empty familyID,
// family-bound tokens are excluded and the client id must match; with a
// familyID, any client's token of that family qualifies (when family
// sharing is enabled). The legacy bridge is consulted only on a miss with
// no family id, since the legacy format never stored family tokens.
func (c *Cache) FindRefreshToken(ctx context.Context, req Request, familyID string) (credential.RefreshToken, bool, error) {
	var zero credential.RefreshToken
	log := c.logger.WithFields(
		logger.String("correlation_id", helper.CorrelationID()),
		logger.String("op", "find_refresh_token"),
		logger.String("client_id", req.ClientID),
	)

	auth, err := instance.ParseAuthority(req.Authority)
	if err != nil {
		return zero, false, err
	}
	hash := req.assertionHash()
	pk, scoped := req.partitionKey(auth)
	if !scoped {
		pk = ""
	}

	hasTokens, err := c.store.HasAnyValidToken(pk)
	if err != nil {
		log.Warn("checking partition for existing tokens failed", logger.Err(err))
	}
	n := external.Notification{
		ClientID:     req.ClientID,
		IsAppCache:   req.isAppCache(),
		HasTokens:    hasTokens,
		SuggestedKey: pk,
	}
	if err := c.notify(ctx, c.hooks.BeforeAccess, n); err != nil {
		return zero, false, err
	}
	defer func() {
		if aerr := c.notify(ctx, c.hooks.AfterAccess, n); aerr != nil {
			log.Warn("after-access hook failed", logger.Err(aerr))
		}
	}()

	candidates, err := c.store.RefreshTokens(pk)
	if err != nil {
		return zero, false, err
	}

	matchClient := familyID == "" || !c.cfg.EnableFamilySharing
	var remaining []credential.RefreshToken
	for _, rt := range candidates {
		if req.Kind == partition.KindOnBehalfOf {
			if rt.UserAssertionHash != hash {
				continue
			}
		} else if !strings.EqualFold(rt.HomeAccountID, req.HomeAccountID) {
			continue
		}
		if familyID == "" {
			// the caller wants this client's own token; family tokens are
			// found by a separate familyID lookup
			if rt.FamilyID != "" {
				continue
			}
		} else if rt.FamilyID != familyID {
			continue
		}
		if matchClient && !strings.EqualFold(rt.ClientID, req.ClientID) {
			continue
		}
		remaining = append(remaining, rt)
	}

	var aliases []string
	if auth.Host != "" {
		md, err := c.resolveMetadata(ctx, auth, distinctEnvironments(refreshTokenEnvs(remaining)))
		if err != nil {
			return zero, false, err
		}
		aliases = md.Aliases
		var preferred, aliased []credential.RefreshToken
		for _, rt := range remaining {
			switch {
			case rt.Environment == md.PreferredCache:
				preferred = append(preferred, rt)
			case md.HasAlias(rt.Environment):
				aliased = append(aliased, rt)
			}
		}
		remaining = preferred
		if len(remaining) == 0 {
			remaining = aliased
		}
	}

	if len(remaining) > 0 {
		c.hits.Add(1)
		metrics.IncrCounter([]string{"tokenvault", "cache", "hit"}, 1)
		return remaining[0], true, nil
	}

	if c.legacyEnabled() && familyID == "" {
		rt, ok, lerr := c.legacy.RefreshToken(ctx, req.ClientID, req.HomeAccountID, aliases)
		if lerr != nil {
			// legacy lookups are best-effort
			log.Warn("legacy refresh token lookup failed", logger.Err(lerr))
		} else if ok {
			c.hits.Add(1)
			metrics.IncrCounter([]string{"tokenvault", "cache", "legacy_hit"}, 1)
			return rt, true, nil
		}
	}

	c.misses.Add(1)
	metrics.IncrCounter([]string{"tokenvault", "cache", "miss"}, 1)
	log.Debug("refresh token cache miss")
	return zero, false, nil
}

func accessTokenEnvs(items []credential.AccessToken) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Environment)
	}
	return out
}

func refreshTokenEnvs(items []credential.RefreshToken) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Environment)
	}
	return out
}

func distinctEnvironments(envs []string) []string {
	seen := make(map[string]struct{}, len(envs))
	out := envs[:0]
	for _, env := range envs {
		if _, ok := seen[env]; ok || env == "" {
			continue
		}
		seen[env] = struct{}{}
		out = append(out, env)
	}
	return out
}
