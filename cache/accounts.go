package cache

import (
	"context"
	"strings"

	metrics "github.com/hashicorp/go-metrics"
	"github.com/hashicorp/go-multierror"

	"github.com/stephnangue/tokenvault/credential"
	"github.com/stephnangue/tokenvault/external"
	"github.com/stephnangue/tokenvault/helper"
	"github.com/stephnangue/tokenvault/instance"
	"github.com/stephnangue/tokenvault/logger"
)

// GetAccounts lists the accounts visible to the request: stored accounts
// holding a refresh token in an environment equivalent to the requested
// authority, enriched with derived tenant profiles, plus legacy-format
// users and broker-known accounts when configured. A non-empty
// req.HomeAccountID narrows the result to that single account.
func (c *Cache) GetAccounts(ctx context.Context, req Request) ([]credential.Account, error) {
	log := c.logger.WithFields(
		logger.String("correlation_id", helper.CorrelationID()),
		logger.String("op", "get_accounts"),
		logger.String("client_id", req.ClientID),
	)

	auth, err := instance.ParseAuthority(req.Authority)
	if err != nil {
		return nil, err
	}
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
		HasTokens:    hasTokens,
		SuggestedKey: pk,
	}
	if err := c.notify(ctx, c.hooks.BeforeAccess, n); err != nil {
		return nil, err
	}
	defer func() {
		if aerr := c.notify(ctx, c.hooks.AfterAccess, n); aerr != nil {
			log.Warn("after-access hook failed", logger.Err(aerr))
		}
	}()

	rts, err := c.store.RefreshTokens(pk)
	if err != nil {
		return nil, err
	}
	accounts, err := c.store.Accounts(pk)
	if err != nil {
		return nil, err
	}

	// one alias resolution for the union of environments seen
	var aliases []string
	if auth.Host != "" {
		envs := distinctEnvironments(append(refreshTokenEnvs(rts), accountEnvs(accounts)...))
		md, err := c.resolveMetadata(ctx, auth, envs)
		if err != nil {
			return nil, err
		}
		aliases = md.Aliases

		rts = filterRefreshTokensByEnv(rts, md)
		accounts = filterAccountsByEnv(accounts, md)
	}

	withRT := make(map[string]struct{}, len(rts))
	for _, rt := range rts {
		withRT[strings.ToLower(rt.HomeAccountID)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []credential.Account
	add := func(a credential.Account) {
		key := a.Key()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}

	for _, a := range accounts {
		if _, ok := withRT[strings.ToLower(a.HomeAccountID)]; !ok {
			continue
		}
		a.TenantProfiles = c.tenantProfiles(a.HomeAccountID)
		add(a)
	}

	if c.legacyEnabled() {
		users, lerr := c.legacy.AllUsers(ctx, aliases)
		if lerr != nil {
			log.Warn("legacy account enumeration failed", logger.Err(lerr))
		} else {
			for _, u := range users {
				add(u.Account())
			}
		}
	}

	if c.cfg.BrokerAccounts != nil {
		for _, a := range c.cfg.BrokerAccounts() {
			add(a)
		}
	}

	if req.HomeAccountID != "" {
		filtered := out[:0]
		for _, a := range out {
			if strings.EqualFold(a.HomeAccountID, req.HomeAccountID) {
				filtered = append(filtered, a)
			}
		}
		out = filtered
	}

	metrics.IncrCounter([]string{"tokenvault", "cache", "get_accounts"}, 1)
	return out, nil
}

// tenantProfiles derives the tenant profiles of an account from the ID
// tokens sharing its home account id.
func (c *Cache) tenantProfiles(homeAccountID string) []credential.TenantProfile {
	ids, err := c.store.IDTokens(homeAccountID)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	var out []credential.TenantProfile
	for _, it := range ids {
		if !strings.EqualFold(it.HomeAccountID, homeAccountID) {
			continue
		}
		if _, dup := seen[it.Realm]; dup {
			continue
		}
		seen[it.Realm] = struct{}{}
		out = append(out, it.TenantProfile())
	}
	return out
}

// RemoveAccount deletes an account and its credentials under the instance
// mutex. With family sharing enabled and a family refresh token present,
// every client's tokens for the account go; otherwise removal is scoped
// to the requesting client id. Individual delete failures are aggregated,
// not short-circuited.
func (c *Cache) RemoveAccount(ctx context.Context, account credential.Account, req Request) error {
	log := c.logger.WithFields(
		logger.String("correlation_id", helper.CorrelationID()),
		logger.String("op", "remove_account"),
		logger.String("client_id", req.ClientID),
	)

	home := account.HomeAccountID
	if home == "" {
		log.Info("remove of account without home account id ignored")
		return nil
	}

	if err := c.mu.lock(ctx); err != nil {
		return err
	}
	defer c.mu.unlock()

	n := external.Notification{
		ClientID:     req.ClientID,
		Account:      &account,
		SuggestedKey: home,
	}
	if err := c.notify(ctx, c.hooks.BeforeAccess, n); err != nil {
		return err
	}
	// after-access pairs with the successful before-access on every exit
	// path, hook failures included
	var mutated bool
	defer func() {
		n.StateChanged = mutated
		if aerr := c.notify(ctx, c.hooks.AfterAccess, n); aerr != nil {
			log.Warn("after-access hook failed", logger.Err(aerr))
		}
	}()
	if err := c.notify(ctx, c.hooks.BeforeWrite, n); err != nil {
		return err
	}

	var errs *multierror.Error

	rts, err := c.store.RefreshTokens(home)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	familyWide := false
	if c.cfg.EnableFamilySharing {
		for _, rt := range rts {
			if strings.EqualFold(rt.HomeAccountID, home) && rt.FamilyID != "" {
				familyWide = true
				break
			}
		}
	}
	matches := func(owner, clientID string) bool {
		if !strings.EqualFold(owner, home) {
			return false
		}
		return familyWide || strings.EqualFold(clientID, req.ClientID)
	}

	for _, rt := range rts {
		if !matches(rt.HomeAccountID, rt.ClientID) {
			continue
		}
		if err := c.store.DeleteRefreshToken(home, rt); err != nil {
			errs = multierror.Append(errs, err)
		} else {
			mutated = true
		}
	}

	ats, err := c.store.AccessTokens(home)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, at := range ats {
		if !matches(at.HomeAccountID, at.ClientID) {
			continue
		}
		if err := c.store.DeleteAccessToken(home, at); err != nil {
			errs = multierror.Append(errs, err)
		} else {
			mutated = true
		}
	}

	ids, err := c.store.IDTokens(home)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, it := range ids {
		if !matches(it.HomeAccountID, it.ClientID) {
			continue
		}
		if err := c.store.DeleteIDToken(home, it); err != nil {
			errs = multierror.Append(errs, err)
		} else {
			mutated = true
		}
	}

	accounts, err := c.store.Accounts(home)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, a := range accounts {
		if !strings.EqualFold(a.HomeAccountID, home) {
			continue
		}
		if err := c.store.DeleteAccount(home, a); err != nil {
			errs = multierror.Append(errs, err)
		} else {
			mutated = true
		}
	}

	if c.legacyEnabled() {
		if lerr := c.legacy.RemoveUser(ctx, home); lerr != nil {
			log.Warn("legacy account removal failed", logger.Err(lerr))
		}
	}

	c.removals.Add(1)
	metrics.IncrCounter([]string{"tokenvault", "cache", "remove_account"}, 1)
	log.Debug("account removed", logger.Bool("family_wide", familyWide))
	return errs.ErrorOrNil()
}

func accountEnvs(items []credential.Account) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Environment)
	}
	return out
}

func filterRefreshTokensByEnv(items []credential.RefreshToken, md instance.Metadata) []credential.RefreshToken {
	out := items[:0]
	for _, it := range items {
		if md.HasAlias(it.Environment) {
			out = append(out, it)
		}
	}
	return out
}

func filterAccountsByEnv(items []credential.Account, md instance.Metadata) []credential.Account {
	out := items[:0]
	for _, it := range items {
		if md.HasAlias(it.Environment) {
			out = append(out, it)
		}
	}
	return out
}
