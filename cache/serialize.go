package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/copystructure"

	"github.com/stephnangue/tokenvault/credential"
	"github.com/stephnangue/tokenvault/external"
	"github.com/stephnangue/tokenvault/partition"
)

var _ external.Serializer = (*Cache)(nil)

const serializedVersion = 1

// serializedCache is the JSON schema of a whole cache: per-type maps
// keyed by item key.
type serializedCache struct {
	Version       int                                `json:"version"`
	AccessTokens  map[string]credential.AccessToken  `json:"access_tokens,omitempty"`
	RefreshTokens map[string]credential.RefreshToken `json:"refresh_tokens,omitempty"`
	IDTokens      map[string]credential.IDToken      `json:"id_tokens,omitempty"`
	Accounts      map[string]credential.Account      `json:"accounts,omitempty"`
	AppMetadata   map[string]credential.AppMetadata  `json:"app_metadata,omitempty"`
}

// storagePartitionForAccessToken recovers the partition an access token
// lives in. App-only tokens carry neither assertion hash nor home account
// id, so they fall back to the app token cache key.
func storagePartitionForAccessToken(at credential.AccessToken) string {
	if pk := partition.ForAccessToken(at); pk != "" {
		return pk
	}
	return partition.AppKey(at.ClientID, at.Realm)
}

// Marshal serializes the whole cache. The contents are deep-copied before
// encoding so concurrent writers cannot mutate shared maps mid-marshal;
// cross-partition reads still carry no snapshot guarantee.
func (c *Cache) Marshal() ([]byte, error) {
	snap := serializedCache{
		Version:       serializedVersion,
		AccessTokens:  make(map[string]credential.AccessToken),
		RefreshTokens: make(map[string]credential.RefreshToken),
		IDTokens:      make(map[string]credential.IDToken),
		Accounts:      make(map[string]credential.Account),
		AppMetadata:   make(map[string]credential.AppMetadata),
	}

	ats, err := c.store.AccessTokens("")
	if err != nil {
		return nil, err
	}
	for _, at := range ats {
		snap.AccessTokens[at.Key()] = at
	}
	rts, err := c.store.RefreshTokens("")
	if err != nil {
		return nil, err
	}
	for _, rt := range rts {
		snap.RefreshTokens[rt.Key()] = rt
	}
	ids, err := c.store.IDTokens("")
	if err != nil {
		return nil, err
	}
	for _, it := range ids {
		snap.IDTokens[it.Key()] = it
	}
	accounts, err := c.store.Accounts("")
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		a.TenantProfiles = nil
		snap.Accounts[a.Key()] = a
	}
	mds, err := c.store.AppMetadataAll()
	if err != nil {
		return nil, err
	}
	for _, md := range mds {
		snap.AppMetadata[md.Key()] = md
	}

	copied, err := copystructure.Copy(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshotting cache: %w", err)
	}
	return json.Marshal(copied)
}

// Unmarshal replaces the cache contents with the serialized state,
// re-deriving each item's partition from its own fields. Runs under the
// instance mutex.
func (c *Cache) Unmarshal(data []byte) error {
	var snap serializedCache
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decoding serialized cache: %w", err)
	}

	if err := c.mu.lock(context.Background()); err != nil {
		return err
	}
	defer c.mu.unlock()

	if err := c.store.Clear(); err != nil {
		return err
	}
	for _, at := range snap.AccessTokens {
		if err := c.store.SaveAccessToken(storagePartitionForAccessToken(at), at); err != nil {
			return err
		}
	}
	for _, rt := range snap.RefreshTokens {
		if err := c.store.SaveRefreshToken(partition.ForRefreshToken(rt), rt); err != nil {
			return err
		}
	}
	for _, it := range snap.IDTokens {
		if err := c.store.SaveIDToken(partition.ForIDToken(it), it); err != nil {
			return err
		}
	}
	for _, a := range snap.Accounts {
		if err := c.store.SaveAccount(partition.ForAccount(a), a); err != nil {
			return err
		}
	}
	for _, md := range snap.AppMetadata {
		if err := c.store.SaveAppMetadata(md); err != nil {
			return err
		}
	}
	return nil
}
