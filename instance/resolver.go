package instance

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/stephnangue/tokenvault/logger"
)

// resolvedHosts bounds the discovery result cache. Real deployments see a
// handful of authority hosts, so this is effectively process-lifetime.
const resolvedHosts = 256

// memoization sizing for the alias-group lookup
const (
	memoCounters = 1 << 14
	memoMaxCost  = 1 << 12
)

// CachingResolver wraps a network Resolver with the engine-side policy:
// the static known-environment table short-circuits discovery, results
// are cached per authority host for the process lifetime, and concurrent
// resolutions of one host collapse into a single round trip.
type CachingResolver struct {
	inner  Resolver
	static []Metadata

	results *lru.Cache[string, Metadata]
	group   singleflight.Group

	// memo caches environment → alias-group lookups. A miss only costs a
	// rescan of the static table and the result cache, so a lossy cache
	// is acceptable here.
	memo *ristretto.Cache[string, Metadata]

	logger logger.Logger
}

// NewCachingResolver builds the engine's resolver adapter. inner may be
// nil, in which case any lookup that would need the network fails with
// ErrNetworkRequired. static defaults to DefaultKnownEnvironments when
// nil.
func NewCachingResolver(inner Resolver, static []Metadata, log logger.Logger) (*CachingResolver, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if static == nil {
		static = DefaultKnownEnvironments()
	}
	results, err := lru.New[string, Metadata](resolvedHosts)
	if err != nil {
		return nil, err
	}
	memo, err := ristretto.NewCache(&ristretto.Config[string, Metadata]{
		NumCounters: memoCounters,
		MaxCost:     memoMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing alias memo cache: %w", err)
	}
	return &CachingResolver{
		inner:   inner,
		static:  static,
		results: results,
		memo:    memo,
		logger:  log.WithSubsystem("instance"),
	}, nil
}

// staticFor returns the static alias group containing env, if any.
func (r *CachingResolver) staticFor(env string) (Metadata, bool) {
	for _, md := range r.static {
		if md.HasAlias(env) {
			return md, true
		}
	}
	return Metadata{}, false
}

// knownFor returns the alias group for env from the static table or a
// previously resolved result, consulting the memo first.
func (r *CachingResolver) knownFor(env string) (Metadata, bool) {
	if md, ok := r.memo.Get(env); ok {
		return md, true
	}
	if md, ok := r.staticFor(env); ok {
		r.memo.Set(env, md, 1)
		return md, true
	}
	for _, host := range r.results.Keys() {
		if md, ok := r.results.Get(host); ok && md.HasAlias(env) {
			r.memo.Set(env, md, 1)
			return md, true
		}
	}
	return Metadata{}, false
}

// Resolve returns alias metadata for the authority, going to the network
// only when the host is not already known. knownEnvironments lists the
// environments the caller is about to match against; when every one of
// them is already known, discovery is skipped entirely.
func (r *CachingResolver) Resolve(ctx context.Context, authority Authority, knownEnvironments []string) (Metadata, error) {
	if md, ok := r.knownFor(authority.Host); ok {
		return md, nil
	}

	if len(knownEnvironments) > 0 {
		allKnown := true
		for _, env := range knownEnvironments {
			if _, ok := r.knownFor(env); !ok {
				allKnown = false
				break
			}
		}
		if allKnown {
			// The authority host itself is unknown but every candidate
			// environment is; synthesize a group so no network call is
			// needed for matching.
			return Metadata{
				PreferredCache:   authority.Host,
				PreferredNetwork: authority.Host,
				Aliases:          append([]string{authority.Host}, knownEnvironments...),
			}, nil
		}
	}

	if r.inner == nil {
		return Metadata{}, ErrNetworkRequired
	}

	v, err, shared := r.group.Do(authority.Host, func() (interface{}, error) {
		r.logger.Debug("performing instance discovery",
			logger.String("host", authority.Host))
		md, err := r.inner.Resolve(ctx, authority)
		if err != nil {
			return nil, err
		}
		r.results.Add(authority.Host, md)
		return md, nil
	})
	if err != nil {
		// discovery failures propagate; there is no stale fallback
		return Metadata{}, fmt.Errorf("instance discovery for %q: %w", authority.Host, err)
	}
	if shared {
		r.logger.Trace("instance discovery shared with concurrent caller",
			logger.String("host", authority.Host))
	}
	return v.(Metadata), nil
}

// PreferredCache resolves the canonical cache environment for an
// authority.
func (r *CachingResolver) PreferredCache(ctx context.Context, authority Authority) (string, error) {
	md, err := r.Resolve(ctx, authority, nil)
	if err != nil {
		return "", err
	}
	if md.PreferredCache == "" {
		return authority.Host, nil
	}
	return md.PreferredCache, nil
}
