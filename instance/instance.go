package instance

import (
	"context"
	"errors"

	"github.com/hashicorp/go-secure-stdlib/strutil"
)

var (
	// ErrNetworkRequired is returned when alias resolution needs a
	// network round trip but no resolver was configured.
	ErrNetworkRequired = errors.New("instance discovery requires a network resolver")
)

// Metadata is one instance-discovery result: the set of equivalent
// environment aliases and the canonical environments among them.
type Metadata struct {
	// PreferredCache is the alias every new cache entry is normalized to.
	PreferredCache string
	// PreferredNetwork is the alias token requests should target.
	PreferredNetwork string
	Aliases          []string
}

// HasAlias reports whether env belongs to this metadata's alias set.
func (m Metadata) HasAlias(env string) bool {
	return strutil.StrListContains(m.Aliases, env)
}

// Resolver performs network instance discovery. Implemented by the host
// application's authority client; the engine only consumes it.
type Resolver interface {
	// Resolve returns the alias metadata for an authority. Implementations
	// perform at most one network round trip per call.
	Resolve(ctx context.Context, authority Authority) (Metadata, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, authority Authority) (Metadata, error)

func (f ResolverFunc) Resolve(ctx context.Context, authority Authority) (Metadata, error) {
	return f(ctx, authority)
}
