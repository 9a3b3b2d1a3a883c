package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-secure-stdlib/parseutil"

	"github.com/stephnangue/tokenvault/accessor"
	"github.com/stephnangue/tokenvault/credential"
	"github.com/stephnangue/tokenvault/external"
	"github.com/stephnangue/tokenvault/instance"
	"github.com/stephnangue/tokenvault/legacy"
	"github.com/stephnangue/tokenvault/logger"
)

// ErrConfigConflict is returned by New when the shared process-wide
// accessor and external serialization hooks are configured together. The
// two imply different owners of persistence and cannot be reconciled.
var ErrConfigConflict = errors.New("shared accessor and serialization hooks are mutually exclusive")

// DefaultExpiryBuffer is subtracted from token lifetimes at read time so
// callers never receive a token about to expire mid-flight.
const DefaultExpiryBuffer = 5 * time.Minute

// maxTokenLifetime is the sanity ceiling on stored expiries. An entry
// expiring further out than this is treated as corrupt, logged and
// skipped.
const maxTokenLifetime = 365 * 24 * time.Hour

// Config configures a Cache. The zero value is usable: an instance-scoped
// in-memory accessor, no discovery resolver, no legacy bridge, no hooks.
type Config struct {
	// Accessor is the storage backend. Nil selects a fresh in-memory
	// accessor owned by this cache instance.
	Accessor accessor.Accessor

	// Shared opts into the process-wide accessor handle. Mutually
	// exclusive with Hooks.
	Shared *accessor.Shared

	// Hooks are the external serialization lifecycle callbacks.
	Hooks external.Hooks

	// Resolver performs instance discovery. Nil restricts environment
	// resolution to the static known-environment table.
	Resolver *instance.CachingResolver

	// Legacy is the old-format bridge, consulted only when
	// EnableLegacyCache is set.
	Legacy            legacy.Bridge
	EnableLegacyCache bool

	// EnableFamilySharing lets family refresh tokens satisfy requests
	// from other clients of the family, and widens account removal to all
	// clients when a family token exists.
	EnableFamilySharing bool

	// EnableExtendedLifetime allows serving tokens past nominal expiry
	// while still inside their extended-lifetime window.
	EnableExtendedLifetime bool

	// ExpiryBuffer defaults to DefaultExpiryBuffer when zero.
	ExpiryBuffer time.Duration

	// BrokerAccounts optionally supplies platform-broker-known accounts
	// merged into GetAccounts results even when no refresh token exists.
	BrokerAccounts func() []credential.Account

	Logger logger.Logger
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		ExpiryBuffer:        DefaultExpiryBuffer,
		EnableFamilySharing: true,
	}
}

// ApplyConfMap overlays string tunables onto the config, in the accessor
// factory's conf-map style. Recognized keys: expiry_buffer (duration),
// enable_legacy_cache, enable_family_sharing, enable_extended_lifetime
// (booleans).
func (c *Config) ApplyConfMap(conf map[string]string) error {
	for key, raw := range conf {
		switch key {
		case "expiry_buffer":
			d, err := parseutil.ParseDurationSecond(raw)
			if err != nil {
				return fmt.Errorf("parsing expiry_buffer: %w", err)
			}
			c.ExpiryBuffer = d
		case "enable_legacy_cache":
			b, err := parseutil.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("parsing enable_legacy_cache: %w", err)
			}
			c.EnableLegacyCache = b
		case "enable_family_sharing":
			b, err := parseutil.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("parsing enable_family_sharing: %w", err)
			}
			c.EnableFamilySharing = b
		case "enable_extended_lifetime":
			b, err := parseutil.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("parsing enable_extended_lifetime: %w", err)
			}
			c.EnableExtendedLifetime = b
		default:
			return fmt.Errorf("unknown config key %q", key)
		}
	}
	return nil
}
