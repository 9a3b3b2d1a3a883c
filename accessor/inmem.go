package accessor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/armon/go-radix"
	"github.com/go-viper/mapstructure/v2"
	metrics "github.com/hashicorp/go-metrics"

	"github.com/stephnangue/tokenvault/credential"
	"github.com/stephnangue/tokenvault/logger"
)

// Verify interfaces are satisfied.
var (
	_ Accessor = (*InMemory)(nil)
	_ Accessor = (*Shared)(nil)
	_ Accessor = (*AppOnly)(nil)
)

// Tree key prefixes per credential type. Layout is
// "<prefix>/<partition>/<itemKey>"; partition scans walk
// "<prefix>/<partition>/" and full scans walk "<prefix>/".
const (
	prefixAccessToken  = "at"
	prefixRefreshToken = "rt"
	prefixIDToken      = "id"
	prefixAccount      = "acct"
	prefixAppMetadata  = "appmeta"
)

// Config holds the tunables of the in-memory accessor, decodable from a
// string conf map.
type Config struct {
	// MaxItems caps the total number of stored items; zero means no cap.
	MaxItems int `mapstructure:"max_items"`
}

// InMemory is the default accessor: a radix tree of partitioned items
// guarded by a single RWMutex. Each cache instance normally owns one; see
// Shared for the process-wide variant.
type InMemory struct {
	mu     sync.RWMutex
	root   *radix.Tree
	logger logger.Logger
	cfg    Config

	count int

	failSave   uint32
	failDelete uint32
	failList   uint32
}

// NewInMemory constructs an instance-scoped accessor from a string conf
// map; pass nil for defaults.
func NewInMemory(conf map[string]string, log logger.Logger) (*InMemory, error) {
	if log == nil {
		log = logger.NewNop()
	}
	var cfg Config
	if conf != nil {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(conf); err != nil {
			return nil, err
		}
	}
	return &InMemory{
		root:   radix.New(),
		logger: log.WithSubsystem("accessor"),
		cfg:    cfg,
	}, nil
}

// FailSave toggles save failures, for tests exercising partial writes.
func (m *InMemory) FailSave(fail bool) { setToggle(&m.failSave, fail) }

// FailDelete toggles delete failures.
func (m *InMemory) FailDelete(fail bool) { setToggle(&m.failDelete, fail) }

// FailList toggles list failures.
func (m *InMemory) FailList(fail bool) { setToggle(&m.failList, fail) }

func setToggle(target *uint32, fail bool) {
	var val uint32
	if fail {
		val = 1
	}
	atomic.StoreUint32(target, val)
}

func treeKey(prefix, partitionKey, itemKey string) string {
	return prefix + "/" + partitionKey + "/" + itemKey
}

func (m *InMemory) save(prefix, partitionKey, itemKey string, item interface{}) error {
	if atomic.LoadUint32(&m.failSave) != 0 {
		return ErrSaveDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.root.Insert(treeKey(prefix, partitionKey, itemKey), item)
	if !existed {
		m.count++
		if m.cfg.MaxItems > 0 && m.count > m.cfg.MaxItems {
			m.root.Delete(treeKey(prefix, partitionKey, itemKey))
			m.count--
			return ErrTooManyItems
		}
	}
	metrics.IncrCounter([]string{"tokenvault", "accessor", "save"}, 1)
	return nil
}

// delete removes an item. With an empty partition key the item's location
// is unknown, so the type's whole prefix is walked for a key-suffix match.
func (m *InMemory) delete(prefix, partitionKey, itemKey string) error {
	if atomic.LoadUint32(&m.failDelete) != 0 {
		return ErrDeleteDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	full := treeKey(prefix, partitionKey, itemKey)
	if partitionKey == "" {
		full = ""
		m.root.WalkPrefix(prefix+"/", func(s string, v interface{}) bool {
			if len(s) > len(itemKey) && s[len(s)-len(itemKey)-1] == '/' && s[len(s)-len(itemKey):] == itemKey {
				full = s
				return true
			}
			return false
		})
		if full == "" {
			m.logger.Info("delete of missing item ignored", logger.String("key", itemKey))
			return nil
		}
	}

	if _, ok := m.root.Delete(full); !ok {
		// idempotent: absence is informational only
		m.logger.Info("delete of missing item ignored", logger.String("key", itemKey))
		return nil
	}
	m.count--
	metrics.IncrCounter([]string{"tokenvault", "accessor", "delete"}, 1)
	return nil
}

// list collects all items under a partition, or under the entire type
// prefix when partitionKey is empty (the documented slow path).
func (m *InMemory) list(prefix, partitionKey string, visit func(interface{})) error {
	if atomic.LoadUint32(&m.failList) != 0 {
		return ErrListDisabled
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	walk := prefix + "/"
	if partitionKey != "" {
		walk += partitionKey + "/"
	}
	m.root.WalkPrefix(walk, func(s string, v interface{}) bool {
		visit(v)
		return false
	})
	return nil
}

func (m *InMemory) get(prefix, partitionKey, itemKey string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root.Get(treeKey(prefix, partitionKey, itemKey))
}

func (m *InMemory) SaveAccessToken(partitionKey string, at credential.AccessToken) error {
	return m.save(prefixAccessToken, partitionKey, at.Key(), at)
}

func (m *InMemory) DeleteAccessToken(partitionKey string, at credential.AccessToken) error {
	return m.delete(prefixAccessToken, partitionKey, at.Key())
}

func (m *InMemory) AccessTokens(partitionKey string) ([]credential.AccessToken, error) {
	var out []credential.AccessToken
	err := m.list(prefixAccessToken, partitionKey, func(v interface{}) {
		out = append(out, v.(credential.AccessToken))
	})
	return out, err
}

func (m *InMemory) SaveRefreshToken(partitionKey string, rt credential.RefreshToken) error {
	return m.save(prefixRefreshToken, partitionKey, rt.Key(), rt)
}

func (m *InMemory) DeleteRefreshToken(partitionKey string, rt credential.RefreshToken) error {
	return m.delete(prefixRefreshToken, partitionKey, rt.Key())
}

func (m *InMemory) RefreshTokens(partitionKey string) ([]credential.RefreshToken, error) {
	var out []credential.RefreshToken
	err := m.list(prefixRefreshToken, partitionKey, func(v interface{}) {
		out = append(out, v.(credential.RefreshToken))
	})
	return out, err
}

func (m *InMemory) SaveIDToken(partitionKey string, it credential.IDToken) error {
	return m.save(prefixIDToken, partitionKey, it.Key(), it)
}

func (m *InMemory) DeleteIDToken(partitionKey string, it credential.IDToken) error {
	return m.delete(prefixIDToken, partitionKey, it.Key())
}

func (m *InMemory) IDTokens(partitionKey string) ([]credential.IDToken, error) {
	var out []credential.IDToken
	err := m.list(prefixIDToken, partitionKey, func(v interface{}) {
		out = append(out, v.(credential.IDToken))
	})
	return out, err
}

func (m *InMemory) SaveAccount(partitionKey string, a credential.Account) error {
	return m.save(prefixAccount, partitionKey, a.Key(), a)
}

func (m *InMemory) DeleteAccount(partitionKey string, a credential.Account) error {
	return m.delete(prefixAccount, partitionKey, a.Key())
}

func (m *InMemory) Account(partitionKey, key string) (credential.Account, bool, error) {
	v, ok := m.get(prefixAccount, partitionKey, key)
	if !ok {
		return credential.Account{}, false, nil
	}
	return v.(credential.Account), true, nil
}

func (m *InMemory) Accounts(partitionKey string) ([]credential.Account, error) {
	var out []credential.Account
	err := m.list(prefixAccount, partitionKey, func(v interface{}) {
		out = append(out, v.(credential.Account))
	})
	return out, err
}

func (m *InMemory) SaveAppMetadata(md credential.AppMetadata) error {
	return m.save(prefixAppMetadata, "", md.Key(), md)
}

func (m *InMemory) AppMetadata(environment, clientID string) (credential.AppMetadata, bool, error) {
	want := credential.AppMetadata{ClientID: clientID, Environment: environment}
	v, ok := m.get(prefixAppMetadata, "", want.Key())
	if !ok {
		return credential.AppMetadata{}, false, nil
	}
	return v.(credential.AppMetadata), true, nil
}

func (m *InMemory) AppMetadataAll() ([]credential.AppMetadata, error) {
	var out []credential.AppMetadata
	err := m.list(prefixAppMetadata, "", func(v interface{}) {
		out = append(out, v.(credential.AppMetadata))
	})
	return out, err
}

func (m *InMemory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.root = radix.New()
	m.count = 0
	m.logger.Debug("accessor cleared")
	return nil
}

func (m *InMemory) HasAnyValidToken(partitionKey string) (bool, error) {
	now := time.Now()
	found := false

	err := m.list(prefixAccessToken, partitionKey, func(v interface{}) {
		if !v.(credential.AccessToken).Expired(now, 0) {
			found = true
		}
	})
	if err != nil || found {
		return found, err
	}
	err = m.list(prefixRefreshToken, partitionKey, func(v interface{}) {
		found = true
	})
	return found, err
}
