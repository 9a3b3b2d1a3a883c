package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-secure-stdlib/strutil"

	"github.com/stephnangue/tokenvault/credential"
	"github.com/stephnangue/tokenvault/logger"
)

const blobVersion = 1

// blobSchema is the legacy on-disk layout: one JSON document holding every
// user and refresh token, keyed by lowercase composite keys.
type blobSchema struct {
	Version       int                                `json:"version"`
	Users         map[string]User                    `json:"users,omitempty"`
	RefreshTokens map[string]credential.RefreshToken `json:"refresh_tokens,omitempty"`
}

// JSONBridge implements Bridge over a BlobStore with load-mutate-save
// semantics. Every mutation deserializes the whole blob, applies the change
// and writes it back under an internal mutex.
type JSONBridge struct {
	mu     sync.Mutex
	store  BlobStore
	logger logger.Logger
}

var _ Bridge = (*JSONBridge)(nil)

// NewJSONBridge builds a bridge over the given blob store.
func NewJSONBridge(store BlobStore, log logger.Logger) *JSONBridge {
	if log == nil {
		log = logger.NewNop()
	}
	return &JSONBridge{
		store:  store,
		logger: log.WithSubsystem("legacy"),
	}
}

func (b *JSONBridge) load(ctx context.Context) (*blobSchema, error) {
	raw, err := b.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading legacy blob: %w", err)
	}
	schema := &blobSchema{Version: blobVersion}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, schema); err != nil {
			return nil, fmt.Errorf("decoding legacy blob: %w", err)
		}
	}
	if schema.Users == nil {
		schema.Users = make(map[string]User)
	}
	if schema.RefreshTokens == nil {
		schema.RefreshTokens = make(map[string]credential.RefreshToken)
	}
	return schema, nil
}

func (b *JSONBridge) save(ctx context.Context, schema *blobSchema) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encoding legacy blob: %w", err)
	}
	if err := b.store.Store(ctx, raw); err != nil {
		return fmt.Errorf("storing legacy blob: %w", err)
	}
	return nil
}

func legacyKey(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "-"))
}

func (b *JSONBridge) WriteRefreshToken(ctx context.Context, rt credential.RefreshToken) error {
	if rt.HomeAccountID == "" || rt.Secret == "" {
		// nothing the legacy schema can index; skip quietly
		b.logger.Debug("skipping legacy mirror of incomplete refresh token")
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	schema, err := b.load(ctx)
	if err != nil {
		return err
	}

	// the legacy format predates token families
	stored := rt
	stored.FamilyID = ""
	schema.RefreshTokens[legacyKey(stored.HomeAccountID, stored.Environment, stored.ClientID)] = stored

	userKey := legacyKey(rt.HomeAccountID, rt.Environment)
	if _, ok := schema.Users[userKey]; !ok {
		schema.Users[userKey] = User{
			HomeAccountID: rt.HomeAccountID,
			Environment:   rt.Environment,
		}
	}
	return b.save(ctx, schema)
}

func (b *JSONBridge) RefreshToken(ctx context.Context, clientID, homeAccountID string, environments []string) (credential.RefreshToken, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	schema, err := b.load(ctx)
	if err != nil {
		return credential.RefreshToken{}, false, err
	}
	for _, rt := range schema.RefreshTokens {
		if !strings.EqualFold(rt.ClientID, clientID) {
			continue
		}
		if !strings.EqualFold(rt.HomeAccountID, homeAccountID) {
			continue
		}
		if len(environments) > 0 && !strutil.StrListContains(environments, rt.Environment) {
			continue
		}
		return rt, true, nil
	}
	return credential.RefreshToken{}, false, nil
}

func (b *JSONBridge) RemoveUser(ctx context.Context, homeAccountID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	schema, err := b.load(ctx)
	if err != nil {
		return err
	}

	removed := 0
	for key, u := range schema.Users {
		if strings.EqualFold(u.HomeAccountID, homeAccountID) {
			delete(schema.Users, key)
			removed++
		}
	}
	for key, rt := range schema.RefreshTokens {
		if strings.EqualFold(rt.HomeAccountID, homeAccountID) {
			delete(schema.RefreshTokens, key)
			removed++
		}
	}
	if removed == 0 {
		b.logger.Info("legacy removal found nothing to delete",
			logger.String("home_account_id", homeAccountID))
		return nil
	}
	return b.save(ctx, schema)
}

func (b *JSONBridge) AllUsers(ctx context.Context, environments []string) ([]User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	schema, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []User
	for _, u := range schema.Users {
		if len(environments) > 0 && !strutil.StrListContains(environments, u.Environment) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}
