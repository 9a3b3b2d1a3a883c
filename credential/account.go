package credential

// Account represents one physical user identity within one environment:
// the union of the tenant profiles the user has authenticated into.
type Account struct {
	HomeAccountID     string            `json:"home_account_id,omitempty"`
	Environment       string            `json:"environment,omitempty"`
	Realm             string            `json:"realm,omitempty"` // root tenant
	LocalAccountID    string            `json:"local_account_id,omitempty"`
	PreferredUsername string            `json:"username,omitempty"`
	Name              string            `json:"name,omitempty"`
	// Aliases holds platform-specific account identifiers contributed by
	// brokers or host platforms. Merged as a union on save.
	Aliases map[string]string `json:"aliases,omitempty"`

	// TenantProfiles is derived from the ID tokens sharing this account's
	// home account id. Populated on read, never persisted.
	TenantProfiles []TenantProfile `json:"-"`
}

// TenantProfile is a projection of an ID token's tenant-specific claims.
type TenantProfile struct {
	TenantID     string
	ClientID     string
	IsHomeTenant bool
}

// Key returns the account's unique composite key.
func (a Account) Key() string {
	return joinKey(a.HomeAccountID, a.Environment, a.Realm)
}

// Equal reports key-based value equality.
func (a Account) Equal(other Account) bool {
	return a.Key() == other.Key()
}

// MergeAliases unions the alias map of a previously stored account into
// this one without overwriting entries the new account already carries.
func (a *Account) MergeAliases(stored Account) {
	if len(stored.Aliases) == 0 {
		return
	}
	if a.Aliases == nil {
		a.Aliases = make(map[string]string, len(stored.Aliases))
	}
	for k, v := range stored.Aliases {
		if _, ok := a.Aliases[k]; !ok {
			a.Aliases[k] = v
		}
	}
}
