package credential

// IDToken is a cached raw identity token, keyed per tenant.
type IDToken struct {
	HomeAccountID string `json:"home_account_id,omitempty"`
	Environment   string `json:"environment,omitempty"`
	Realm         string `json:"realm,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	Secret        string `json:"secret,omitempty"` // the raw token
}

// Key returns the item's unique composite key.
func (i IDToken) Key() string {
	return joinKey(i.HomeAccountID, i.Environment, KindIDToken, i.ClientID, i.Realm)
}

// Equal reports key-based value equality.
func (i IDToken) Equal(other IDToken) bool {
	return i.Key() == other.Key()
}

// TenantProfile projects the tenant-specific slice of an ID token. It is
// derived on read and never persisted on its own.
func (i IDToken) TenantProfile() TenantProfile {
	return TenantProfile{
		TenantID:     i.Realm,
		ClientID:     i.ClientID,
		IsHomeTenant: i.Realm != "" && i.Realm == HomeTenant(i.HomeAccountID),
	}
}
