package credential

// RefreshToken is a cached refresh token. A token carrying a family id
// (FOCI) is shared across all client ids in that family, so the family id
// replaces the client id in the composite key.
type RefreshToken struct {
	HomeAccountID     string `json:"home_account_id,omitempty"`
	Environment       string `json:"environment,omitempty"`
	ClientID          string `json:"client_id,omitempty"`
	FamilyID          string `json:"family_id,omitempty"`
	Secret            string `json:"secret,omitempty"`
	UserAssertionHash string `json:"user_assertion_hash,omitempty"`
}

func (r RefreshToken) ownerID() string {
	if r.UserAssertionHash != "" {
		return r.UserAssertionHash
	}
	return r.HomeAccountID
}

// credentialID is the client id component of the key, replaced by the
// family id for family refresh tokens.
func (r RefreshToken) credentialID() string {
	if r.FamilyID != "" {
		return r.FamilyID
	}
	return r.ClientID
}

// Key returns the item's unique composite key.
func (r RefreshToken) Key() string {
	return joinKey(r.ownerID(), r.Environment, KindRefreshToken, r.credentialID())
}

// Equal reports key-based value equality.
func (r RefreshToken) Equal(other RefreshToken) bool {
	return r.Key() == other.Key()
}
