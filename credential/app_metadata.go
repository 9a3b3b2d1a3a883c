package credential

// AppMetadata records whether a client participates in a token-sharing
// family. It is shared reference data, not partitioned per user.
type AppMetadata struct {
	ClientID    string `json:"client_id,omitempty"`
	Environment string `json:"environment,omitempty"`
	FamilyID    string `json:"family_id,omitempty"`
}

// Key returns the item's unique composite key.
func (m AppMetadata) Key() string {
	return joinKey(KindAppMetadata, m.Environment, m.ClientID)
}

// Equal reports key-based value equality.
func (m AppMetadata) Equal(other AppMetadata) bool {
	return m.Key() == other.Key()
}
