package credential

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// ClientInfo is the provider-issued pair identifying the physical user
// (uid) and their home tenant (utid).
type ClientInfo struct {
	UID  string `json:"uid"`
	UTID string `json:"utid"`
}

// DecodeClientInfo parses the base64url client_info blob from a token
// response.
func DecodeClientInfo(raw string) (ClientInfo, error) {
	var ci ClientInfo
	if raw == "" {
		return ci, fmt.Errorf("empty client info")
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return ci, fmt.Errorf("decoding client info: %w", err)
	}
	if err := json.Unmarshal(data, &ci); err != nil {
		return ci, fmt.Errorf("parsing client info: %w", err)
	}
	return ci, nil
}

// HomeAccountID renders the canonical "<uid>.<utid>" identity key.
func (c ClientInfo) HomeAccountID() string {
	if c.UID == "" && c.UTID == "" {
		return ""
	}
	return fmt.Sprintf("%s.%s", c.UID, c.UTID)
}

// HomeTenant extracts the utid half of a home account id, used to mark a
// tenant profile as the home tenant.
func HomeTenant(homeAccountID string) string {
	if i := strings.LastIndex(homeAccountID, "."); i >= 0 {
		return homeAccountID[i+1:]
	}
	return ""
}
