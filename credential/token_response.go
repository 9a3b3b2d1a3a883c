package credential

import (
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/stephnangue/tokenvault/helper"
)

// TokenResponse is the engine's view of a successful token grant. The
// transport layer produces it; the cache engine only consumes it.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	IDToken      string // raw identity token, may be empty
	ClientInfo   string // raw base64url client_info, may be empty

	GrantedScopes []string
	TokenType     string
	KeyID         string // proof-of-possession key binding
	FamilyID      string

	IssuedAt          time.Time
	ExpiresOn         time.Time
	ExtendedExpiresOn time.Time
}

// FromOAuth2Token adapts a *oauth2.Token, picking the provider extensions
// (id_token, client_info, scope, foci, ext_expires_in) out of the extra
// fields. Transports built on golang.org/x/oauth2 plug in through this.
func FromOAuth2Token(tok *oauth2.Token, issuedAt time.Time) TokenResponse {
	tr := TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		IssuedAt:     issuedAt,
		ExpiresOn:    tok.Expiry,
	}
	if v, ok := tok.Extra("id_token").(string); ok {
		tr.IDToken = v
	}
	if v, ok := tok.Extra("client_info").(string); ok {
		tr.ClientInfo = v
	}
	if v, ok := tok.Extra("foci").(string); ok {
		tr.FamilyID = v
	}
	if v, ok := tok.Extra("scope").(string); ok && v != "" {
		tr.GrantedScopes = strings.Fields(v)
	}
	switch v := tok.Extra("ext_expires_in").(type) {
	case float64:
		tr.ExtendedExpiresOn = issuedAt.Add(time.Duration(v) * time.Second)
	case int64:
		tr.ExtendedExpiresOn = issuedAt.Add(time.Duration(v) * time.Second)
	}
	return tr
}

// HomeAccountID resolves the owning identity of a token response: decoded
// client_info when present, else the identity token's subject claim (ADFS
// deployments omit client_info). Empty when neither is available.
func (tr TokenResponse) HomeAccountID(claims *IDTokenClaims) string {
	if tr.ClientInfo != "" {
		if ci, err := DecodeClientInfo(tr.ClientInfo); err == nil {
			if id := ci.HomeAccountID(); id != "" {
				return id
			}
		}
	}
	if claims != nil {
		return claims.Subject
	}
	return ""
}

// NewAccessToken builds the cache item for a token response.
func NewAccessToken(homeAccountID, env, realm, clientID, assertionHash string, tr TokenResponse, isADFS bool) AccessToken {
	return AccessToken{
		HomeAccountID:     homeAccountID,
		Environment:       env,
		Realm:             realm,
		ClientID:          clientID,
		Secret:            tr.AccessToken,
		Scopes:            tr.GrantedScopes,
		IssuedAt:          helper.NewUnixTime(tr.IssuedAt),
		ExpiresOn:         helper.NewUnixTime(tr.ExpiresOn),
		ExtendedExpiresOn: helper.NewUnixTime(tr.ExtendedExpiresOn),
		KeyID:             tr.KeyID,
		TokenType:         tr.TokenType,
		UserAssertionHash: assertionHash,
		IsADFS:            isADFS,
	}
}

// NewRefreshToken builds the cache item for a token response.
func NewRefreshToken(homeAccountID, env, clientID, assertionHash string, tr TokenResponse) RefreshToken {
	return RefreshToken{
		HomeAccountID:     homeAccountID,
		Environment:       env,
		ClientID:          clientID,
		FamilyID:          tr.FamilyID,
		Secret:            tr.RefreshToken,
		UserAssertionHash: assertionHash,
	}
}

// NewIDToken builds the cache item for a token response.
func NewIDToken(homeAccountID, env, realm, clientID string, tr TokenResponse) IDToken {
	return IDToken{
		HomeAccountID: homeAccountID,
		Environment:   env,
		Realm:         realm,
		ClientID:      clientID,
		Secret:        tr.IDToken,
	}
}

// NewAccount builds the account record for a token response.
func NewAccount(homeAccountID, env, realm string, claims IDTokenClaims, isADFS bool) Account {
	return Account{
		HomeAccountID:     homeAccountID,
		Environment:       env,
		Realm:             realm,
		LocalAccountID:    claims.LocalAccountID(),
		PreferredUsername: claims.Username(isADFS),
		Name:              claims.Name,
	}
}
