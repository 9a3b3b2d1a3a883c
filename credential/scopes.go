package credential

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-secure-stdlib/strutil"
)

// Scopes granted implicitly by the identity provider. They are excluded
// from scope matching so a cached token is not rejected for lacking them.
var reservedScopes = []string{"openid", "profile", "offline_access"}

// NormalizeScopes produces the canonical scope string used in composite
// keys: lowercase, de-duplicated, sorted, space-joined.
func NormalizeScopes(scopes []string) string {
	cleaned := strutil.RemoveDuplicates(scopes, true)
	sort.Strings(cleaned)
	return strings.Join(cleaned, " ")
}

// FilterReservedScopes strips the implicit scopes from a requested scope
// list before matching against stored tokens.
func FilterReservedScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		if strutil.StrListContains(reservedScopes, strings.ToLower(s)) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ScopesContain reports whether every requested scope is present in the
// candidate set. Comparison is case-insensitive.
func ScopesContain(candidate, requested []string) bool {
	have := strutil.RemoveDuplicates(candidate, true)
	for _, want := range requested {
		if !strutil.StrListContains(have, strings.ToLower(want)) {
			return false
		}
	}
	return true
}

// ScopesIntersect reports whether the two scope sets share at least one
// member. Comparison is case-insensitive.
func ScopesIntersect(a, b []string) bool {
	have := strutil.RemoveDuplicates(a, true)
	for _, s := range b {
		if strutil.StrListContains(have, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
