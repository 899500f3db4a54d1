package normalize

import "strings"

// Identity returns the canonical form of a participant identifier as used
// for room addresses and unread-count keys. Identifiers are opaque, so only
// surrounding whitespace is removed; case is significant.
func Identity(id string) string {
	return strings.TrimSpace(id)
}

// Identities normalizes every element of ids in place and returns it.
func Identities(ids ...string) []string {
	for i := range ids {
		ids[i] = Identity(ids[i])
	}
	return ids
}

// ValidKey reports whether id can be used as a key of an embedded
// document: non-empty, no dots and no leading '$'.
func ValidKey(id string) bool {
	return id != "" && !strings.HasPrefix(id, "$") && !strings.Contains(id, ".")
}
