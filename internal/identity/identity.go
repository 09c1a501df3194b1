// Package identity canonicalizes member identifiers so that records written under an
// account id, an email, or a differently-cased email all resolve to the same person.
package identity

import (
	"sort"
	"strings"
)

// Key is a normalized member identifier. The empty Key is never a valid member.
type Key string

// User is the signed-in party as supplied by the identity provider.
type User struct {
	// UID is the opaque account identifier.
	UID string

	// Email is the account email. May be empty for accounts without one.
	Email string
}

// NormalizeKey trims raw and lowercases it when it looks like an email.
// Opaque ids are returned verbatim after trimming.
func NormalizeKey(raw string) Key {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.Contains(trimmed, "@") {
		return Key(strings.ToLower(trimmed))
	}
	return Key(trimmed)
}

// KeySet is the set of keys known to refer to one logical person.
type KeySet map[Key]struct{}

// BuildKeySet normalizes every raw identifier and keeps the non-empty ones.
func BuildKeySet(raws ...string) KeySet {
	set := make(KeySet, len(raws))
	for _, raw := range raws {
		set.Add(NormalizeKey(raw))
	}
	return set
}

// Add inserts k unless it is empty. Reports whether the set grew.
func (s KeySet) Add(k Key) bool {
	if k == "" {
		return false
	}
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}

// Has reports whether k is a member. The empty key is never a member.
func (s KeySet) Has(k Key) bool {
	if k == "" {
		return false
	}
	_, ok := s[k]
	return ok
}

// Matches normalizes raw before testing membership.
func (s KeySet) Matches(raw string) bool {
	return s.Has(NormalizeKey(raw))
}

// Clone returns an independent copy; a nil set clones to an empty one.
func (s KeySet) Clone() KeySet {
	out := make(KeySet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexicographic order.
func (s KeySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// PrimaryKey is the canonical key written into new records: the email key when the
// user has one, the account id key otherwise.
func PrimaryKey(u User) Key {
	if k := NormalizeKey(u.Email); k != "" {
		return k
	}
	return NormalizeKey(u.UID)
}

// KeysForUser returns every key under which u may appear in historical records.
func KeysForUser(u User) KeySet {
	return BuildKeySet(u.UID, u.Email, string(PrimaryKey(u)))
}
