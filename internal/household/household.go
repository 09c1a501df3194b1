// Package household derives the grouping key shared by a pair of members and keeps
// records written under the legacy key moving to the current one.
package household

import (
	"sort"

	"github.com/mmynk/hogar/internal/identity"
)

// Delimiter joins the two sorted member keys of a household id.
const Delimiter = "__"

// Scheme identifies how a household id was derived.
type Scheme int

const (
	// SchemeCurrent pairs the signed-in member's email key with the partner key.
	SchemeCurrent Scheme = iota
	// SchemeLegacy pairs the signed-in member's account id with the partner key.
	SchemeLegacy
)

func (s Scheme) String() string {
	switch s {
	case SchemeCurrent:
		return "current"
	case SchemeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// ID joins the normalized keys of a and b in lexicographic order.
// It returns "" when either side normalizes to empty.
func ID(a, b string) string {
	keyA := identity.NormalizeKey(a)
	keyB := identity.NormalizeKey(b)
	if keyA == "" || keyB == "" {
		return ""
	}
	pair := []string{string(keyA), string(keyB)}
	sort.Strings(pair)
	return pair[0] + Delimiter + pair[1]
}

// IDFor derives the household id for user and partner under the given scheme.
func IDFor(scheme Scheme, user identity.User, partner string) string {
	switch scheme {
	case SchemeCurrent:
		return ID(user.Email, partner)
	case SchemeLegacy:
		return ID(user.UID, partner)
	default:
		return ""
	}
}

// Address is the set of household ids under which the active pair's records may live.
type Address struct {
	Current string
	Legacy  string
}

// Resolve computes both candidate ids for the signed-in user and partner.
func Resolve(user identity.User, partner string) Address {
	return Address{
		Current: IDFor(SchemeCurrent, user, partner),
		Legacy:  IDFor(SchemeLegacy, user, partner),
	}
}

// IDs returns the distinct resolvable ids, current first. Empty means the identity pair is
// not resolvable yet and nothing should be subscribed to.
func (a Address) IDs() []string {
	var ids []string
	if a.Current != "" {
		ids = append(ids, a.Current)
	}
	if a.Legacy != "" && a.Legacy != a.Current {
		ids = append(ids, a.Legacy)
	}
	return ids
}

// Resolvable reports whether at least one id could be derived.
func (a Address) Resolvable() bool {
	return a.Current != "" || a.Legacy != ""
}

// Contains reports whether id addresses this household.
func (a Address) Contains(id string) bool {
	return id != "" && (id == a.Current || id == a.Legacy)
}

// NeedsMigration reports whether records under the legacy id must be relabeled.
func (a Address) NeedsMigration() bool {
	return a.Current != "" && a.Legacy != "" && a.Current != a.Legacy
}

// ForNewRecord is the id stamped on newly created records: the current id, or the legacy
// one when no email is known for the signed-in user.
func (a Address) ForNewRecord() string {
	if a.Current != "" {
		return a.Current
	}
	return a.Legacy
}
