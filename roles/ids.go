// Package roles defines the account role slugs known to walletauth.
package roles

import "github.com/google/uuid"

const (
	User      = "user"
	Organizer = "organizer" // may create events
	Admin     = "admin"
)

// Default is assigned to every account created through wallet signup.
const Default = User

// All lists every known slug, in privilege order.
var All = []string{User, Organizer, Admin}

// Valid reports whether slug is a known role.
func Valid(slug string) bool {
	for _, r := range All {
		if r == slug {
			return true
		}
	}
	return false
}

// NamespaceRoleIDs is the UUID namespace used to derive stable role IDs from slugs.
//
// Role IDs are computed as UUIDv5(namespace, "role:"+slug). Slugs are treated as immutable identity.
var NamespaceRoleIDs = uuid.MustParse("ef5d0f45-83c6-5dbe-b15a-e017bc88ab5a")

func IDFromSlug(slug string) uuid.UUID {
	return uuid.NewSHA1(NamespaceRoleIDs, []byte("role:"+slug))
}
