package domain

import "strings"

// Role is the closed set of access levels a linked user can hold.
// Privilege order: RoleAdmin > RolePowerUser > RoleUser.
type Role string

const (
	RoleAdmin     Role = "admin"
	RolePowerUser Role = "poweruser"
	RoleUser      Role = "user"
)

// adminGroups and powerUserGroups hold the normalized group names that map
// to each role. Normalization (normalizeGroup) already strips separators,
// so "Power-Users" and "power_users" both land on "powerusers".
var adminGroups = map[string]struct{}{
	"administrator":  {},
	"administrators": {},
	"admin":          {},
	"admins":         {},
}

var powerUserGroups = map[string]struct{}{
	"poweruser":  {},
	"powerusers": {},
}

// MapGroupsToRole derives a Role from raw identity-provider group claims.
// Matching is case- and separator-insensitive, most privileged first.
// Empty or unmatched input yields RoleUser.
func MapGroupsToRole(groups []string) Role {
	normalized := make([]string, 0, len(groups))
	for _, g := range groups {
		normalized = append(normalized, normalizeGroup(g))
	}

	for _, g := range normalized {
		if _, ok := adminGroups[g]; ok {
			return RoleAdmin
		}
	}
	for _, g := range normalized {
		if _, ok := powerUserGroups[g]; ok {
			return RolePowerUser
		}
	}
	return RoleUser
}

// normalizeGroup lowercases a group claim and strips whitespace, hyphens
// and underscores so provider-specific spellings compare equal.
func normalizeGroup(group string) string {
	var b strings.Builder
	b.Grow(len(group))
	for _, r := range strings.ToLower(group) {
		switch r {
		case ' ', '\t', '-', '_':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Policy is the downstream media service's native permission record.
// It is derived from Role and pushed as a whole; the authentication
// provider identifiers are preserved from the existing downstream policy
// on every write (overwriting them breaks downstream authentication).
type Policy struct {
	IsAdministrator            bool   `json:"IsAdministrator"`
	IsDisabled                 bool   `json:"IsDisabled"`
	IsHidden                   bool   `json:"IsHidden"`
	EnableMediaPlayback        bool   `json:"EnableMediaPlayback"`
	EnableContentDownloading   bool   `json:"EnableContentDownloading"`
	EnableSyncTranscoding      bool   `json:"EnableSyncTranscoding"`
	EnableLiveTvAccess         bool   `json:"EnableLiveTvAccess"`
	EnableLiveTvManagement     bool   `json:"EnableLiveTvManagement"`
	EnableCollectionManagement bool   `json:"EnableCollectionManagement"`
	EnableAllFolders           bool   `json:"EnableAllFolders"`
	EnableRemoteAccess         bool   `json:"EnableRemoteAccess"`
	InvalidLoginAttemptCount   int    `json:"InvalidLoginAttemptCount"`
	AuthenticationProviderID   string `json:"AuthenticationProviderId,omitempty"`
	PasswordResetProviderID    string `json:"PasswordResetProviderId,omitempty"`
}

// PolicyForRole returns the fixed capability preset for a role. It is a
// pure total function over the three-member enum; re-applying it on every
// login produces no drift.
func PolicyForRole(role Role) Policy {
	switch role {
	case RoleAdmin:
		return Policy{
			IsAdministrator:            true,
			EnableMediaPlayback:        true,
			EnableContentDownloading:   true,
			EnableSyncTranscoding:      true,
			EnableLiveTvAccess:         true,
			EnableLiveTvManagement:     true,
			EnableCollectionManagement: true,
			EnableAllFolders:           true,
			EnableRemoteAccess:         true,
		}
	case RolePowerUser:
		return Policy{
			EnableMediaPlayback:      true,
			EnableContentDownloading: true,
			EnableSyncTranscoding:    true,
			EnableLiveTvAccess:       true,
			EnableAllFolders:         true,
			EnableRemoteAccess:       true,
		}
	default: // RoleUser, including unknown values
		return Policy{
			EnableMediaPlayback: true,
			EnableLiveTvAccess:  true,
			EnableRemoteAccess:  true,
		}
	}
}
