package domain

import "time"

// ExternalIdentity is the already-verified claim set handed over by the
// identity-provider front door. Signature, issuer and audience checks
// happen upstream; this subsystem trusts the contents as-is.
type ExternalIdentity struct {
	Provider      string   `json:"provider"`
	Subject       string   `json:"subject"`
	Email         string   `json:"email"`
	PreferredName string   `json:"preferred_name,omitempty"`
	RawGroups     []string `json:"raw_groups,omitempty"`
}

// LocalUser is the record of truth linking an external identity to a
// downstream media-service account. ID equals the downstream user id once
// the account is provisioned; exactly one LocalUser exists per downstream
// account, and (Provider, Subject) is unique when present.
type LocalUser struct {
	ID                 string `json:"id"`
	Provider           string `json:"provider,omitempty"`
	Subject            string `json:"subject,omitempty"`
	Email              string `json:"email"`
	DisplayName        string `json:"display_name,omitempty"`
	DownstreamUsername string `json:"downstream_username,omitempty"`
	// ShadowPassword is the encrypted secret this subsystem uses to
	// re-authenticate downstream as the user. Only set for users this
	// subsystem provisioned; never exposed in plaintext.
	ShadowPassword    string     `json:"-"`
	RawGroups         []string   `json:"raw_groups,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	ExpiryWarningSent bool       `json:"expiry_warning_sent"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ExpiryState is the computed position of a user in the time-bounded
// account lifecycle. There is no stored state: it is derived from
// ExpiresAt, ExpiryWarningSent and the downstream disabled flag.
type ExpiryState string

const (
	ExpiryNone        ExpiryState = "no_expiry"
	ExpiryActive      ExpiryState = "active"
	ExpiryWarningSent ExpiryState = "warning_sent"
	ExpiryDisabled    ExpiryState = "disabled"
)

// ExpiryStateAt computes the lifecycle state at the given instant.
func (u *LocalUser) ExpiryStateAt(now time.Time, downstreamDisabled bool) ExpiryState {
	if u.ExpiresAt == nil {
		if downstreamDisabled {
			return ExpiryDisabled
		}
		return ExpiryNone
	}
	if downstreamDisabled || !u.ExpiresAt.After(now) {
		return ExpiryDisabled
	}
	if u.ExpiryWarningSent {
		return ExpiryWarningSent
	}
	return ExpiryActive
}

// DaysUntilExpiry returns the number of whole or partial days until the
// account expires, rounded up. Zero or negative means already expired;
// callers must check ExpiresAt != nil first.
func (u *LocalUser) DaysUntilExpiry(now time.Time) int {
	remaining := u.ExpiresAt.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// GroupsChanged reports whether the incoming raw group claims differ from
// the stored set. Comparison is order-independent and case-sensitive.
func (u *LocalUser) GroupsChanged(incoming []string) bool {
	if len(u.RawGroups) != len(incoming) {
		return true
	}
	seen := make(map[string]int, len(u.RawGroups))
	for _, g := range u.RawGroups {
		seen[g]++
	}
	for _, g := range incoming {
		if seen[g] == 0 {
			return true
		}
		seen[g]--
	}
	return false
}
