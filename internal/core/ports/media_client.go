package ports

import (
	"context"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
)

// DownstreamUser is the media service's view of an account.
type DownstreamUser struct {
	ID     string        `json:"Id"`
	Name   string        `json:"Name"`
	Policy domain.Policy `json:"Policy"`
}

// AuthContext selects how a pairing-code approval authenticates against
// the media service. Exactly one shape is populated per attempt:
//   - UserToken: a per-user access token (delegated approval).
//   - TargetUserID: privileged service token plus an explicit user id
//     parameter.
//   - UserHint: privileged service token with the user id carried in the
//     secondary authorization header (older downstream convention).
//   - all empty: bare privileged service token, no attribution.
type AuthContext struct {
	UserToken    string
	TargetUserID string
	UserHint     string
}

// MediaClient is the downstream media-service API consumed by this
// subsystem. Implementations must apply a bounded timeout per call and
// surface transport failures as *domain.DownstreamUnavailable.
type MediaClient interface {
	// CreateUser provisions a downstream account with its initial
	// password (the shadow password, so delegated approval can later
	// re-authenticate as the user). Returns domain.ErrUsernameTaken when
	// the name is already in use.
	CreateUser(ctx context.Context, username, password string) (*DownstreamUser, error)
	// GetUser fetches an account with its current policy. Returns
	// domain.ErrDownstreamUserNotFound when the account does not exist.
	GetUser(ctx context.Context, id string) (*DownstreamUser, error)
	// SetPolicy replaces the account's policy wholesale. Callers must
	// read-merge-write to preserve fields they do not own.
	SetPolicy(ctx context.Context, id string, policy domain.Policy) error
	// ListUsers returns all downstream accounts.
	ListUsers(ctx context.Context) ([]DownstreamUser, error)
	// AuthenticateByName performs a username/password login downstream and
	// returns the resulting per-user access token.
	AuthenticateByName(ctx context.Context, username, password string) (string, error)
	// ApproveCode approves a device pairing code using the given auth context.
	ApproveCode(ctx context.Context, code string, auth AuthContext) error
}
