package ports

import (
	"context"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
)

// Approval strategy names, in cascade order of decreasing guarantee.
const (
	StrategyDelegated      = "delegated"
	StrategyPrivilegedUser = "privileged_user_id"
	StrategyUserHint       = "privileged_user_hint"
	StrategyBarePrivileged = "bare_privileged"
)

// ApprovalResult reports which strategy approved a pairing code.
// AttributionWarning is set when the bare privileged strategy succeeded:
// the downstream session may be attributed to the service account rather
// than the user, and callers must surface that to the approving actor.
type ApprovalResult struct {
	Strategy           string `json:"strategy"`
	AttributionWarning bool   `json:"attribution_warning"`
}

// PairingService approves device pairing codes on behalf of an already
// authenticated local user.
type PairingService interface {
	ApproveCode(ctx context.Context, code string, user *domain.LocalUser) (*ApprovalResult, error)
}
