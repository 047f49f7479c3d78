package ports

import (
	"context"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
)

// IdentityService reconciles verified external identities with local
// records and their mirrored downstream accounts.
type IdentityService interface {
	// ReconcileLogin finds, creates or updates the LocalUser for the given
	// identity, provisioning and repairing the downstream account as
	// needed. Policy-push failures are logged, not returned: a downstream
	// hiccup must not turn into a login outage.
	ReconcileLogin(ctx context.Context, identity domain.ExternalIdentity) (*domain.LocalUser, error)
}
