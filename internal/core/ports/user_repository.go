package ports

import (
	"context"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
)

// UserRepository defines persistence operations for linked users. The
// store is owned by the host and injected; implementations must return
// domain.ErrUserNotFound for missing records.
type UserRepository interface {
	// FindByEmail retrieves a user by email, the primary reconciliation key.
	FindByEmail(ctx context.Context, email string) (*domain.LocalUser, error)
	// FindByID retrieves a user by id (equal to the downstream user id).
	FindByID(ctx context.Context, id string) (*domain.LocalUser, error)
	// Upsert inserts or fully replaces the record, keyed by email so a
	// repaired user keeps a single record when its downstream id changes.
	Upsert(ctx context.Context, user *domain.LocalUser) error
	// ListWithExpiry returns every user with ExpiresAt set, for the sweep.
	ListWithExpiry(ctx context.Context) ([]*domain.LocalUser, error)
}
