package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
	"github.com/lolerskatez/jellyconnect/internal/core/ports"
	"github.com/lolerskatez/jellyconnect/internal/metrics"
)

// DefaultWarnWindowDays is the expiry-warning window used when the caller
// passes a non-positive value.
const DefaultWarnWindowDays = 7

// LifecycleService sweeps time-bounded accounts: it warns users whose
// accounts expire inside the window and disables accounts already past
// their expiry. Per-user failures are logged and counted; the sweep always
// attempts every remaining candidate.
type LifecycleService struct {
	users    ports.UserRepository
	media    ports.MediaClient
	notifier ports.Notifier
	log      zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewLifecycleService(users ports.UserRepository, media ports.MediaClient, notifier ports.Notifier, log zerolog.Logger) *LifecycleService {
	return &LifecycleService{
		users:    users,
		media:    media,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunSweep executes one pass over every user with an expiry set.
func (s *LifecycleService) RunSweep(ctx context.Context, warnWindowDays int) (*ports.SweepResult, error) {
	if warnWindowDays <= 0 {
		warnWindowDays = DefaultWarnWindowDays
	}

	started := s.now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}()

	users, err := s.users.ListWithExpiry(ctx)
	if err != nil {
		return nil, fmt.Errorf("lifecycle sweep: %w", err)
	}

	result := &ports.SweepResult{}
	now := s.now()

	for _, user := range users {
		if user.ExpiresAt == nil {
			continue
		}
		result.Examined++

		if !user.ExpiresAt.After(now) {
			switch err := s.disableExpired(ctx, user); {
			case err == nil:
				result.Disabled++
				metrics.SweepUsersTotal.WithLabelValues("disabled").Inc()
			case errors.Is(err, errAlreadyDisabled):
				// Nothing to do; the state machine is already terminal.
			default:
				result.Failed++
				metrics.SweepUsersTotal.WithLabelValues("failed").Inc()
				s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to disable expired user")
			}
			continue
		}

		if user.ExpiryWarningSent {
			continue
		}
		days := user.DaysUntilExpiry(now)
		if days <= 0 || days > warnWindowDays {
			continue
		}

		if err := s.sendWarning(ctx, user, days); err != nil {
			result.Failed++
			metrics.SweepUsersTotal.WithLabelValues("failed").Inc()
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to warn expiring user")
			continue
		}
		result.Warned++
		metrics.SweepUsersTotal.WithLabelValues("warned").Inc()
	}

	s.log.Info().
		Int("examined", result.Examined).
		Int("warned", result.Warned).
		Int("disabled", result.Disabled).
		Int("failed", result.Failed).
		Msg("lifecycle sweep completed")

	return result, nil
}

// errAlreadyDisabled marks an expired user whose downstream account is
// already disabled; the sweep skips it without notifying again.
var errAlreadyDisabled = errors.New("already disabled")

// sendWarning fires the expiry warning and sets the idempotency flag.
// Clearing the flag when an expiry is extended is the contract obligation
// of whoever edits ExpiresAt, not of this sweep.
func (s *LifecycleService) sendWarning(ctx context.Context, user *domain.LocalUser, days int) error {
	if err := s.notifier.Notify(ctx, ports.NotifyExpiryWarning, user.ID, map[string]string{
		"email":          user.Email,
		"days_remaining": strconv.Itoa(days),
		"expires_at":     user.ExpiresAt.Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("notify expiry warning: %w", err)
	}

	user.ExpiryWarningSent = true
	user.UpdatedAt = s.now()
	if err := s.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("persist warning flag: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Int("days_remaining", days).Msg("expiry warning sent")
	return nil
}

// disableExpired notifies and disables a user downstream, preserving
// every policy field it does not own. The downstream disabled flag is the
// idempotency check: an already-disabled account is left untouched.
func (s *LifecycleService) disableExpired(ctx context.Context, user *domain.LocalUser) error {
	down, err := s.media.GetUser(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrDownstreamUserNotFound) {
			s.log.Warn().Str("user_id", user.ID).Msg("expired user has no downstream account, skipping disable")
			return errAlreadyDisabled
		}
		return fmt.Errorf("read downstream user: %w", err)
	}
	if down.Policy.IsDisabled {
		return errAlreadyDisabled
	}

	if err := s.notifier.Notify(ctx, ports.NotifyAccountDisabled, user.ID, map[string]string{
		"email":      user.Email,
		"expired_at": user.ExpiresAt.Format(time.RFC3339),
	}); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("account-disabled notification failed, disabling anyway")
	}

	policy := down.Policy
	policy.IsDisabled = true
	if err := s.media.SetPolicy(ctx, user.ID, policy); err != nil {
		return fmt.Errorf("disable downstream user: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Time("expired_at", *user.ExpiresAt).Msg("expired account disabled")
	return nil
}
