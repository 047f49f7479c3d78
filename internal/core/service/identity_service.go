package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
	"github.com/lolerskatez/jellyconnect/internal/core/ports"
	"github.com/lolerskatez/jellyconnect/internal/metrics"
)

// shadowPasswordLength is the length of generated shadow passwords.
const shadowPasswordLength = 32

// IdentityService reconciles verified IdP identities against the local
// store and the downstream media service.
type IdentityService struct {
	users    ports.UserRepository
	media    ports.MediaClient
	vault    *Vault
	notifier ports.Notifier
	lock     ports.LoginLock
	log      zerolog.Logger
}

func NewIdentityService(
	users ports.UserRepository,
	media ports.MediaClient,
	vault *Vault,
	notifier ports.Notifier,
	lock ports.LoginLock,
	log zerolog.Logger,
) *IdentityService {
	if lock == nil {
		lock = ports.NopLoginLock{}
	}
	return &IdentityService{
		users:    users,
		media:    media,
		vault:    vault,
		notifier: notifier,
		lock:     lock,
		log:      log,
	}
}

// ReconcileLogin finds, creates or updates the LocalUser for an
// already-verified identity. Fatal errors (ProvisioningError, transport
// failures before an account exists) propagate; policy-push failures are
// logged and swallowed so a downstream hiccup never blocks a login.
func (s *IdentityService) ReconcileLogin(ctx context.Context, identity domain.ExternalIdentity) (*domain.LocalUser, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, fmt.Errorf("reconcile login: identity has no email")
	}

	// Serialize concurrent logins for the same email where a real lock
	// backend is wired; an unavailable lock degrades to unlocked. A lock
	// held elsewhere after the retry budget is a retryable conflict, not
	// a pass-through: proceeding would reopen the check-then-act race the
	// lock exists to close.
	acquired, lockErr := s.acquireLoginLock(ctx, email)
	switch {
	case lockErr != nil && ctx.Err() != nil:
		return nil, lockErr
	case lockErr != nil:
		s.log.Warn().Err(lockErr).Str("email", email).Msg("login lock unavailable, proceeding unlocked")
	case acquired:
		defer func() {
			if rerr := s.lock.Release(context.WithoutCancel(ctx), email); rerr != nil {
				s.log.Warn().Err(rerr).Str("email", email).Msg("failed to release login lock")
			}
		}()
	default:
		s.log.Info().Str("email", email).Msg("login lock held elsewhere, rejecting concurrent login")
		return nil, domain.ErrLoginInProgress
	}

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user, err := s.provisionUser(ctx, identity, email)
		if err != nil {
			metrics.LoginsTotal.WithLabelValues("failed").Inc()
			return nil, err
		}
		return user, nil
	case err != nil:
		metrics.LoginsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("reconcile login: %w", err)
	}

	user, err := s.updateUser(ctx, existing, identity)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.LoginsTotal.WithLabelValues("updated").Inc()
	return user, nil
}

const (
	lockAttempts   = 4
	lockRetryDelay = 50 * time.Millisecond
)

// acquireLoginLock tries to take the per-email lock, retrying briefly so
// a login racing a near-finished one still gets through. Returns false
// with a nil error when the lock stayed held for the whole budget.
func (s *IdentityService) acquireLoginLock(ctx context.Context, email string) (bool, error) {
	for attempt := 0; ; attempt++ {
		ok, err := s.lock.Acquire(ctx, email)
		if err != nil || ok {
			return ok, err
		}
		if attempt+1 >= lockAttempts {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, fmt.Errorf("acquire login lock: %w", ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}
}

// provisionUser handles the first login for an identity: create (or
// adopt) the downstream account, apply the role policy, persist the
// LocalUser, and fire the welcome notification.
func (s *IdentityService) provisionUser(ctx context.Context, identity domain.ExternalIdentity, email string) (*domain.LocalUser, error) {
	role := domain.MapGroupsToRole(identity.RawGroups)

	username, err := s.deriveUsername(identity.PreferredName, email)
	if err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}

	secret, err := GenerateSecret(shadowPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}

	down, adopted, err := s.createOrAdopt(ctx, username, secret)
	if err != nil {
		return nil, err
	}

	// The shadow password only matches downstream when we created the
	// account ourselves; an adopted account keeps its existing credential.
	shadow := ""
	if !adopted {
		shadow, err = s.vault.Encrypt(secret)
		if err != nil {
			s.log.Error().Err(err).Str("downstream_id", down.ID).
				Msg("failed to encrypt shadow password, storing none")
			shadow = ""
		}
	}

	s.applyPolicy(ctx, down.ID, role)

	now := time.Now().UTC()
	user := &domain.LocalUser{
		ID:                 down.ID,
		Provider:           identity.Provider,
		Subject:            identity.Subject,
		Email:              email,
		DisplayName:        identity.PreferredName,
		DownstreamUsername: down.Name,
		ShadowPassword:     shadow,
		RawGroups:          identity.RawGroups,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		// The downstream account now exists without a local record; leave
		// enough in the log for manual reconciliation.
		s.log.Error().Err(err).
			Str("downstream_id", down.ID).
			Str("downstream_username", down.Name).
			Str("email", email).
			Msg("downstream account provisioned but local persist failed")
		return nil, fmt.Errorf("provision user: persist: %w", err)
	}

	if adopted {
		metrics.LoginsTotal.WithLabelValues("adopted").Inc()
	} else {
		metrics.LoginsTotal.WithLabelValues("created").Inc()
	}

	s.notify(ctx, ports.NotifyWelcome, user.ID, map[string]string{
		"email":    email,
		"username": down.Name,
	})

	s.log.Info().
		Str("user_id", user.ID).
		Str("email", email).
		Str("role", string(role)).
		Bool("adopted", adopted).
		Msg("user provisioned")

	return user, nil
}

// updateUser handles every login after the first: refresh identity
// fields, backfill legacy records, repair downstream drift, and re-apply
// policy when the group claims changed.
func (s *IdentityService) updateUser(ctx context.Context, user *domain.LocalUser, identity domain.ExternalIdentity) (*domain.LocalUser, error) {
	user.Provider = identity.Provider
	user.Subject = identity.Subject
	if identity.PreferredName != "" {
		user.DisplayName = identity.PreferredName
	}
	user.UpdatedAt = time.Now().UTC()

	// Legacy records predate the downstream-username field.
	if user.DownstreamUsername == "" {
		name, err := s.deriveUsername(identity.PreferredName, user.Email)
		if err != nil {
			return nil, fmt.Errorf("reconcile login: %w", err)
		}
		user.DownstreamUsername = name
	}

	// Defensive check: the downstream account may have been deleted by an
	// independent downstream reset.
	_, err := s.media.GetUser(ctx, user.ID)
	switch {
	case errors.Is(err, domain.ErrDownstreamUserNotFound):
		if err := s.repairDownstreamAccount(ctx, user, identity); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("reconcile login: %w", err)
	}

	if user.GroupsChanged(identity.RawGroups) {
		role := domain.MapGroupsToRole(identity.RawGroups)
		s.applyPolicy(ctx, user.ID, role)
		user.RawGroups = identity.RawGroups
		s.log.Info().
			Str("user_id", user.ID).
			Str("role", string(role)).
			Msg("group claims changed, policy re-applied")
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("reconcile login: persist: %w", err)
	}
	return user, nil
}

// repairDownstreamAccount recreates or re-adopts a downstream account
// that disappeared underneath an existing LocalUser and rebinds the
// stored downstream id. Loud on purpose: a missing account can also mean
// a misconfigured environment, so the repair is logged at WARN and
// counted rather than performed silently.
func (s *IdentityService) repairDownstreamAccount(ctx context.Context, user *domain.LocalUser, identity domain.ExternalIdentity) error {
	secret, err := GenerateSecret(shadowPasswordLength)
	if err != nil {
		return fmt.Errorf("repair account: %w", err)
	}

	down, adopted, err := s.createOrAdopt(ctx, user.DownstreamUsername, secret)
	if err != nil {
		return err
	}

	s.log.Warn().
		Str("old_downstream_id", user.ID).
		Str("new_downstream_id", down.ID).
		Str("email", user.Email).
		Bool("adopted", adopted).
		Msg("downstream account was missing, recreated")
	metrics.AccountRepairsTotal.Inc()

	user.ID = down.ID
	user.DownstreamUsername = down.Name
	if adopted {
		user.ShadowPassword = ""
	} else if shadow, err := s.vault.Encrypt(secret); err == nil {
		user.ShadowPassword = shadow
	} else {
		s.log.Error().Err(err).Str("downstream_id", down.ID).
			Msg("failed to encrypt shadow password after repair")
		user.ShadowPassword = ""
	}

	s.applyPolicy(ctx, user.ID, domain.MapGroupsToRole(identity.RawGroups))
	return nil
}

// createOrAdopt creates a downstream account, falling back to adopting a
// case-insensitive username match when the name is already taken
// (self-healing dedup). Both failing is a ProvisioningError.
func (s *IdentityService) createOrAdopt(ctx context.Context, username, password string) (*ports.DownstreamUser, bool, error) {
	down, err := s.media.CreateUser(ctx, username, password)
	if err == nil {
		if ctx.Err() != nil {
			// Cancelled after the account came into being: record the id so
			// the half-created account can be reconciled manually.
			s.log.Error().
				Str("downstream_id", down.ID).
				Str("downstream_username", down.Name).
				Msg("context cancelled after downstream create, account may be orphaned")
			return nil, false, fmt.Errorf("create user: %w", ctx.Err())
		}
		return down, false, nil
	}

	if !errors.Is(err, domain.ErrUsernameTaken) {
		return nil, false, &domain.ProvisioningError{Username: username, Err: err}
	}

	s.log.Info().Str("username", username).Msg("downstream username taken, attempting adoption")

	users, lerr := s.media.ListUsers(ctx)
	if lerr != nil {
		return nil, false, &domain.ProvisioningError{Username: username, Err: lerr}
	}
	for i := range users {
		if strings.EqualFold(users[i].Name, username) {
			return &users[i], true, nil
		}
	}
	return nil, false, &domain.ProvisioningError{Username: username, Err: err}
}

// applyPolicy pushes the role preset to the downstream account using
// read-merge-write: the existing authentication-provider identifiers and
// disabled state are preserved, since this subsystem does not own them.
// Failures are logged and swallowed (availability over consistency); the
// policy is re-applied on the next group-drift event.
func (s *IdentityService) applyPolicy(ctx context.Context, userID string, role domain.Role) {
	policy := domain.PolicyForRole(role)

	current, err := s.media.GetUser(ctx, userID)
	if err == nil {
		policy.AuthenticationProviderID = current.Policy.AuthenticationProviderID
		policy.PasswordResetProviderID = current.Policy.PasswordResetProviderID
		policy.IsDisabled = current.Policy.IsDisabled
		policy.InvalidLoginAttemptCount = current.Policy.InvalidLoginAttemptCount
		err = s.media.SetPolicy(ctx, userID, policy)
	}

	if err != nil {
		perr := &domain.PolicyApplicationError{UserID: userID, Err: err}
		s.log.Warn().Err(perr).Str("user_id", userID).Str("role", string(role)).
			Msg("policy application failed, login proceeds with stale permissions")
		metrics.PolicyApplyFailuresTotal.Inc()
	}
}

// deriveUsername prefers the sanitized provider-supplied name and falls
// back to generating one from the email.
func (s *IdentityService) deriveUsername(preferredName, email string) (string, error) {
	if name := SanitizeUsername(preferredName); name != "" {
		return name, nil
	}
	return GenerateUsername(email)
}

// notify is fire-and-forget: delivery problems are logged, never returned.
func (s *IdentityService) notify(ctx context.Context, kind ports.NotificationKind, userID string, params map[string]string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, kind, userID, params); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("user_id", userID).
			Msg("notification trigger failed")
	}
}
