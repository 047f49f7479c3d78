package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
	"github.com/lolerskatez/jellyconnect/internal/core/ports"
	"github.com/lolerskatez/jellyconnect/internal/metrics"
)

// PairingService approves device pairing codes on behalf of an
// authenticated local user via a cascade of strategies of decreasing
// security guarantee. First success wins; every failure is logged before
// the next strategy runs. No strategy persists state.
type PairingService struct {
	media ports.MediaClient
	vault *Vault
	// allowUnattributed gates the bare privileged fallback, which may
	// attribute the downstream session to the service account.
	allowUnattributed bool
	log               zerolog.Logger
}

func NewPairingService(media ports.MediaClient, vault *Vault, allowUnattributed bool, log zerolog.Logger) *PairingService {
	return &PairingService{
		media:             media,
		vault:             vault,
		allowUnattributed: allowUnattributed,
		log:               log,
	}
}

// ApproveCode runs the approval cascade:
//  1. delegated: decrypt the shadow password, authenticate downstream as
//     the user, approve with the per-user token (only strategy that
//     correctly attributes the pairing);
//  2. privileged service credential with an explicit target-user id;
//  3. privileged credential with the user id in the secondary
//     authorization header;
//  4. bare privileged credential, no attribution; the result carries
//     AttributionWarning and callers must surface it.
//
// All strategies exhausted yields *domain.PairingApprovalError with the
// last strategy's detail.
func (s *PairingService) ApproveCode(ctx context.Context, code string, user *domain.LocalUser) (*ports.ApprovalResult, error) {
	if code == "" {
		return nil, fmt.Errorf("approve code: empty pairing code")
	}
	if user == nil {
		return nil, fmt.Errorf("approve code: nil user")
	}

	lastStrategy := ""
	var lastErr error

	// Strategy 1: delegated via the shadow password.
	if user.ShadowPassword != "" && user.DownstreamUsername != "" {
		lastStrategy = ports.StrategyDelegated
		if err := s.approveDelegated(ctx, code, user); err == nil {
			metrics.PairingApprovalsTotal.WithLabelValues(ports.StrategyDelegated).Inc()
			s.log.Info().Str("user_id", user.ID).Str("strategy", ports.StrategyDelegated).Msg("pairing code approved")
			return &ports.ApprovalResult{Strategy: ports.StrategyDelegated}, nil
		} else {
			lastErr = err
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("delegated approval failed, falling back")
		}
	}

	// Strategy 2: privileged credential + explicit target user id.
	lastStrategy = ports.StrategyPrivilegedUser
	if err := s.media.ApproveCode(ctx, code, ports.AuthContext{TargetUserID: user.ID}); err == nil {
		metrics.PairingApprovalsTotal.WithLabelValues(ports.StrategyPrivilegedUser).Inc()
		s.log.Info().Str("user_id", user.ID).Str("strategy", ports.StrategyPrivilegedUser).Msg("pairing code approved")
		return &ports.ApprovalResult{Strategy: ports.StrategyPrivilegedUser}, nil
	} else {
		lastErr = err
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("privileged approval with user id failed, falling back")
	}

	// Strategy 3: privileged credential + user-hint header.
	lastStrategy = ports.StrategyUserHint
	if err := s.media.ApproveCode(ctx, code, ports.AuthContext{UserHint: user.ID}); err == nil {
		metrics.PairingApprovalsTotal.WithLabelValues(ports.StrategyUserHint).Inc()
		s.log.Info().Str("user_id", user.ID).Str("strategy", ports.StrategyUserHint).Msg("pairing code approved")
		return &ports.ApprovalResult{Strategy: ports.StrategyUserHint}, nil
	} else {
		lastErr = err
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("privileged approval with user hint failed, falling back")
	}

	// Strategy 4: bare privileged credential, no attribution.
	if s.allowUnattributed {
		lastStrategy = ports.StrategyBarePrivileged
		if err := s.media.ApproveCode(ctx, code, ports.AuthContext{}); err == nil {
			metrics.PairingApprovalsTotal.WithLabelValues(ports.StrategyBarePrivileged).Inc()
			s.log.Warn().Str("user_id", user.ID).Str("strategy", ports.StrategyBarePrivileged).
				Msg("pairing code approved without user attribution")
			return &ports.ApprovalResult{Strategy: ports.StrategyBarePrivileged, AttributionWarning: true}, nil
		} else {
			lastErr = err
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("bare privileged approval failed")
		}
	}

	metrics.PairingApprovalsTotal.WithLabelValues("none").Inc()
	return nil, &domain.PairingApprovalError{LastStrategy: lastStrategy, Err: lastErr}
}

// approveDelegated decrypts the shadow password, authenticates downstream
// as the user, and approves the code with the per-user token. A
// DecryptionError means the stored credential is unusable; it is returned
// so the caller falls through, never aborts.
func (s *PairingService) approveDelegated(ctx context.Context, code string, user *domain.LocalUser) error {
	password, err := s.vault.Decrypt(user.ShadowPassword)
	if err != nil {
		return err
	}

	token, err := s.media.AuthenticateByName(ctx, user.DownstreamUsername, password)
	if err != nil {
		return fmt.Errorf("delegated authentication: %w", err)
	}

	return s.media.ApproveCode(ctx, code, ports.AuthContext{UserToken: token})
}
