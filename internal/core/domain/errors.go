package domain

import (
	"errors"
	"fmt"
)

var ErrUserNotFound = errors.New("user not found")
var ErrDownstreamUserNotFound = errors.New("downstream user not found")
var ErrUsernameTaken = errors.New("username already exists downstream")
var ErrForbidden = errors.New("access forbidden")

// ErrLoginInProgress means another reconciliation currently holds the
// per-email login lock. Retryable: the client repeats the login once the
// concurrent attempt finishes.
var ErrLoginInProgress = errors.New("login already in progress")

// ProvisioningError means a downstream account could neither be created
// nor adopted for a first-time login. Fatal for the login attempt: no
// LocalUser is persisted.
type ProvisioningError struct {
	Username string
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %q failed: %v", e.Username, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// PolicyApplicationError means the account exists and is usable but the
// permission push failed. Non-fatal: the login proceeds with possibly
// stale permissions; the policy is re-applied on the next group drift.
type PolicyApplicationError struct {
	UserID string
	Err    error
}

func (e *PolicyApplicationError) Error() string {
	return fmt.Sprintf("applying policy to %s failed: %v", e.UserID, e.Err)
}

func (e *PolicyApplicationError) Unwrap() error { return e.Err }

// DecryptionError means a stored shadow-password ciphertext could not be
// authenticated (tampered, or encrypted under a different key). Callers
// must treat the credential as unusable and fall back, never abort.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// PairingApprovalError means every approval strategy was exhausted.
// LastStrategy and Err describe the final attempt.
type PairingApprovalError struct {
	LastStrategy string
	Err          error
}

func (e *PairingApprovalError) Error() string {
	return fmt.Sprintf("pairing approval failed (last strategy %s): %v", e.LastStrategy, e.Err)
}

func (e *PairingApprovalError) Unwrap() error { return e.Err }

// DownstreamUnavailable is a transient transport failure talking to the
// media service. It aborts the current reconciliation attempt; the
// lifecycle sweep logs it and moves on to the next user.
type DownstreamUnavailable struct {
	Op  string
	Err error
}

func (e *DownstreamUnavailable) Error() string {
	return fmt.Sprintf("downstream unavailable during %s: %v", e.Op, e.Err)
}

func (e *DownstreamUnavailable) Unwrap() error { return e.Err }
