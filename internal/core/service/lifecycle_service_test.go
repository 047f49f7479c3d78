package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedExpiringUser(repo *stubUserRepo, media *fakeMedia, email string, expiresAt time.Time) *domain.LocalUser {
	down := media.addUser(email, domain.Policy{EnableContentDownloading: true})
	user := &domain.LocalUser{
		ID:                 down.ID,
		Email:              email,
		DownstreamUsername: email,
		ExpiresAt:          &expiresAt,
	}
	repo.byEmail[email] = user
	return user
}

func TestRunSweep_WarnsOnceInsideWindow(t *testing.T) {
	repo := newStubUserRepo()
	media := newFakeMedia()
	notifier := &recordNotifier{}
	svc := NewLifecycleService(repo, media, notifier, zerolog.Nop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)
	seedExpiringUser(repo, media, "warn@example.com", now.Add(72*time.Hour))

	result, err := svc.RunSweep(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if result.Warned != 1 || result.Disabled != 0 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if notifier.countOf(ports.NotifyExpiryWarning) != 1 {
		t.Fatalf("expected one expiry warning")
	}
	if got := notifier.calls[0].Params["days_remaining"]; got != "3" {
		t.Fatalf("days_remaining = %s, want 3", got)
	}
	if !repo.byEmail["warn@example.com"].ExpiryWarningSent {
		t.Fatalf("warning flag not persisted")
	}

	// Second sweep: flag set, no re-notification.
	if _, err := svc.RunSweep(context.Background(), 7); err != nil {
		t.Fatalf("second RunSweep: %v", err)
	}
	if notifier.countOf(ports.NotifyExpiryWarning) != 1 {
		t.Fatalf("warning re-sent despite idempotency flag")
	}
}

func TestRunSweep_OutsideWindowNoWarning(t *testing.T) {
	repo := newStubUserRepo()
	media := newFakeMedia()
	notifier := &recordNotifier{}
	svc := NewLifecycleService(repo, media, notifier, zerolog.Nop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)
	seedExpiringUser(repo, media, "later@example.com", now.Add(30*24*time.Hour))

	result, err := svc.RunSweep(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if result.Examined != 1 || result.Warned != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("no notification expected outside the window")
	}
}

func TestRunSweep_DisablesExpiredOnce(t *testing.T) {
	repo := newStubUserRepo()
	media := newFakeMedia()
	notifier := &recordNotifier{}
	svc := NewLifecycleService(repo, media, notifier, zerolog.Nop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)
	user := seedExpiringUser(repo, media, "expired@example.com", now.Add(-time.Hour))

	result, err := svc.RunSweep(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if result.Disabled != 1 {
		t.Fatalf("expected one disabled user, got %+v", result)
	}
	if notifier.countOf(ports.NotifyAccountDisabled) != 1 {
		t.Fatalf("expected one account-disabled notification")
	}

	down := media.users[user.ID]
	if !down.Policy.IsDisabled {
		t.Fatalf("downstream account not disabled")
	}
	if !down.Policy.EnableContentDownloading {
		t.Fatalf("disable must preserve unrelated policy fields")
	}

	// Second sweep: downstream flag already set, nothing happens again.
	result, err = svc.RunSweep(context.Background(), 7)
	if err != nil {
		t.Fatalf("second RunSweep: %v", err)
	}
	if result.Disabled != 0 || result.Failed != 0 {
		t.Fatalf("already-disabled user re-processed: %+v", result)
	}
	if notifier.countOf(ports.NotifyAccountDisabled) != 1 {
		t.Fatalf("disable notification re-sent")
	}
	if len(media.setPolicyCalls) != 1 {
		t.Fatalf("expected exactly one SetPolicy, got %d", len(media.setPolicyCalls))
	}
}

func TestRunSweep_MissingDownstreamSkipsQuietly(t *testing.T) {
	repo := newStubUserRepo()
	media := newFakeMedia()
	notifier := &recordNotifier{}
	svc := NewLifecycleService(repo, media, notifier, zerolog.Nop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)
	expired := now.Add(-time.Hour)
	repo.byEmail["ghost@example.com"] = &domain.LocalUser{
		ID: "no-such-id", Email: "ghost@example.com", ExpiresAt: &expired,
	}

	result, err := svc.RunSweep(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if result.Failed != 0 || result.Disabled != 0 {
		t.Fatalf("missing downstream account must not count as a failure: %+v", result)
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("no notification expected for a vanished account")
	}
}

func TestRunSweep_FailureIsolatedPerUser(t *testing.T) {
	repo := newStubUserRepo()
	media := newFakeMedia()
	notifier := &recordNotifier{err: errors.New("smtp down")}
	svc := NewLifecycleService(repo, media, notifier, zerolog.Nop())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)
	seedExpiringUser(repo, media, "a@example.com", now.Add(48*time.Hour))
	seedExpiringUser(repo, media, "b@example.com", now.Add(-time.Hour))

	result, err := svc.RunSweep(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	// The warning fails on the notifier; the disable proceeds anyway
	// because its notification is best-effort.
	if result.Failed != 1 {
		t.Fatalf("expected one failed user, got %+v", result)
	}
	if result.Disabled != 1 {
		t.Fatalf("expired user must still be disabled, got %+v", result)
	}
	if repo.byEmail["a@example.com"].ExpiryWarningSent {
		t.Fatalf("warning flag must not be set when notification fails")
	}
}
