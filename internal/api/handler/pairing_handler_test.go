package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

type stubPairingService struct {
	code   string
	user   *domain.LocalUser
	result *ports.ApprovalResult
	err    error
}

func (s *stubPairingService) ApproveCode(_ context.Context, code string, user *domain.LocalUser) (*ports.ApprovalResult, error) {
	s.code = code
	s.user = user
	return s.result, s.err
}

type stubUserFinder struct {
	user *domain.LocalUser
	err  error
}

func (s *stubUserFinder) FindByEmail(context.Context, string) (*domain.LocalUser, error) {
	return nil, domain.ErrUserNotFound
}

func (s *stubUserFinder) FindByID(_ context.Context, id string) (*domain.LocalUser, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user != nil && s.user.ID == id {
		return s.user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *stubUserFinder) Upsert(context.Context, *domain.LocalUser) error { return nil }

func (s *stubUserFinder) ListWithExpiry(context.Context) ([]*domain.LocalUser, error) {
	return nil, nil
}

func newPairingContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(http.MethodPost, "/pairing/approve", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestPairingApprove_Success(t *testing.T) {
	user := &domain.LocalUser{ID: "u1", Email: "alice@example.com"}
	pairing := &stubPairingService{result: &ports.ApprovalResult{Strategy: ports.StrategyDelegated}}
	h := NewPairingHandler(pairing, &stubUserFinder{user: user})

	c, rec := newPairingContext(t, `{"code":"123456"}`)
	c.Set("user_id", "u1")
	c.Set("role", "user")

	if err := h.Approve(c); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if pairing.code != "123456" || pairing.user.ID != "u1" {
		t.Fatalf("service called with wrong arguments: code=%s user=%+v", pairing.code, pairing.user)
	}

	var resp ports.ApprovalResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Strategy != ports.StrategyDelegated {
		t.Fatalf("unexpected strategy %s", resp.Strategy)
	}
}

func TestPairingApprove_MissingClaims(t *testing.T) {
	h := NewPairingHandler(&stubPairingService{}, &stubUserFinder{})
	c, _ := newPairingContext(t, `{"code":"123456"}`)

	err := h.Approve(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestPairingApprove_EmptyCode(t *testing.T) {
	h := NewPairingHandler(&stubPairingService{}, &stubUserFinder{user: &domain.LocalUser{ID: "u1"}})
	c, _ := newPairingContext(t, `{"code":""}`)
	c.Set("user_id", "u1")

	err := h.Approve(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestPairingApprove_ServiceErrorPropagates(t *testing.T) {
	svcErr := &domain.PairingApprovalError{LastStrategy: ports.StrategyBarePrivileged}
	h := NewPairingHandler(&stubPairingService{err: svcErr}, &stubUserFinder{user: &domain.LocalUser{ID: "u1"}})
	c, _ := newPairingContext(t, `{"code":"123456"}`)
	c.Set("user_id", "u1")

	err := h.Approve(c)
	var pe *domain.PairingApprovalError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PairingApprovalError to propagate, got %v", err)
	}
}
