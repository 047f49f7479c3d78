package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

type stubLifecycleService struct {
	window int
	result *ports.SweepResult
	err    error
}

func (s *stubLifecycleService) RunSweep(_ context.Context, warnWindowDays int) (*ports.SweepResult, error) {
	s.window = warnWindowDays
	return s.result, s.err
}

func TestPreviewRole_AdminGroups(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/roles/preview?groups=Media-Admins,Users", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewAdminHandler(&stubLifecycleService{}, 7)
	if err := h.PreviewRole(c); err != nil {
		t.Fatalf("PreviewRole: %v", err)
	}

	var resp rolePreviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", resp.Role)
	}
	if !resp.Policy.IsAdministrator {
		t.Fatalf("policy preview does not match role")
	}
	if len(resp.Groups) != 2 {
		t.Fatalf("groups not echoed back: %v", resp.Groups)
	}
}

func TestPreviewRole_NoGroups(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin/roles/preview", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewAdminHandler(&stubLifecycleService{}, 7)
	if err := h.PreviewRole(c); err != nil {
		t.Fatalf("PreviewRole: %v", err)
	}

	var resp rolePreviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Role != domain.RoleUser {
		t.Fatalf("empty groups must map to user, got %s", resp.Role)
	}
}

func TestRunSweep_Handler(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/admin/sweep", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	lifecycle := &stubLifecycleService{result: &ports.SweepResult{Examined: 5, Warned: 2, Disabled: 1}}
	h := NewAdminHandler(lifecycle, 14)
	if err := h.RunSweep(c); err != nil {
		t.Fatalf("RunSweep: %v", err)
	}

	if lifecycle.window != 14 {
		t.Fatalf("configured warn window not forwarded, got %d", lifecycle.window)
	}

	var resp ports.SweepResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Examined != 5 || resp.Warned != 2 || resp.Disabled != 1 {
		t.Fatalf("unexpected result: %+v", resp)
	}
}
