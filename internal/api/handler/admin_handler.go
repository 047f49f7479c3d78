package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

// AdminHandler exposes operational endpoints restricted to mapped
// administrators.
type AdminHandler struct {
	lifecycle      ports.LifecycleService
	warnWindowDays int
}

func NewAdminHandler(lifecycle ports.LifecycleService, warnWindowDays int) *AdminHandler {
	return &AdminHandler{lifecycle: lifecycle, warnWindowDays: warnWindowDays}
}

type rolePreviewResponse struct {
	Groups []string      `json:"groups"`
	Role   domain.Role   `json:"role"`
	Policy domain.Policy `json:"policy"`
}

// PreviewRole shows which role and policy a set of group claims maps to,
// for debugging IdP group configuration without a real login.
//
// @Summary      Preview the group-to-role mapping
// @Tags         admin
// @Produce      json
// @Param        groups  query  string  false  "Comma-separated group names"
// @Success      200  {object}  rolePreviewResponse
// @Router       /admin/roles/preview [get]
func (h *AdminHandler) PreviewRole(c echo.Context) error {
	var groups []string
	if raw := c.QueryParam("groups"); raw != "" {
		for _, g := range strings.Split(raw, ",") {
			if g = strings.TrimSpace(g); g != "" {
				groups = append(groups, g)
			}
		}
	}

	role := domain.MapGroupsToRole(groups)
	return c.JSON(http.StatusOK, rolePreviewResponse{
		Groups: groups,
		Role:   role,
		Policy: domain.PolicyForRole(role),
	})
}

// RunSweep triggers one lifecycle sweep immediately, outside the cron
// schedule.
//
// @Summary      Run the account-expiry sweep now
// @Tags         admin
// @Produce      json
// @Success      200  {object}  ports.SweepResult
// @Failure      500  {object}  map[string]string
// @Router       /admin/sweep [post]
func (h *AdminHandler) RunSweep(c echo.Context) error {
	result, err := h.lifecycle.RunSweep(c.Request().Context(), h.warnWindowDays)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
