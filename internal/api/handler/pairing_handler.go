package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

type PairingHandler struct {
	pairing ports.PairingService
	users   ports.UserRepository
}

func NewPairingHandler(pairing ports.PairingService, users ports.UserRepository) *PairingHandler {
	return &PairingHandler{pairing: pairing, users: users}
}

type approveRequest struct {
	Code string `json:"code" validate:"required,min=4"`
}

// Approve authorizes a device pairing code on behalf of the session user.
//
// @Summary      Approve a pairing code
// @Tags         pairing
// @Accept       json
// @Produce      json
// @Param        body  body      approveRequest  true  "Pairing code"
// @Success      200   {object}  ports.ApprovalResult
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /pairing/approve [post]
func (h *PairingHandler) Approve(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.users.FindByID(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	result, err := h.pairing.ApproveCode(c.Request().Context(), req.Code, user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
