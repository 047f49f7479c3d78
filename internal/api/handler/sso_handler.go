package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

const (
	stateCookieName = "sso_state"
	stateCookieTTL  = 10 * time.Minute
)

// SSOProvider is the slice of the OIDC provider the SSO flow needs.
type SSOProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error)
}

type SSOHandler struct {
	provider SSOProvider
	identity ports.IdentityService
	signer   *SessionSigner
	secure   bool
}

func NewSSOHandler(provider SSOProvider, identity ports.IdentityService, signer *SessionSigner, secureCookies bool) *SSOHandler {
	return &SSOHandler{
		provider: provider,
		identity: identity,
		signer:   signer,
		secure:   secureCookies,
	}
}

type sessionResponse struct {
	Token string            `json:"token"`
	User  *domain.LocalUser `json:"user"`
}

// Login starts the IdP round trip.
//
// @Summary      Begin the SSO login flow
// @Tags         sso
// @Success      302
// @Router       /sso/login [get]
func (h *SSOHandler) Login(c echo.Context) error {
	state := uuid.NewString()

	c.SetCookie(&http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// Callback completes the IdP round trip: verify state, redeem the code,
// reconcile the identity, and hand out a session token.
//
// @Summary      Complete the SSO login flow
// @Tags         sso
// @Produce      json
// @Param        code   query  string  true  "Authorization code"
// @Param        state  query  string  true  "Anti-forgery state"
// @Success      200  {object}  sessionResponse
// @Failure      400  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /sso/callback [get]
func (h *SSOHandler) Callback(c echo.Context) error {
	cookie, err := c.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing login state, restart the login flow")
	}
	if c.QueryParam("state") != cookie.Value {
		return echo.NewHTTPError(http.StatusBadRequest, "state mismatch, restart the login flow")
	}

	// One-shot state: expire the cookie whatever happens next.
	c.SetCookie(&http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing authorization code")
	}

	identity, err := h.provider.Exchange(c.Request().Context(), code)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "identity provider exchange failed").SetInternal(err)
	}

	user, err := h.identity.ReconcileLogin(c.Request().Context(), identity)
	if err != nil {
		return err
	}

	token, err := h.signer.Issue(user)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, sessionResponse{Token: token, User: user})
}
