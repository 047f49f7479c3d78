package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lolerskatez/jellyconnect/internal/api/handler"
	"github.com/lolerskatez/jellyconnect/internal/api/middleware"
	"github.com/lolerskatez/jellyconnect/internal/core/domain"
	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

// Deps carries everything the router wires into handlers. Services are
// constructed in main so the router stays a pure assembly step.
type Deps struct {
	Identity  ports.IdentityService
	Pairing   ports.PairingService
	Lifecycle ports.LifecycleService
	Users     ports.UserRepository
	Media     ports.MediaClient
	SSO       handler.SSOProvider

	Mongo *mongo.Database
	Redis *redis.Client

	JWTSecret      string
	SessionTTL     time.Duration
	WarnWindowDays int
	SecureCookies  bool
	Log            zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("jellyconnect"))

	auth := middleware.Auth(deps.JWTSecret)
	adminOnly := middleware.RBAC(string(domain.RoleAdmin))

	// --- SSO flow (public) ---
	signer := handler.NewSessionSigner(deps.JWTSecret, deps.SessionTTL)
	ssoHandler := handler.NewSSOHandler(deps.SSO, deps.Identity, signer, deps.SecureCookies)
	e.GET("/sso/login", ssoHandler.Login)
	e.GET("/sso/callback", ssoHandler.Callback)

	// --- Pairing (session required) ---
	pairingHandler := handler.NewPairingHandler(deps.Pairing, deps.Users)
	e.POST("/pairing/approve", pairingHandler.Approve, auth)

	// --- Admin operations ---
	adminHandler := handler.NewAdminHandler(deps.Lifecycle, deps.WarnWindowDays)
	admin := e.Group("/admin", auth, adminOnly)
	admin.GET("/roles/preview", adminHandler.PreviewRole)
	admin.POST("/sweep", adminHandler.RunSweep)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis, deps.Media)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
