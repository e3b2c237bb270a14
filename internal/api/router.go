package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/codepilot/assistant-api/internal/api/handler"
	"github.com/codepilot/assistant-api/internal/api/middleware"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// Deps are the services the HTTP layer is built from.
type Deps struct {
	Sessions  ports.SessionService
	Admins    ports.AdminResolver
	Flow      ports.AuthFlowService
	Callback  ports.CallbackService
	Switch    ports.ProviderSwitch
	Catalog   ports.ProviderCatalog
	Assistant ports.AssistantService
	Activity  ports.ActivityService
	Notifier  ports.Notifier

	Tokens interface {
		handler.TokenIssuer
		middleware.TokenParser
	}
	Health []handler.Dependency

	// SecureCookies marks cookies Secure; set outside local development.
	SecureCookies bool
	// Metrics exposes /metrics and records per-route HTTP metrics.
	Metrics bool
	Swagger bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.ClientID(d.SecureCookies))
	e.Use(middleware.RequestLogger(log))
	if d.Metrics {
		e.Use(echoprometheus.NewMiddleware("assistant"))
		e.GET("/metrics", echoprometheus.NewHandler())
	}
	if d.Swagger {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	requireSession := middleware.Auth(d.Tokens, d.Sessions)
	optionalSession := middleware.OptionalAuth(d.Tokens, d.Sessions)

	cookies := handler.NewSessionCookies(d.Tokens, d.SecureCookies)
	authHandler := handler.NewAuthHandler(d.Flow, d.Callback, d.Sessions, cookies, log)
	sessionHandler := handler.NewSessionHandler(d.Admins, d.Notifier)
	prefsHandler := handler.NewPreferencesHandler(d.Switch, d.Catalog)
	assistantHandler := handler.NewAssistantHandler(d.Assistant)
	activityHandler := handler.NewActivityHandler(d.Activity)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.GET("/flow", authHandler.Flow)
	auth.POST("/flow/events", authHandler.Event)
	auth.POST("/flow/submit", authHandler.Submit)
	auth.POST("/signout", authHandler.SignOut, optionalSession)
	auth.GET("/callback", authHandler.Callback)

	// --- API routes ---
	v1 := e.Group("/v1")
	v1.GET("/session", sessionHandler.Current, optionalSession)
	v1.GET("/toasts", sessionHandler.Toasts)
	v1.GET("/preferences", prefsHandler.Get)
	v1.PUT("/preferences", prefsHandler.Update)
	v1.GET("/providers", prefsHandler.Providers)

	v1.POST("/analyses", assistantHandler.Analyze, optionalSession)
	v1.POST("/solutions", assistantHandler.Solve, optionalSession)
	v1.POST("/chat", assistantHandler.Chat, optionalSession)

	v1.GET("/analyses", activityHandler.History, requireSession)
	v1.GET("/conversations", activityHandler.Conversations, requireSession)
	v1.GET("/conversations/:id/messages", activityHandler.Messages, requireSession)
	v1.GET("/stats", activityHandler.Stats, requireSession)

	admin := v1.Group("/admin", requireSession, middleware.RequireAdmin(d.Admins, log))
	admin.GET("/stats", activityHandler.AllStats)
	admin.GET("/users/:id/history", activityHandler.UserHistory)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Health...)

	e.GET("/health", healthHandler.Liveness)           // liveness
	e.GET("/health/ready", readinessHandler.Readiness) // readiness

	return e
}
