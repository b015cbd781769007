// Package router registers the HTTP routes of the booking API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/kids-class-booking/internal/config"
	"github.com/iliyamo/kids-class-booking/internal/handler"
	"github.com/iliyamo/kids-class-booking/internal/middleware"
	"github.com/iliyamo/kids-class-booking/internal/model"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Reservations *handler.ReservationHandler
	Payments     *handler.PaymentHandler
	Webhook      *handler.WebhookHandler
	Classes      *handler.ClassHandler
	Entitlements *handler.EntitlementHandler
}

// Options carries the shared infrastructure used by route middleware. RDB
// may be nil, which disables caching and rate limiting.
type Options struct {
	JWTSecret string
	RDB       *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// RegisterRoutes registers the unauthenticated routes: health, the public
// class calendar and the Tpay notification endpoint.
func RegisterRoutes(e *echo.Echo, h Handlers, opts Options) {
	e.GET("/healthz", handler.Health)

	e.GET("/v1/classes/:id/occurrences", h.Classes.Occurrences,
		middleware.NewRedisCache(opts.Cache, opts.RDB))

	e.POST("/v1/tpay/webhook", h.Webhook.Notify)
	e.GET("/v1/tpay/webhook", h.Webhook.Ping)
}

// RegisterParent registers guardian endpoints under /v1. They require a
// valid token with the PARENT or ADMIN role, and every mutating route is
// rate limited.
func RegisterParent(e *echo.Echo, h Handlers, opts Options) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(opts.JWTSecret),
		middleware.RequireRole(model.RoleParent, model.RoleAdmin),
	)
	limit := middleware.NewTokenBucket(opts.RateLimit, opts.RDB)

	g.POST("/reservations", h.Reservations.Create, limit)
	g.POST("/payment-intents", h.Payments.CreateIntent, limit)
	g.POST("/payments/tpay/create", h.Payments.StartTpay, limit)
	g.GET("/entitlements", h.Entitlements.List)
}
