package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing
    "github.com/redis/go-redis/v9"

    "github.com/pixelden/session-booking/internal/config"
    "github.com/pixelden/session-booking/internal/handler"    // import the handlers that implement business logic
    "github.com/pixelden/session-booking/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated customer-facing endpoints:
// session browsing, the booking flow and the payment webhooks.  A
// token-bucket rate limiter protects each group when Redis is available;
// the webhook routes draw from their own bucket so a burst of customer
// traffic can never make the API stop acknowledging provider events.
func RegisterPublic(e *echo.Echo, s *handler.SessionHandler, b *handler.BookingHandler, w *handler.WebhookHandler, rlCfg, whCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.NewTokenBucket(rlCfg, rdb))

	// Session catalogue and live availability.
	g.GET("/sessions", s.List)
	g.GET("/sessions/:id/availability", s.Availability)

	// Booking lifecycle, addressed by opaque access token.
	g.POST("/sessions/:id/bookings", b.Create)
	g.GET("/bookings/:token", b.Get)
	g.PATCH("/bookings/:token", b.UpdateParticipants)
	g.POST("/bookings/:token/cash", b.Cash)
	g.POST("/bookings/:token/payment-intent", b.PaymentIntent)

	// Payment provider callbacks.
	wg := e.Group("/v1/webhooks")
	wg.Use(middleware.NewTokenBucket(whCfg, rdb))
	wg.POST("/stripe", w.Stripe)
	wg.POST("/paypal", w.PayPal)
}

// RegisterAuth registers the staff login endpoint.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
}

// RegisterStaff registers session management endpoints behind JWT
// authentication and the STAFF role.
func RegisterStaff(e *echo.Echo, s *handler.SessionHandler, jwtSecret string) {
	g := e.Group("/v1/staff")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("STAFF"))

	g.POST("/sessions", s.Create)
	g.POST("/sessions/bulk", s.CreateBulk)
	g.DELETE("/sessions/:id", s.Deactivate)
	g.GET("/sessions/:id/bookings", s.SessionBookings)
}
