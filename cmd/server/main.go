package main // Entry point package

import (
    "log" // Logging library

    "github.com/joho/godotenv"    // Loads variables from a local .env file
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/pixelden/session-booking/internal/config"
    "github.com/pixelden/session-booking/internal/database"
    "github.com/pixelden/session-booking/internal/handler"
    "github.com/pixelden/session-booking/internal/mailer"
    "github.com/pixelden/session-booking/internal/payment"
    "github.com/pixelden/session-booking/internal/queue"
    "github.com/pixelden/session-booking/internal/repository"
    "github.com/pixelden/session-booking/internal/router"
    queue_publisher "github.com/pixelden/session-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: without it rate limiting and availability caching
	// are disabled and everything else keeps working.
	rdb := config.NewRedisClient()

	sessions := repository.NewSessionRepo(db, cfg.Location)
	bookings := repository.NewBookingRepo(db, cfg.Location)

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.Currency)
	verifier := payment.NewStripeWebhookVerifier(cfg.StripeWebhookSecret)
	publisher := queue_publisher.Publisher{}

	m := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	go func() {
		if err := queue.StartBookingConsumer(m); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	sessionH := handler.NewSessionHandler(sessions, bookings, rdb, config.AvailabilityCacheTTL(), cfg.Location)
	bookingH := handler.NewBookingHandler(sessions, bookings, gateway, publisher, rdb, cfg.Location, cfg.StripePublishableKey)
	webhookH := handler.NewWebhookHandler(sessions, bookings, verifier, publisher, rdb)
	authH := handler.NewAuthHandler(cfg)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterPublic(e, sessionH, bookingH, webhookH, config.LoadRateLimitConfig(), config.LoadWebhookRateLimitConfig(), rdb)
	router.RegisterAuth(e, authH)
	router.RegisterStaff(e, sessionH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
