package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time resolves the configured location name
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Payment and mail settings are optional: an empty
// Stripe secret key means the gateway is unconfigured and the booking flow
// falls back to confirmation without an online payment.
type Config struct {
    Env       string // application environment (e.g. "dev", "prod")
    Port      string // HTTP port to listen on
    DBUser    string // database username
    DBPass    string // database password (optional)
    DBHost    string // database host address
    DBPort    string // database port number
    DBName    string // database name
    JWTSecret string // secret used to sign staff JWTs

    AccessTTLMin int // staff access token time‑to‑live in minutes

    StaffEmail        string // email of the single staff account
    StaffPasswordHash string // bcrypt hash of the staff password

    Currency string         // ISO currency code used for payment intents (e.g. "eur")
    Location *time.Location // timezone in which session dates and times are interpreted

    StripeSecretKey      string // Stripe API secret key (optional)
    StripePublishableKey string // Stripe publishable key, returned to clients (optional)
    StripeWebhookSecret  string // shared secret for verifying Stripe webhook signatures

    SMTPHost string // SMTP server host (optional; empty disables mail)
    SMTPPort string // SMTP server port
    SMTPUser string // SMTP username
    SMTPPass string // SMTP password
    MailFrom string // From address on confirmation mail
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Optional values use
// plain os.Getenv and default where sensible.
func Load() Config {
    return Config{
        Env:       must("APP_ENV"),  // environment (dev/test/prod)
        Port:      must("APP_PORT"), // port to bind the HTTP server
        DBUser:    must("DB_USER"),
        DBPass:    os.Getenv("DB_PASS"), // empty allowed
        DBHost:    must("DB_HOST"),
        DBPort:    must("DB_PORT"),
        DBName:    must("DB_NAME"),
        JWTSecret: must("JWT_SECRET"),

        AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),

        StaffEmail:        must("STAFF_EMAIL"),
        StaffPasswordHash: must("STAFF_PASSWORD_HASH"),

        Currency: envStr("CURRENCY", "eur"),
        Location: loadLocation(),

        StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
        StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
        StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),

        SMTPHost: os.Getenv("SMTP_HOST"),
        SMTPPort: envStr("SMTP_PORT", "587"),
        SMTPUser: os.Getenv("SMTP_USER"),
        SMTPPass: os.Getenv("SMTP_PASS"),
        MailFrom: envStr("MAIL_FROM", "noreply@example.com"),
    }
}

// loadLocation resolves the TIMEZONE variable into a *time.Location.  Session
// dates and start times are wall-clock values in this zone, so comparisons
// against "now" must happen here rather than in UTC.  An unknown zone is
// fatal because it would silently shift every availability cutoff.
func loadLocation() *time.Location {
    name := envStr("TIMEZONE", "UTC")
    loc, err := time.LoadLocation(name)
    if err != nil {
        log.Fatalf("invalid TIMEZONE %q: %v", name, err)
    }
    return loc
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
