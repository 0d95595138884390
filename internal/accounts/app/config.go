package app

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/pkg/httpx"
	"github.com/finlit/platform/pkg/jwtx"
)

// ErrServerMisconfigured is returned by LoadConfig when the environment
// cannot produce a working service.
var ErrServerMisconfigured = errors.New("server misconfigured")

// OTP challenge backends.
const (
	OTPStoreSQLite = "sqlite"
	OTPStoreRedis  = "redis"
)

type Config struct {
	SessionSecret   []byte                  // Required: HS256 secret, at least 32 bytes
	SessionIssuer   string                  // Optional: issuer claim (default: finlit-accounts)
	SessionTTL      time.Duration           // Optional: session lifetime (default: 12h)
	FingerprintMode service.FingerprintMode // Optional: advisory or strict (default: advisory)
	SecureCookies   bool                    // Optional: Secure flag on cookies (default: true outside dev)
	TrustedProxies  []netip.Prefix          // Optional: peers allowed to set X-Forwarded-For (default: none)

	OTPKey         []byte        // Optional: code digest key (default: derived from the session secret)
	OTPStore       string        // Optional: sqlite or redis (default: sqlite)
	RedisURL       string        // Optional: redis:// URL when OTPStore is redis
	OTPTTL         time.Duration // Optional: code lifetime (default: 10m)
	OTPCooldown    time.Duration // Optional: resend cooldown (default: 30s)
	OTPMaxAttempts int           // Optional: attempts per code (default: 5)

	BrevoAPIKey      string // Required outside dev: email delivery
	BrevoFromEmail   string
	BrevoFromName    string
	TwilioAccountSID string // Required outside dev: SMS delivery
	TwilioAuthToken  string
	TwilioFromNumber string

	AdminSeed service.AdminSeed // Optional: admin created when none exists

	DatabaseFile         string        // Optional: path to SQLite database file (default: ./accounts.db)
	PepperFile           string        // Optional: path to file containing pepper for password hashing (default: ./pepper)
	Env                  string        // Environment (dev, staging, prod) (default: prod)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

// IsDev reports whether the service runs in the dev environment, where codes
// are logged instead of delivered.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

func LoadConfig() (Config, error) {
	cfg := Config{
		SessionSecret:   []byte(os.Getenv("SESSION_SECRET")),
		SessionIssuer:   getEnvOrDefault("SESSION_ISSUER", "finlit-accounts"),
		SessionTTL:      getEnvDurationOrDefault("SESSION_TTL", jwtx.DefaultSessionTTL),
		FingerprintMode: service.FingerprintMode(getEnvOrDefault("SESSION_FINGERPRINT_MODE", string(service.FingerprintAdvisory))),

		OTPKey:         []byte(os.Getenv("OTP_KEY")),
		OTPStore:       getEnvOrDefault("OTP_STORE", OTPStoreSQLite),
		RedisURL:       getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		OTPTTL:         getEnvDurationOrDefault("OTP_TTL", service.DefaultOTPTTL),
		OTPCooldown:    getEnvDurationOrDefault("OTP_RESEND_COOLDOWN", service.DefaultResendCooldown),
		OTPMaxAttempts: getEnvIntOrDefault("OTP_MAX_ATTEMPTS", service.DefaultMaxAttempts),

		BrevoAPIKey:      os.Getenv("BREVO_API_KEY"),
		BrevoFromEmail:   os.Getenv("BREVO_FROM_EMAIL"),
		BrevoFromName:    getEnvOrDefault("BREVO_FROM_NAME", "FinLit"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),

		AdminSeed: service.AdminSeed{
			Username: os.Getenv("ADMIN_USERNAME"),
			Email:    os.Getenv("ADMIN_EMAIL"),
			FullName: os.Getenv("ADMIN_FULL_NAME"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},

		DatabaseFile:         getEnvOrDefault("DATABASE_FILE", "accounts.db"),
		PepperFile:           getEnvOrDefault("PEPPER_FILE", "pepper"),
		Env:                  getEnvOrDefault("ENV", "prod"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
	cfg.SecureCookies = getEnvBoolOrDefault("SECURE_COOKIES", !cfg.IsDev())

	proxies, err := httpx.ParseTrustedProxies(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: TRUSTED_PROXIES: %v", ErrServerMisconfigured, err)
	}
	cfg.TrustedProxies = proxies

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrServerMisconfigured}, args...)...))
	}

	if len(c.SessionSecret) < jwtx.MinSecretLength {
		fail("SESSION_SECRET must be at least %d bytes", jwtx.MinSecretLength)
	}
	switch c.FingerprintMode {
	case service.FingerprintAdvisory, service.FingerprintStrict:
	default:
		fail("SESSION_FINGERPRINT_MODE must be advisory or strict, got %q", c.FingerprintMode)
	}
	switch c.OTPStore {
	case OTPStoreSQLite:
	case OTPStoreRedis:
		if c.RedisURL == "" {
			fail("REDIS_URL is required when OTP_STORE is redis")
		}
	default:
		fail("OTP_STORE must be sqlite or redis, got %q", c.OTPStore)
	}
	if c.OTPMaxAttempts < 1 {
		fail("OTP_MAX_ATTEMPTS must be positive")
	}

	if !c.IsDev() {
		if c.BrevoAPIKey == "" || c.BrevoFromEmail == "" {
			fail("BREVO_API_KEY and BREVO_FROM_EMAIL are required outside dev")
		}
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFromNumber == "" {
			fail("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER are required outside dev")
		}
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
