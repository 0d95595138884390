package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finlit/platform/internal/accounts/delivery"
	"github.com/finlit/platform/internal/accounts/domain"
	httpapi "github.com/finlit/platform/internal/accounts/http"
	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/internal/accounts/store"
	redisstore "github.com/finlit/platform/internal/accounts/store/drivers/redis"
	"github.com/finlit/platform/internal/accounts/store/drivers/sqlite"
	"github.com/finlit/platform/pkg/cryptox"
	"github.com/finlit/platform/pkg/httpx"
	"github.com/finlit/platform/pkg/jwtx"
	"github.com/finlit/platform/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion is overridden at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the accounts service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         *sqlite.Store
	redis      *redis.Client // nil unless OTP_STORE=redis
	challenges store.OTPChallenges
	pingers    map[string]httpapi.Pinger
	hasher     cryptox.PasswordHasher
	dispatcher *delivery.Dispatcher

	// Services
	otpService          *service.OTPService
	sessionService      *service.SessionService
	signupService       *service.SignupService
	loginService        *service.LoginService
	directoryService    *service.DirectoryService
	passwordService     *service.PasswordService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized and the seed
// admin in place.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg:     cfg,
		pingers: map[string]httpapi.Pinger{},
		logger: slogx.New(slogx.Config{
			Service: "accounts-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.PasswordHasher{Pepper: pepper}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initChallenges(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initDelivery()

	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}
	if err := app.bootstrap(); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("accounts service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"otp_store", app.cfg.OTPStore,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down accounts service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("accounts service stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// initDatabase opens the identity database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initChallenges selects where OTP challenges live.
func (app *Application) initChallenges() error {
	if app.cfg.OTPStore != OTPStoreRedis {
		app.challenges = app.db.OTPChallenges()
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("%w: REDIS_URL: %w", ErrServerMisconfigured, err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	rc := redisstore.NewChallenges(client)
	app.redis = client
	app.challenges = rc
	app.pingers["otp_store"] = rc
	app.logger.Info("otp challenges stored in redis", "addr", opts.Addr)
	return nil
}

// initDelivery wires the code senders. In dev, codes are logged.
func (app *Application) initDelivery() {
	var (
		email delivery.EmailSender
		sms   delivery.SMSSender
	)
	if app.cfg.IsDev() {
		logSender := delivery.LogSender{Logger: app.logger}
		email, sms = logSender, logSender
		app.logger.Warn("dev environment: codes are logged, not delivered")
	} else {
		email = delivery.NewBrevoClient(app.cfg.BrevoAPIKey, app.cfg.BrevoFromEmail, app.cfg.BrevoFromName)
		sms = delivery.NewTwilioClient(app.cfg.TwilioAccountSID, app.cfg.TwilioAuthToken, app.cfg.TwilioFromNumber)
	}

	app.dispatcher = delivery.NewDispatcher(email, sms, delivery.DefaultBreakerConfig(), app.logger)
}

// initServices initializes all business logic services.
func (app *Application) initServices() error {
	signer, err := jwtx.NewSignerHS256(app.cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerMisconfigured, err)
	}

	otpKey := app.cfg.OTPKey
	if len(otpKey) == 0 {
		otpKey = []byte(cryptox.KeyedDigest(app.cfg.SessionSecret, "otp-code-digest"))
	}

	app.otpService = &service.OTPService{
		Challenges:  app.challenges,
		Sender:      app.dispatcher,
		Key:         otpKey,
		TTL:         app.cfg.OTPTTL,
		Cooldown:    app.cfg.OTPCooldown,
		MaxAttempts: app.cfg.OTPMaxAttempts,
	}
	app.sessionService = &service.SessionService{
		Signer:         signer,
		Verifier:       jwtx.NewVerifierHS256(app.cfg.SessionSecret, app.cfg.SessionIssuer, 0),
		Issuer:         app.cfg.SessionIssuer,
		TTL:            app.cfg.SessionTTL,
		FingerprintKey: app.cfg.SessionSecret,
		Fingerprint:    app.cfg.FingerprintMode,
	}

	app.signupService = &service.SignupService{Store: app.db, OTP: app.otpService, Hasher: app.hasher}
	app.loginService = &service.LoginService{
		Store:    app.db,
		OTP:      app.otpService,
		Sessions: app.sessionService,
		Hasher:   app.hasher,
	}
	app.directoryService = &service.DirectoryService{Store: app.db, Challenges: app.challenges}
	app.passwordService = &service.PasswordService{Store: app.db, OTP: app.otpService, Hasher: app.hasher}
	app.bootstrapService = &service.BootstrapService{Store: app.db, Hasher: app.hasher}

	app.housekeepingService = service.NewHousekeepingService(
		app.challenges,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// bootstrap seeds the configured admin when no admin exists.
func (app *Application) bootstrap() error {
	ctx := slogx.WithContext(context.Background(), app.logger)

	created, err := app.bootstrapService.EnsureAdmin(ctx, app.cfg.AdminSeed)
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if created {
		app.logger.Info("seed admin created", "username", app.cfg.AdminSeed.Username)
	}

	n, err := app.db.Identities().CountByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if n == 0 {
		app.logger.Warn("no admin account exists; set ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD")
	}
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, httpx.RateLimitProfilesFromEnv(), app.logger)
	router.SecureCookies = app.cfg.SecureCookies
	router.TrustedProxies = app.cfg.TrustedProxies

	router.Checks["database"] = app.db
	for name, p := range app.pingers {
		router.Checks[name] = p
	}

	router.SignupService = app.signupService
	router.LoginService = app.loginService
	router.SessionService = app.sessionService
	router.DirectoryService = app.directoryService
	router.PasswordService = app.passwordService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
