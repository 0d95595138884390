package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/finlit/platform/internal/accounts/service"
	"github.com/finlit/platform/pkg/httpx"
	"github.com/finlit/platform/pkg/slogx"

	_ "github.com/finlit/platform/api/accounts" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       httpx.RateLimitProfiles

	// SecureCookies sets the Secure flag on session cookies.
	SecureCookies bool

	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means the direct peer is the client.
	TrustedProxies []netip.Prefix

	// Checks are pinged by /readyz, keyed by the name reported.
	Checks map[string]Pinger

	SignupService    *service.SignupService
	LoginService     *service.LoginService
	SessionService   *service.SessionService
	DirectoryService *service.DirectoryService
	PasswordService  *service.PasswordService
}

func NewRouter(buildVersion string, limits httpx.RateLimitProfiles, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		limits:       limits,
		Checks:       map[string]Pinger{},
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.middlewares = append(r.middlewares, httpx.ClientIP(r.TrustedProxies))

	r.registerSignup()
	r.registerLogin()
	r.registerAdmin()
	r.registerPassword()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						FinLit Accounts API
//	@version					0.1.0
//	@description				Signup, login and session service for the FinLit platform.
//	@description
//	@description				Signup moves through email verification, mobile and password, mobile verification and admin approval.
//	@description				Every signup call returns the next step the client should show.
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}". Browsers use the userToken or adminToken cookie instead.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// guard admits requests carrying a valid session for role, looked up in the
// role's cookie, then the generic cookie, then the Authorization header.
func (r *Router) guard(role domain.Role) httpx.Middleware {
	return httpx.Authenticate(sessionVerifier{r.SessionService}, string(role),
		httpx.CookieSource(domain.CookieName(role)),
		httpx.CookieSource(domain.CookieGeneric),
		httpx.BearerSource(),
	)
}

func (r *Router) registerSignup() {
	h := &SignupHandler{SignupService: r.SignupService}

	// Code submission and sending endpoints are limited per IP and email to
	// slow down guessing and mail bombing.
	strict := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next, httpx.RateLimitByIPAndJSONField(r.limits.Strict, "email"))
	}

	r.Mux.Handle("POST /v1/signup/initiate", strict(h.HandleInitiate))
	r.Mux.Handle("POST /v1/signup/verify-email", strict(h.HandleVerifyEmail))
	r.Mux.Handle("POST /v1/signup/resend-email-otp", strict(h.HandleResendEmailOTP))
	r.Mux.Handle("POST /v1/signup/mobile-password", strict(h.HandleMobilePassword))
	r.Mux.Handle("POST /v1/signup/verify-mobile", strict(h.HandleVerifyMobile))
	r.Mux.Handle("POST /v1/signup/resend-mobile-otp", strict(h.HandleResendMobileOTP))

	r.Mux.Handle("GET /v1/signup/status",
		httpx.Chain(http.HandlerFunc(h.HandleStatus),
			httpx.RateLimitByIP(r.limits.Lenient),
		),
	)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{
		LoginService:     r.LoginService,
		DirectoryService: r.DirectoryService,
		SecureCookies:    r.SecureCookies,
	}

	r.Mux.Handle("POST /v1/login/initiate",
		httpx.Chain(http.HandlerFunc(h.HandleLoginInitiate),
			httpx.RateLimitByIPAndJSONField(r.limits.Strict, "email"),
		),
	)
	r.Mux.Handle("POST /v1/login/verify",
		httpx.Chain(http.HandlerFunc(h.HandleLoginVerify),
			httpx.RateLimitByIPAndJSONField(r.limits.Strict, "email"),
		),
	)
	r.Mux.Handle("POST /v1/admin/login",
		httpx.Chain(http.HandlerFunc(h.HandleAdminLogin),
			httpx.RateLimitByIPAndJSONField(r.limits.Strict, "identifier"),
		),
	)
	r.Mux.Handle("POST /v1/admin/verify-otp",
		httpx.Chain(http.HandlerFunc(h.HandleAdminVerify),
			httpx.RateLimitByIPAndJSONField(r.limits.Strict, "identifier"),
		),
	)

	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)

	r.Mux.Handle("GET /v1/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			r.guard(domain.RoleUser),
			httpx.RateLimitBySubject(r.limits.Lenient),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{DirectoryService: r.DirectoryService}

	secured := func(next http.HandlerFunc) http.Handler {
		return httpx.Chain(next,
			r.guard(domain.RoleAdmin),
			httpx.RateLimitBySubject(r.limits.Moderate),
		)
	}

	r.Mux.Handle("GET /v1/admin/users", secured(h.HandleList))
	r.Mux.Handle("POST /v1/admin/users/{id}/approve", secured(h.HandleApprove))
	r.Mux.Handle("POST /v1/admin/users/{id}/reject", secured(h.HandleReject))
	r.Mux.Handle("POST /v1/admin/users/{id}/block", secured(h.HandleBlock))
	r.Mux.Handle("DELETE /v1/admin/users/{id}", secured(h.HandleDelete))
}

func (r *Router) registerPassword() {
	h := &PasswordHandler{PasswordService: r.PasswordService}

	r.Mux.Handle("POST /v1/password/forgot",
		httpx.Chain(http.HandlerFunc(h.HandleForgot),
			httpx.RateLimitByIPAndJSONField(r.limits.Strict, "email"),
		),
	)
	r.Mux.Handle("POST /v1/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleReset),
			httpx.RateLimitByIPAndJSONField(r.limits.Strict, "email"),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.Checks),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
}
