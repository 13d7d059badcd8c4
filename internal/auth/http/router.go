// Package http wires the token endpoints, health probes, and swagger UI
// onto a ServeMux with per-route middleware chains.
package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/northbeam/tokend/internal/auth/identity"
	"github.com/northbeam/tokend/internal/auth/service"
	"github.com/northbeam/tokend/pkg/httpx"
	"github.com/northbeam/tokend/pkg/jwtx"
	"github.com/northbeam/tokend/pkg/slogx"

	_ "github.com/northbeam/tokend/api/tokend" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// DefaultRoutePrefix is where the token endpoints mount unless configured
// otherwise.
const DefaultRoutePrefix = "/token"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	prefix       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store        identity.Store
	TokenService *service.TokenService
}

func NewRouter(
	codec *jwtx.Codec,
	prefix, buildVersion string,
	store identity.Store,
	logger *slog.Logger,
) *Router {
	if prefix == "" {
		prefix = DefaultRoutePrefix
	}
	prefix = strings.TrimSuffix(prefix, "/")

	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		prefix:       prefix,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        store,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Token Service API
//	@version		0.1.0
//	@description	Credential-based token issuance and session lifecycle service.
//	@description	Issues short-lived HS512 access tokens alongside rotating refresh tokens,
//	@description	with an optional two-factor challenge step between password and session.
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerTokens() {
	// Credential endpoints carry strict per-IP limits to slow brute force.
	loginHandler := &LoginHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST "+r.prefix+"/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	mfaHandler := &MFAHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST "+r.prefix+"/mfa",
		httpx.Chain(mfaHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	refreshHandler := &RefreshHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST "+r.prefix+"/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Logout needs a valid access token; limited per user.
	logoutHandler := &LogoutHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST "+r.prefix+"/logout",
		httpx.Chain(logoutHandler,
			httpx.AuthnMiddleware(r.codec),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
