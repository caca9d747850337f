package server

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/account-dashboard/auth"
	"github.com/jrsteele09/account-dashboard/backend"
	"github.com/jrsteele09/account-dashboard/internal/config"
	"github.com/jrsteele09/account-dashboard/server/authflowrepo"
	"github.com/jrsteele09/account-dashboard/server/loginsession"
	"github.com/jrsteele09/account-dashboard/sessions"
	"github.com/jrsteele09/account-dashboard/token/refresh"
)

// ProviderLogout ends the identity provider's side of a session.
type ProviderLogout interface {
	Logout(ctx context.Context, refreshToken string) error
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	handler http.Handler
	routes  []string
	config  config.Config
	now     func() time.Time

	sessions      *auth.SessionManager
	loginSessions loginsession.Repo
	authFlows     authflowrepo.Repo
	logout        ProviderLogout
	backend       *backend.Client
	provider      *oidcProvider
	providerHTTP  *http.Client

	pages map[string]*template.Template
}

type Option func(*Server)

// WithNowFunc sets the clock used for every session decision (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithLoginSessionRepo replaces the cookie-backed session store.
func WithLoginSessionRepo(repo loginsession.Repo) Option {
	return func(s *Server) {
		s.loginSessions = repo
	}
}

// New wires the dashboard. cfg should already have passed Validate; only an
// unusable session secret stops construction here.
func New(cfg config.Config, options ...Option) (*Server, error) {
	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	codec, err := sessions.NewCodec(cfg.GetSessionSecret(), sessions.WithNowFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("[Server New] session codec: %w", err)
	}

	s.providerHTTP = &http.Client{Timeout: cfg.GetProviderTimeout()}
	refresher := refresh.NewRefresher(cfg, refresh.WithHTTPClient(s.providerHTTP), refresh.WithNowFunc(s.now))
	s.sessions = auth.NewSessionManager(refresher, cfg.GetSessionMaxAge(), auth.WithNowFunc(s.now))
	s.logout = refresher
	s.backend = backend.NewClient(cfg)
	s.provider = newOIDCProvider(cfg, s.providerHTTP, s.now)
	s.authFlows = authflowrepo.NewCookieStore(codec, s.now)
	if s.loginSessions == nil {
		s.loginSessions = loginsession.NewCookieStore(codec, loginsession.WithNowFunc(s.now))
	}

	if s.pages, err = parsePages(); err != nil {
		return nil, fmt.Errorf("[Server New] templates: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	// Applied to every request, matched or not.
	s.handler = ChainHandler(s.mux,
		middleware.RequestID,
		middleware.RealIP,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.SessionGuard,
	)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Printf("[%-19s] %s\n", color+paddedMethod+ResetColor, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
