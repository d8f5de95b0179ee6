// Package web serves showbot's pages, the OAuth handshake with Cohuman and
// the inbound-mail webhook.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/showbot/internal/cohuman"
	"github.com/nhle/showbot/internal/credential"
	"github.com/nhle/showbot/internal/intake"
	"github.com/nhle/showbot/internal/model"
	"github.com/nhle/showbot/internal/promo"
	"github.com/nhle/showbot/internal/store"
	"github.com/nhle/showbot/internal/sync"
)

// Promoter runs the promo workflows.
type Promoter interface {
	IssuePromos(ctx context.Context, showID cohuman.ID, prefix string) ([]promo.Issued, error)
	AddFan(ctx context.Context, address string) (string, error)
	Dashboard(ctx context.Context) ([]cohuman.Project, error)
}

// Intaker handles webhook-delivered messages.
type Intaker interface {
	HandlePlain(ctx context.Context, sender, subject, plain string) (*intake.Result, error)
}

// Scanner is the mailbox poller as seen from HTTP.
type Scanner interface {
	Trigger()
	Status() sync.SyncStatus
}

// Authorizer performs the OAuth 1.0a token exchanges.
type Authorizer interface {
	RequestToken(callbackURL string) (token, secret, authorizeURL string, err error)
	AccessToken(requestToken, requestSecret, verifier string) (token, secret string, err error)
}

// Session is the swappable Cohuman connection.
type Session interface {
	Authorized() bool
	SetAccessToken(token, secret string)
	Logout(ctx context.Context) error
}

// Deps are the collaborators of a Server.
type Deps struct {
	Config     *model.AppConfig
	Promoter   Promoter
	Intaker    Intaker
	Scanner    Scanner
	Authorizer Authorizer
	Session    Session
	Store      store.Store
	Vault      credential.Vault
	Logger     *log.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	Deps
	now func() time.Time
}

// NewServer creates a Server. Scanner may be nil when no poller runs.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	deps.Logger = deps.Logger.WithPrefix("web")
	return &Server{Deps: deps, now: time.Now}
}

// Routes returns the application handler with middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleStart)
	mux.HandleFunc("GET /show", s.handleShow)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("POST /fan", s.handleFan)
	mux.HandleFunc("GET /in", s.handleIn)
	mux.HandleFunc("POST /in", s.handleIn)
	mux.HandleFunc("POST /show/{id}/promo", s.handlePromoForm)
	mux.HandleFunc("POST /show/{id}/promo/{prefix}", s.handlePromo)

	mux.HandleFunc("GET /authorize", s.handleAuthorize)
	mux.HandleFunc("GET /authorized", s.handleAuthorized)
	mux.HandleFunc("GET /logout", s.handleLogout)

	mux.HandleFunc("POST /scan", s.handleScan)
	mux.HandleFunc("GET /status", s.handleStatus)

	return ChainMiddleware(mux,
		NewLoggerMiddleware(s.Logger),
		NewRecoverMiddleware(s.Logger),
	)
}

// HTTPServer manages the HTTP server lifecycle.
type HTTPServer struct {
	server *http.Server
	logger *log.Logger
}

// NewHTTPServer creates a new HTTP server with the given handler and address.
func NewHTTPServer(handler http.Handler, addr string, logger *log.Logger) *HTTPServer {
	if logger == nil {
		logger = log.Default()
	}
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks serving requests until Stop is called.
func (h *HTTPServer) Start() error {
	h.logger.Info("HTTP server starting", "addr", h.server.Addr)

	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("HTTP server stopping", "addr", h.server.Addr)

	if err := h.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
