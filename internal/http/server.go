package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"time"

	"spendboard/internal/aggregate"
	"spendboard/internal/chart"
	"spendboard/internal/log"
	"spendboard/internal/middleware/ratelimit"
	"spendboard/internal/middleware/security"
	"spendboard/internal/middleware/trace"
	"spendboard/internal/services"
	"spendboard/internal/session"
	appweb "spendboard/web"
)

// SnapshotSource serves the current aggregate snapshot and refreshes it on demand.
type SnapshotSource interface {
	Current() *services.Snapshot
	Refresh(ctx context.Context) (*services.Snapshot, error)
}

// Authenticator verifies and registers users.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
	Register(ctx context.Context, username, password string) error
}

// ChartRenderer turns a view into an HTML fragment.
type ChartRenderer interface {
	Render(version uint64, spec chart.Spec, t aggregate.Table) (template.HTML, error)
}

type Deps struct {
	Snapshots      SnapshotSource
	Auth           Authenticator
	Sessions       *session.Manager
	Charts         ChartRenderer
	Logger         *log.Logger
	SpreadsheetURL string
	RefreshLimit   ratelimit.Config
}

type Server struct {
	http.Server
	templates *template.Template
	snapshots SnapshotSource
	auth      Authenticator
	sessions  *session.Manager
	charts    ChartRenderer
	logger    *log.Logger
	sheetURL  string
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
}

func NewServer(addr string, deps Deps) (*Server, error) {
	tmpl, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	logger := deps.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		templates: tmpl,
		snapshots: deps.Snapshots,
		auth:      deps.Auth,
		sessions:  deps.Sessions,
		charts:    deps.Charts,
		logger:    logger,
		sheetURL:  deps.SpreadsheetURL,
		limiter:   ratelimit.NewLimiter(deps.RefreshLimit),
		detector:  security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, deps.Logger)

	page := func(h http.HandlerFunc) http.Handler {
		return s.sessions.Require(http.HandlerFunc(s.redirectToLogin))(security.NoStore(h))
	}
	api := func(h http.Handler) http.Handler {
		return s.sessions.Require(http.HandlerFunc(s.unauthorized))(security.NoStore(h))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", page(s.handleHome))
	mux.Handle("GET /plot", page(s.handlePlot))
	mux.Handle("GET /investments", page(s.handleInvestments))
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.Handle("POST /add_user", api(http.HandlerFunc(s.handleAddUser)))
	mux.Handle("GET /refresh_data", api(
		s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited)(http.HandlerFunc(s.handleRefresh)),
	))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Static assets unavailable", log.FieldError, err)
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	handler := s.tracer.Middleware(headers.Middleware(s.rejectProbes(mux)))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops accepting connections and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) rejectProbes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).Warn("Rejected suspicious request",
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
			)
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login"
	if next := r.URL.RequestURI(); next != "/" {
		target += "?next=" + url.QueryEscape(next)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, statusResponse{Status: "error", Message: "Authentication required"})
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, statusResponse{Status: "error", Message: "Too many refresh requests, please try again later"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports 503 until the first snapshot has been published.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !s.snapshots.Current().Loaded() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("waiting for data"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}
