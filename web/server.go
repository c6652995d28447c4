// ABOUTME: HTTP surface for the sync service
// ABOUTME: Webhook, health, metrics, admin dashboard, and OAuth connect routes
package web

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"

	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/sync"
)

const stateCookie = "fitsync_oauth_state"

// RouteRegistrar mounts routes owned by another package (the Strava webhook).
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type TokenStore interface {
	Save(ctx context.Context, service string, tok *oauth2.Token) error
	Connected(ctx context.Context) ([]string, error)
}

type StateLister interface {
	All(ctx context.Context) ([]models.SyncState, error)
}

type RecordCounter interface {
	Count(ctx context.Context) (map[models.Source]int, error)
}

type Options struct {
	Webhook RouteRegistrar
	Tokens  TokenStore
	States  StateLister
	Records RecordCounter
	// OAuth holds a config per connectable service; services without one
	// answer 404 on /auth/{service}.
	OAuth map[string]*oauth2.Config

	AdminUsername string
	AdminPassword string

	Logger *slog.Logger
}

type Server struct {
	opts   Options
	logger *slog.Logger
}

// NewRouter builds the full route tree.
func NewRouter(opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "fitsync"})
	})
	r.Handle("/metrics", promhttp.Handler())

	if opts.Webhook != nil {
		opts.Webhook.RegisterRoutes(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(basicAuth(opts.AdminUsername, opts.AdminPassword))
		r.Get("/", s.handleDashboard)
		r.Get("/auth/{service}", s.handleAuthStart)
		r.Get("/auth/{service}/callback", s.handleAuthCallback)
	})

	return r
}

// NewServer wraps the router in an http.Server listening on addr.
func NewServer(addr string, opts Options) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type dashboard struct {
	Connected map[string]bool       `json:"connected"`
	SyncState []models.SyncState    `json:"sync_state"`
	Records   map[models.Source]int `json:"records"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := dashboard{
		Connected: make(map[string]bool, len(sync.Services)),
		SyncState: []models.SyncState{},
		Records:   map[models.Source]int{},
	}
	for _, svc := range sync.Services {
		out.Connected[svc] = false
	}

	if s.opts.Tokens != nil {
		connected, err := s.opts.Tokens.Connected(ctx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		for _, svc := range connected {
			out.Connected[svc] = true
		}
	}
	if s.opts.States != nil {
		states, err := s.opts.States.All(ctx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if states != nil {
			out.SyncState = states
		}
	}
	if s.opts.Records != nil {
		counts, err := s.opts.Records.Count(ctx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out.Records = counts
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	cfg, ok := s.opts.OAuth[service]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown or unconfigured service"})
		return
	}

	state, err := randomState()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     sync.CallbackPath(service),
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	var opts []oauth2.AuthCodeOption
	if service == sync.ServiceGoogle {
		// Google only issues a refresh token on a forced consent.
		opts = append(opts, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	}
	http.Redirect(w, r, cfg.AuthCodeURL(state, opts...), http.StatusFound)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	cfg, ok := s.opts.OAuth[service]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown or unconfigured service"})
		return
	}

	query := r.URL.Query()
	if msg := query.Get("error"); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authorization denied: " + msg})
		return
	}
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(query.Get("state"))) != 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "state mismatch"})
		return
	}
	code := query.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing authorization code"})
		return
	}

	tok, err := cfg.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Warn("token exchange failed", "service", service, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "token exchange failed"})
		return
	}
	if err := s.opts.Tokens.Save(r.Context(), service, tok); err != nil {
		s.fail(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: sync.CallbackPath(service), MaxAge: -1})
	s.logger.Info("service connected", "service", service)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// basicAuth guards admin routes. An empty password disables the check.
func basicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if password == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
			if !ok || !userOK || !passOK {
				w.Header().Set("WWW-Authenticate", `Basic realm="fitsync"`)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
