// Package web provides the HTTP server, pages and JSON API of the spare-part
// tracker.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/partlog/internal/config"
	"github.com/JonMunkholm/partlog/internal/inventory"
	"github.com/JonMunkholm/partlog/internal/store"
	mw "github.com/JonMunkholm/partlog/internal/web/middleware"
)

// Server is the HTTP server for the spare-part tracker.
type Server struct {
	service *inventory.Service
	auth    store.Authenticator // nil when sign-in happens elsewhere
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	limiters []*rateLimiter
}

// NewServer creates a Server. authn may be nil, in which case POST
// /auth/login reports that sign-in is not available.
func NewServer(service *inventory.Service, authn store.Authenticator, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		auth:    authn,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Session(s.service.Store(), s.cfg.Auth.CookieName))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes. Every route except the import
// runs under the request timeout.
func (s *Server) setupRoutes() {
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})

	// Auth pages
	s.router.Route("/auth", func(r chi.Router) {
		s.useTimeout(r)
		r.With(mw.RedirectAuthenticated).Get("/login", s.handleLoginPage)
		r.With(mw.RedirectAuthenticated).Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/error", s.handleAuthError)
	})

	// Everything else needs a signed-in user
	s.router.Group(func(r chi.Router) {
		r.Use(mw.RequireUser)

		r.Group(func(r chi.Router) {
			s.useTimeout(r)
			r.Get("/dashboard", s.handleDashboard)
		})

		r.Route("/api", func(r chi.Router) {
			// Imports answer only after the last row is inserted
			imports := r.With()
			if s.cfg.Rate.Enabled {
				imports = r.With(s.newRateLimiter(s.cfg.Rate.ImportLimit, time.Minute).middleware)
			}
			imports.Post("/import/{kind}", s.handleImport)

			r.Group(func(r chi.Router) {
				s.useTimeout(r)
				r.Get("/stats", s.handleStats)

				// Printers
				r.Get("/printers", s.handleListPrinters)
				r.Post("/printers", s.handleCreatePrinter)
				r.Get("/printers/{id}", s.handleGetPrinter)
				r.Delete("/printers/{id}", s.handleDeletePrinter)
				r.Patch("/printers/{id}/name", s.handleRenamePrinter)
				r.Patch("/printers/{id}/color", s.handleRecolorPrinter)
				r.Patch("/printers/{id}/counter", s.handleUpdateCounter)
				r.Get("/printers/{id}/history", s.handlePrinterHistory)
				r.Post("/printers/{id}/history/delete", s.handleDeleteHistory)

				// Spare parts
				r.Get("/spare-parts", s.handleListSpareParts)
				r.Post("/spare-parts", s.handleCreateSparePart)
				r.Patch("/spare-parts/{id}", s.handleUpdateSparePart)
				r.Delete("/spare-parts/{id}", s.handleDeleteSparePart)

				// Changes
				r.Get("/changes/recent", s.handleRecentChanges)
				r.Post("/changes", s.handleCreateChange)
				r.Delete("/changes/{id}", s.handleDeleteChange)

				// Templates and backup
				r.Get("/templates/{kind}", s.handleTemplate)
				r.Get("/backup", s.handleBackup)
			})
		})
	})
}

// useTimeout adds the request timeout to r when one is configured.
func (s *Server) useTimeout(r chi.Router) {
	if s.cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
}

// Run serves on addr until ctx is done, then shuts down within the configured
// ShutdownTimeout. drain, when not nil, runs first with the same deadline.
// Run returns only after shutdown has finished.
func (s *Server) Run(ctx context.Context, addr string, drain func(context.Context)) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if drain != nil {
			drain(shutdownCtx)
		}
		done <- s.Shutdown(shutdownCtx)
	}()

	slog.Info("starting server", "addr", addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}

// Shutdown gracefully stops the server and its background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy",
					"default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a fixed-window request limit per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a limiter and registers it for shutdown.
func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	s.limiters = append(s.limiters, rl)
	return rl
}

// cleanup removes stale visitor entries every window until stopped.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if rl.now().Sub(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by IP. RemoteAddr
// has already been resolved by TrustedRealIP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientHost(r.RemoteAddr)) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error:   "rate limit exceeded",
				Message: "Too many requests",
				Action:  "Wait a minute and try again",
				Code:    "RATE001",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
