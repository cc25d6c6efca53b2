package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/partlog/internal/inventory"
	"github.com/JonMunkholm/partlog/internal/logging"
	"github.com/JonMunkholm/partlog/internal/store"
	"github.com/JonMunkholm/partlog/internal/web/views"
)

var errSignInUnavailable = errors.New("sign in is not available with this store")

// render writes a templ component as an HTML response.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.LoginPage(""))
}

// handleLogin signs in with email and password and stores the access token
// in the session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondError(w, r, errors.New("invalid request form"))
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")

	fail := func(err error) {
		msg := inventory.MapError(err)
		logging.FromContext(r.Context()).Warn("sign in failed", "email", email, "code", msg.Code)
		if wantsJSON(r) {
			s.respondError(w, r, err)
			return
		}
		render(w, r, statusFor(err, msg.Code), views.LoginPage(inventory.FormatUserError(err)))
	}

	if s.auth == nil {
		fail(errSignInUnavailable)
		return
	}
	if email == "" {
		fail(errors.New("email is required"))
		return
	}
	if password == "" {
		fail(errors.New("password is required"))
		return
	}

	session, err := s.auth.SignIn(r.Context(), email, password)
	if err != nil {
		fail(err)
		return
	}

	http.SetCookie(w, s.sessionCookie(session.AccessToken, 0))
	logger := logging.FromContext(r.Context())
	if session.User != nil {
		logger = logger.With("user_id", session.User.ID)
	}
	logger.Info("signed in")

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, session)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleLogout ends the session with the store and clears the cookie. The
// cookie is cleared even if the store call fails.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if store.UserFromContext(r.Context()) != nil {
		if err := s.service.Store().SignOut(r.Context()); err != nil {
			logging.FromContext(r.Context()).Warn("sign out failed", "error", err)
		}
	}

	http.SetCookie(w, s.sessionCookie("", -1))
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/auth/login")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// handleAuthError is the landing page for failed sign-in redirects from the
// identity provider.
func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request) {
	msg := r.URL.Query().Get("error_description")
	if msg == "" {
		msg = "Sign-in could not be completed"
	}
	render(w, r, http.StatusOK, views.AuthErrorPage(msg))
}

// sessionCookie builds the session cookie. maxAge < 0 deletes it.
func (s *Server) sessionCookie(token string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
