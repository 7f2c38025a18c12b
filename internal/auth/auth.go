// Package auth is the demo access gate in front of the admin pages.
//
// It is not a real authentication system. A single user record lives in
// the browser's session cookie, and logging in only sets an access flag
// next to it. Nothing here travels to the student store.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when the username or password
	// does not match the stored user.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoUser is returned when no user has registered in this session.
	ErrNoUser = fmt.Errorf("no registered user: %w", ErrInvalidCredentials)
)

// Session keys.
const (
	sessionName = "students-admin"
	keyAllowed  = "isAllowed"
	keyUser     = "user"
	keyViewID   = "viewID"
)

// Credentials is what the login and registration forms submit.
type Credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// user is the single stored demo account, kept JSON-encoded in the session.
type user struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// State is the authentication state handed to guarded views.
type State struct {
	Username string
	// ViewID identifies this browser's admin view for as long as it
	// stays logged in.
	ViewID string
}

// Auth provides the demo register/login/logout flow on top of a session
// store.
type Auth struct {
	store    sessions.Store
	validate *validator.Validate
	log      *slog.Logger
}

// New creates an Auth over store.
func New(store sessions.Store, log *slog.Logger) *Auth {
	if log == nil {
		log = slog.Default()
	}
	return &Auth{store: store, validate: validator.New(), log: log}
}

// NewCookieStore returns a cookie-backed session store whose cookies last
// for the browser session only.
func NewCookieStore(key []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// session always returns a usable session. A cookie that fails to decode
// is treated as an empty session.
func (a *Auth) session(r *http.Request) *sessions.Session {
	s, err := a.store.Get(r, sessionName)
	if err != nil {
		a.log.Debug("discarding unreadable session", slog.String("error", err.Error()))
	}
	if s == nil {
		s = sessions.NewSession(a.store, sessionName)
	}
	return s
}

// Register stores creds as the single demo user, replacing any earlier
// one. It does not log the user in.
func (a *Auth) Register(w http.ResponseWriter, r *http.Request, creds Credentials) error {
	if err := a.validate.Struct(creds); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth.Register: hash password: %w", err)
	}
	raw, err := json.Marshal(user{Username: creds.Username, PasswordHash: string(hash)})
	if err != nil {
		return fmt.Errorf("auth.Register: encode user: %w", err)
	}

	s := a.session(r)
	s.Values[keyUser] = string(raw)
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("auth.Register: save session: %w", err)
	}

	a.log.Info("user registered", slog.String("username", creds.Username))
	return nil
}

// Login checks creds against the stored user and, on a match, sets the
// access flag.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request, creds Credentials) error {
	if err := a.validate.Struct(creds); err != nil {
		return err
	}

	s := a.session(r)
	raw, _ := s.Values[keyUser].(string)
	if raw == "" {
		return ErrNoUser
	}

	var stored user
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return fmt.Errorf("auth.Login: decode user: %w", err)
	}
	if stored.Username != creds.Username {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(creds.Password)); err != nil {
		return ErrInvalidCredentials
	}

	s.Values[keyAllowed] = true
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("auth.Login: save session: %w", err)
	}

	a.log.Info("user logged in", slog.String("username", creds.Username))
	return nil
}

// Logout clears the access flag and returns the view id that was in use,
// so the caller can drop any state kept for it. The registered user stays.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) (string, error) {
	s := a.session(r)
	viewID, _ := s.Values[keyViewID].(string)
	delete(s.Values, keyAllowed)
	delete(s.Values, keyViewID)
	if err := s.Save(r, w); err != nil {
		return viewID, fmt.Errorf("auth.Logout: save session: %w", err)
	}
	return viewID, nil
}

// Allowed reports whether the request carries the access flag.
func (a *Auth) Allowed(r *http.Request) bool {
	allowed, _ := a.session(r).Values[keyAllowed].(bool)
	return allowed
}

func (a *Auth) username(s *sessions.Session) string {
	raw, _ := s.Values[keyUser].(string)
	var u user
	if json.Unmarshal([]byte(raw), &u) != nil {
		return ""
	}
	return u.Username
}

type contextKey struct{}

// WithState returns a copy of ctx carrying st.
func WithState(ctx context.Context, st State) context.Context {
	return context.WithValue(ctx, contextKey{}, st)
}

// StateFrom returns the State the guard attached to ctx.
func StateFrom(ctx context.Context) (State, bool) {
	st, ok := ctx.Value(contextKey{}).(State)
	return st, ok
}

// Guard redirects to /login unless the access flag is set. Otherwise it
// resolves the State once, assigning a view id on first use, and passes
// it to next through the request context.
func (a *Auth) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := a.session(r)
		if allowed, _ := s.Values[keyAllowed].(bool); !allowed {
			a.log.Debug("not authorized, redirecting to login", slog.String("path", r.URL.Path))
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		viewID, _ := s.Values[keyViewID].(string)
		if viewID == "" {
			viewID = uuid.NewString()
			s.Values[keyViewID] = viewID
			if err := s.Save(r, w); err != nil {
				a.log.Error("failed to save session", slog.String("error", err.Error()))
				http.Error(w, "failed to save session", http.StatusInternalServerError)
				return
			}
		}

		st := State{Username: a.username(s), ViewID: viewID}
		next.ServeHTTP(w, r.WithContext(WithState(r.Context(), st)))
	})
}
