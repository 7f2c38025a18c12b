package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// browser replays the cookies each response sets, like a single tab.
type browser struct {
	cookies map[string]*http.Cookie
}

func newBrowser() *browser {
	return &browser{cookies: map[string]*http.Cookie{}}
}

func (b *browser) request(method, path string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	for _, c := range b.cookies {
		r.AddCookie(c)
	}
	return r
}

func (b *browser) keep(rec *httptest.ResponseRecorder) {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
}

func newAuth() *Auth {
	return New(NewCookieStore([]byte("test-session-key-test-session-key"), false), nil)
}

func (b *browser) run(t *testing.T, fn func(w http.ResponseWriter, r *http.Request) error) error {
	t.Helper()
	rec := httptest.NewRecorder()
	err := fn(rec, b.request(http.MethodPost, "/"))
	b.keep(rec)
	return err
}

func TestRegisterThenLogin(t *testing.T) {
	a := newAuth()
	b := newBrowser()
	creds := Credentials{Username: "ana", Password: "pw"}

	require.NoError(t, b.run(t, func(w http.ResponseWriter, r *http.Request) error {
		return a.Register(w, r, creds)
	}))
	assert.False(t, a.Allowed(b.request(http.MethodGet, "/")), "registering does not log in")

	require.NoError(t, b.run(t, func(w http.ResponseWriter, r *http.Request) error {
		return a.Login(w, r, creds)
	}))
	assert.True(t, a.Allowed(b.request(http.MethodGet, "/")))
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		register *Credentials
		login    Credentials
		wantErr  error
	}{
		{
			name:    "nobody registered",
			login:   Credentials{Username: "ana", Password: "pw"},
			wantErr: ErrNoUser,
		},
		{
			name:     "wrong password",
			register: &Credentials{Username: "ana", Password: "pw"},
			login:    Credentials{Username: "ana", Password: "nope"},
			wantErr:  ErrInvalidCredentials,
		},
		{
			name:     "wrong username",
			register: &Credentials{Username: "ana", Password: "pw"},
			login:    Credentials{Username: "bob", Password: "pw"},
			wantErr:  ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAuth()
			b := newBrowser()
			if tt.register != nil {
				require.NoError(t, b.run(t, func(w http.ResponseWriter, r *http.Request) error {
					return a.Register(w, r, *tt.register)
				}))
			}

			err := b.run(t, func(w http.ResponseWriter, r *http.Request) error {
				return a.Login(w, r, tt.login)
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, a.Allowed(b.request(http.MethodGet, "/")))
		})
	}
}

func TestEmptyCredentialsFailValidation(t *testing.T) {
	a := newAuth()
	b := newBrowser()

	err := b.run(t, func(w http.ResponseWriter, r *http.Request) error {
		return a.Register(w, r, Credentials{Username: "ana"})
	})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "Password", verrs[0].Field())
}

func TestRegisterReplacesUser(t *testing.T) {
	a := newAuth()
	b := newBrowser()

	for _, c := range []Credentials{{"ana", "one"}, {"bob", "two"}} {
		require.NoError(t, b.run(t, func(w http.ResponseWriter, r *http.Request) error {
			return a.Register(w, r, c)
		}))
	}

	err := b.run(t, func(w http.ResponseWriter, r *http.Request) error {
		return a.Login(w, r, Credentials{"ana", "one"})
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = b.run(t, func(w http.ResponseWriter, r *http.Request) error {
		return a.Login(w, r, Credentials{"bob", "two"})
	})
	assert.NoError(t, err)
}

func TestGuard(t *testing.T) {
	a := newAuth()
	b := newBrowser()

	var seen []State
	h := a.Guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, ok := StateFrom(r.Context())
		require.True(t, ok)
		seen = append(seen, st)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, b.request(http.MethodGet, "/students"))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Empty(t, seen)

	creds := Credentials{Username: "ana", Password: "pw"}
	require.NoError(t, b.run(t, func(w http.ResponseWriter, r *http.Request) error { return a.Register(w, r, creds) }))
	require.NoError(t, b.run(t, func(w http.ResponseWriter, r *http.Request) error { return a.Login(w, r, creds) }))

	for i := 0; i < 2; i++ {
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, b.request(http.MethodGet, "/students"))
		b.keep(rec)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	require.Len(t, seen, 2)
	assert.Equal(t, "ana", seen[0].Username)
	assert.NotEmpty(t, seen[0].ViewID)
	assert.Equal(t, seen[0].ViewID, seen[1].ViewID, "view id is stable across requests")

	var viewID string
	require.NoError(t, b.run(t, func(w http.ResponseWriter, r *http.Request) error {
		var err error
		viewID, err = a.Logout(w, r)
		return err
	}))
	assert.Equal(t, seen[0].ViewID, viewID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, b.request(http.MethodGet, "/students"))
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestStateFromEmptyContext(t *testing.T) {
	_, ok := StateFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
