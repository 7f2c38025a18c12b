// Package admin serves the server-rendered admin pages: the login and
// registration demo, the welcome page and the student table with inline
// editing.
//
// Every student page belongs to one browser view. The view's
// editsession.Controller is created (and the list fetched) the first time
// the view reaches /students, and dropped on logout or once the view goes
// idle. Mutating routes
// redirect back to /students once they finish.
package admin

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/aanand-mishra/students-admin/internal/auth"
	"github.com/aanand-mishra/students-admin/internal/editsession"
	"github.com/aanand-mishra/students-admin/internal/types"
)

//go:embed templates/*.html
var templatesFS embed.FS

// editableFields are the buffer keys the edit form may submit.
var editableFields = []string{"name", "username", "phone", "studentClass", "dob"}

// Views keeps one controller per browser view. A view that has not been
// touched for the idle TTL, or the least recently used one once the
// registry is full, is evicted; its next request mounts a fresh
// controller.
type Views struct {
	store editsession.Store
	log   *slog.Logger

	// mu makes get-or-create atomic; the LRU locks itself.
	mu    sync.Mutex
	views *expirable.LRU[string, *editsession.Controller]
}

// Default registry bounds.
const (
	DefaultMaxViews = 1000
	DefaultViewTTL  = 30 * time.Minute
)

// ViewsOption configures a Views registry.
type ViewsOption func(*viewsConfig)

type viewsConfig struct {
	size int
	ttl  time.Duration
}

// WithMaxViews caps how many views are kept. Values below 1 keep the default.
func WithMaxViews(n int) ViewsOption {
	return func(c *viewsConfig) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithViewTTL sets how long an untouched view is kept. Non-positive
// values keep the default.
func WithViewTTL(d time.Duration) ViewsOption {
	return func(c *viewsConfig) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// NewViews returns an empty registry whose controllers talk to store.
func NewViews(store editsession.Store, log *slog.Logger, opts ...ViewsOption) *Views {
	if log == nil {
		log = slog.Default()
	}
	cfg := viewsConfig{size: DefaultMaxViews, ttl: DefaultViewTTL}
	for _, opt := range opts {
		opt(&cfg)
	}

	evicted := func(id string, _ *editsession.Controller) {
		log.Debug("student view evicted", slog.String("view", id))
	}
	return &Views{
		store: store,
		log:   log,
		views: expirable.NewLRU[string, *editsession.Controller](cfg.size, evicted, cfg.ttl),
	}
}

// Get returns the controller for id, creating it if needed, and restarts
// its idle timer. mounted is true when the controller was just created.
func (v *Views) Get(id string) (c *editsession.Controller, mounted bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if c, ok := v.views.Get(id); ok {
		v.views.Add(id, c)
		return c, false
	}
	c = editsession.New(v.store, v.log.With(slog.String("view", id)))
	v.views.Add(id, c)
	return c, true
}

// Drop forgets the controller for id.
func (v *Views) Drop(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.views.Remove(id)
}

// Len reports how many views are live.
func (v *Views) Len() int {
	return len(v.views.Keys())
}

// Handler serves the admin pages.
type Handler struct {
	auth  *auth.Auth
	views *Views
	tmpl  *template.Template
	log   *slog.Logger
}

// New parses the embedded templates and returns a Handler.
func New(a *auth.Auth, views *Views, log *slog.Logger) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	tmpl, err := template.New("admin").Funcs(template.FuncMap{
		"field":     field,
		"dateField": dateField,
		"photoURL":  photoURL,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("admin.New: parse templates: %w", err)
	}
	return &Handler{auth: a, views: views, tmpl: tmpl, log: log}, nil
}

// Routes registers every admin route on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/students", http.StatusFound)
	}).Methods(http.MethodGet)

	r.HandleFunc("/login", h.LoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/register", h.RegisterForm).Methods(http.MethodGet)
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	r.Handle("/home", h.auth.Guard(http.HandlerFunc(h.Home))).Methods(http.MethodGet)

	students := r.PathPrefix("/students").Subrouter()
	students.Use(h.auth.Guard)
	students.HandleFunc("", h.List).Methods(http.MethodGet)
	students.HandleFunc("/reload", h.Reload).Methods(http.MethodPost)
	students.HandleFunc("/cancel", h.Cancel).Methods(http.MethodPost)
	students.HandleFunc("/{id}/edit", h.Edit).Methods(http.MethodPost)
	students.HandleFunc("/{id}/save", h.Save).Methods(http.MethodPost)
	students.HandleFunc("/{id}/delete", h.Delete).Methods(http.MethodPost)
}

// page is the data every template receives.
type page struct {
	Title    string
	Error    string
	Flash    string
	Username string
	CSRF     template.HTML

	View editsession.View
	Rows []row
}

type row struct {
	Student types.Student
	Editing bool
	Pending bool
	Buffer  map[string]any
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, status int, p page) {
	p.CSRF = csrf.TemplateField(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, name, p); err != nil {
		h.log.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()))
	}
}

// storeContext detaches store calls from the browser request: a save or
// delete resolves whenever the store replies, even if the tab went away.
func storeContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func credentials(r *http.Request) auth.Credentials {
	return auth.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
}

// LoginForm handles GET /login.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.auth.Allowed(r) {
		http.Redirect(w, r, "/students", http.StatusFound)
		return
	}
	p := page{Title: "Login"}
	if r.URL.Query().Get("registered") != "" {
		p.Flash = "Registration successful!"
	}
	h.render(w, r, "login", http.StatusOK, p)
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	creds := credentials(r)
	err := h.auth.Login(w, r, creds)

	var verrs validator.ValidationErrors
	switch {
	case err == nil:
		http.Redirect(w, r, "/students", http.StatusFound)
	case errors.As(err, &verrs):
		h.render(w, r, "login", http.StatusBadRequest,
			page{Title: "Login", Error: "Username and password are required.", Username: creds.Username})
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.log.Info("login rejected", slog.String("username", creds.Username))
		h.render(w, r, "login", http.StatusUnauthorized,
			page{Title: "Login", Error: "Invalid credentials!", Username: creds.Username})
	default:
		h.log.Error("login failed", slog.String("error", err.Error()))
		http.Error(w, "login failed", http.StatusInternalServerError)
	}
}

// RegisterForm handles GET /register.
func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register", http.StatusOK, page{Title: "Register"})
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	creds := credentials(r)
	err := h.auth.Register(w, r, creds)

	var verrs validator.ValidationErrors
	switch {
	case err == nil:
		http.Redirect(w, r, "/login?registered=1", http.StatusFound)
	case errors.As(err, &verrs):
		h.render(w, r, "register", http.StatusBadRequest,
			page{Title: "Register", Error: "Username and password are required.", Username: creds.Username})
	default:
		h.log.Error("registration failed", slog.String("error", err.Error()))
		http.Error(w, "registration failed", http.StatusInternalServerError)
	}
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, err := h.auth.Logout(w, r)
	if id != "" {
		h.views.Drop(id)
	}
	if err != nil {
		h.log.Error("logout failed", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Home handles GET /home.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	st, _ := auth.StateFrom(r.Context())
	h.render(w, r, "home", http.StatusOK, page{Title: "Home", Username: st.Username})
}

// controller returns the controller of the requesting view, mounting it
// (and fetching the list) on first use.
func (h *Handler) controller(r *http.Request) *editsession.Controller {
	id := viewID(r)
	c, mounted := h.views.Get(id)
	if mounted {
		h.log.Info("mounting student view", slog.String("view", id))
		// A failed load is shown on the page; the view stays usable.
		_ = c.Load(storeContext(r))
	}
	return c
}

func backToList(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/students", http.StatusSeeOther)
}

// List handles GET /students. It only renders; edit mode is entered
// through POST /students/{id}/edit.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	c := h.controller(r)

	st, _ := auth.StateFrom(r.Context())
	h.render(w, r, "students", http.StatusOK, h.studentsPage(c, st))
}

func (h *Handler) studentsPage(c *editsession.Controller, st auth.State) page {
	v := c.Snapshot()
	rows := make([]row, 0, len(v.Records))
	for _, s := range v.Records {
		editing := v.Editing && v.EditingID == s.ID
		rw := row{Student: s, Editing: editing, Pending: c.Pending(s.ID)}
		if editing {
			rw.Buffer = v.Buffer
		}
		rows = append(rows, rw)
	}
	return page{Title: "Student Management", Username: st.Username, View: v, Rows: rows}
}

// Reload handles POST /students/reload by fetching the list again.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	h.log.Info("reloading students", slog.String("view", viewID(r)))

	c, _ := h.views.Get(viewID(r))
	_ = c.Load(storeContext(r))
	backToList(w, r)
}

func viewID(r *http.Request) string {
	st, _ := auth.StateFrom(r.Context())
	return st.ViewID
}

// Edit handles POST /students/{id}/edit.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.log.Info("editing a student", slog.String("id", id))

	c := h.controller(r)
	if record, ok := c.Record(id); ok {
		_ = c.BeginEdit(record)
	} else {
		h.log.Warn("edit requested for unknown student", slog.String("id", id))
	}
	backToList(w, r)
}

// Save handles POST /students/{id}/save: every submitted field is merged
// into the buffer and the buffer is committed. A blank password is left
// out so the stored one is kept.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.log.Info("saving a student", slog.String("id", id))

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	c := h.controller(r)
	if editing, ok := c.Editing(); !ok || editing != id {
		h.log.Warn("save requested for a student not in edit mode", slog.String("id", id))
		backToList(w, r)
		return
	}

	for _, name := range editableFields {
		if _, ok := r.PostForm[name]; ok {
			_ = c.UpdateField(name, r.PostForm.Get(name))
		}
	}
	if pw := r.PostForm.Get("password"); pw != "" {
		_ = c.UpdateField("password", pw)
	}

	_ = c.Commit(storeContext(r))
	backToList(w, r)
}

// Cancel handles POST /students/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.controller(r).Cancel()
	backToList(w, r)
}

// Delete handles POST /students/{id}/delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.log.Info("deleting a student", slog.String("id", id))

	_ = h.controller(r).Remove(storeContext(r), id)
	backToList(w, r)
}

// field renders a buffer value for an input.
func field(buf map[string]any, key string) string {
	v, ok := buf[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// dateField renders a buffer date as YYYY-MM-DD for a date input.
func dateField(buf map[string]any, key string) string {
	raw := field(buf, key)
	d, err := types.ParseDate(raw)
	if err != nil {
		return raw
	}
	return d.String()
}

// photoURL lets inline image data URLs through the template URL filter.
// Anything else is left for html/template to sanitize.
func photoURL(src string) any {
	if strings.HasPrefix(src, "data:image/") {
		return template.URL(src)
	}
	return src
}
