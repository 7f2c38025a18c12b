// Package editsession keeps the state behind the student table: the cached
// list of records, the single edit cursor and its edit buffer.
//
// The list is only ever changed by a confirmed store response. A commit
// replaces one record with what the store returned, and a remove drops a
// record once the store accepted the delete. Every failure is collapsed
// into one display string and leaves the prior state in place, so the
// user can retry.
package editsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/aanand-mishra/students-admin/internal/storeclient"
	"github.com/aanand-mishra/students-admin/internal/types"
)

var (
	// ErrNotEditing is returned by UpdateField and Commit when no record
	// is in edit mode.
	ErrNotEditing = errors.New("no student is being edited")

	// ErrBusy is returned when a record already has a save or delete in
	// flight.
	ErrBusy = errors.New("another change to this student is still in progress")
)

// Display strings shown when the store gives nothing better.
const (
	msgUpdateFailed = "Failed to update student."
	msgDeleteFailed = "Failed to delete student."
)

// Store is the part of the Remote Student Store the controller needs.
// *storeclient.Client satisfies it.
type Store interface {
	List(ctx context.Context) ([]types.Student, error)
	Update(ctx context.Context, id string, fields map[string]any) (types.Student, error)
	Delete(ctx context.Context, id string) error
}

// View is a consistent snapshot of the controller, taken under one lock.
type View struct {
	Records   []types.Student
	EditingID string
	Editing   bool
	Buffer    map[string]any
	Error     string
	Loading   bool
}

// Controller owns the record list and edit session of one admin view.
// It is safe for concurrent use: network calls run without the lock held,
// so other operations stay available while one is in flight.
type Controller struct {
	store Store
	log   *slog.Logger

	mu        sync.Mutex
	records   []types.Student
	editingID string
	editing   bool
	buffer    map[string]any
	pending   map[string]struct{}
	inflight  int
	errMsg    string
}

// New returns an idle controller with an empty list. Call Load to fetch
// the list.
func New(store Store, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		store:   store,
		log:     log,
		records: []types.Student{},
		pending: map[string]struct{}{},
	}
}

// Load fetches the full list from the store and replaces the cached copy.
// On failure the cached list is kept and the error string is set.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()

	students, err := c.store.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	if err != nil {
		c.errMsg = loadMessage(err)
		c.log.Error("failed to load students", slog.String("error", err.Error()))
		return err
	}

	c.records = students
	c.errMsg = ""
	c.log.Debug("students loaded", slog.Int("count", len(students)))
	return nil
}

func loadMessage(err error) string {
	var serr *storeclient.StatusError
	if errors.As(err, &serr) {
		return fmt.Sprintf("Error: %d - %s", serr.Status, serr.StatusText)
	}
	return err.Error()
}

// BeginEdit puts record into edit mode and seeds the buffer with a copy of
// its fields. Any earlier uncommitted buffer is dropped.
func (c *Controller) BeginEdit(record types.Student) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.pending[record.ID]; busy {
		c.errMsg = "Error: " + ErrBusy.Error()
		return ErrBusy
	}

	c.editingID = record.ID
	c.editing = true
	c.buffer = record.Fields()
	c.log.Debug("edit started", slog.String("id", record.ID))
	return nil
}

// UpdateField merges one field into the buffer. Neither the field name
// nor the value type is checked.
func (c *Controller) UpdateField(name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.editing {
		return ErrNotEditing
	}
	c.buffer[name] = value
	return nil
}

// Commit sends the whole buffer to the store as the update for the record
// under the cursor.
//
// On success the matching record is replaced with the store's version and
// the cursor is cleared. On failure the list, cursor and buffer are left
// as they were, and the error string carries the store's message.
func (c *Controller) Commit(ctx context.Context) error {
	c.mu.Lock()
	if !c.editing {
		c.mu.Unlock()
		return ErrNotEditing
	}
	id := c.editingID
	if _, busy := c.pending[id]; busy {
		c.errMsg = "Error: " + ErrBusy.Error()
		c.mu.Unlock()
		return ErrBusy
	}
	payload := maps.Clone(c.buffer)
	c.pending[id] = struct{}{}
	c.inflight++
	c.mu.Unlock()

	c.log.Info("saving student", slog.String("id", id))
	updated, err := c.store.Update(ctx, id, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
	c.inflight--

	if err != nil {
		c.errMsg = "Error: " + updateMessage(err)
		c.log.Error("failed to save student",
			slog.String("id", id),
			slog.String("error", err.Error()))
		return err
	}

	c.errMsg = ""
	// A record removed while the save was in flight stays removed.
	if i := c.indexOf(id); i >= 0 {
		c.records[i] = updated
	}
	if c.editing && c.editingID == id {
		c.clearCursor()
	}
	c.log.Info("student saved", slog.String("id", id))
	return nil
}

func updateMessage(err error) string {
	var serr *storeclient.StatusError
	if errors.As(err, &serr) {
		if serr.Message != "" {
			return serr.Message
		}
		return msgUpdateFailed
	}
	return err.Error()
}

// Cancel leaves edit mode and discards the buffer. No request is made.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearCursor()
}

// Remove deletes id at the store and, once the store accepts, drops it
// from the list. If id was being edited, the edit session ends with it.
func (c *Controller) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	if _, busy := c.pending[id]; busy {
		c.errMsg = "Error: " + ErrBusy.Error()
		c.mu.Unlock()
		return ErrBusy
	}
	c.pending[id] = struct{}{}
	c.inflight++
	c.mu.Unlock()

	c.log.Info("deleting student", slog.String("id", id))
	err := c.store.Delete(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
	c.inflight--

	if err != nil {
		c.errMsg = msgDeleteFailed
		c.log.Error("failed to delete student",
			slog.String("id", id),
			slog.String("error", err.Error()))
		return err
	}

	c.records = slices.DeleteFunc(slices.Clone(c.records), func(s types.Student) bool {
		return s.ID == id
	})
	if c.editing && c.editingID == id {
		c.clearCursor()
	}
	c.log.Info("student deleted", slog.String("id", id))
	return nil
}

// Record returns the cached record with the given id.
func (c *Controller) Record(id string) (types.Student, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		return c.records[i], true
	}
	return types.Student{}, false
}

// Records returns a copy of the cached list.
func (c *Controller) Records() []types.Student {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.records)
}

// Editing returns the edit cursor.
func (c *Controller) Editing() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingID, c.editing
}

// Buffer returns a copy of the edit buffer, or nil when idle.
func (c *Controller) Buffer() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.buffer)
}

// Err returns the current display error, or "".
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Loading reports whether any request is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// Pending reports whether id has a save or delete in flight.
func (c *Controller) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

// Snapshot returns the whole state at one instant, for rendering.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Records:   slices.Clone(c.records),
		EditingID: c.editingID,
		Editing:   c.editing,
		Buffer:    maps.Clone(c.buffer),
		Error:     c.errMsg,
		Loading:   c.inflight > 0,
	}
}

// indexOf must be called with mu held.
func (c *Controller) indexOf(id string) int {
	return slices.IndexFunc(c.records, func(s types.Student) bool {
		return s.ID == id
	})
}

// clearCursor must be called with mu held.
func (c *Controller) clearCursor() {
	c.editingID = ""
	c.editing = false
	c.buffer = nil
}
