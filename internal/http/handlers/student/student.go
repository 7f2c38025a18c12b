// Package student contains the HTTP handlers of the development student
// store, the JSON peer the admin app talks to.
//
// Each exported function is a factory: it receives its dependencies once
// at route registration and returns the http.HandlerFunc the router calls
// on every request.
//
//	router.HandleFunc("GET /students", student.GetList(storage))
package student

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/students-admin/internal/storage"
	"github.com/aanand-mishra/students-admin/internal/types"
	"github.com/aanand-mishra/students-admin/internal/utils/response"
)

// validate reports field errors by their JSON names so the messages match
// what clients sent.
var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// statusFor maps a storage error to an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into dst. It writes the 400 response itself and
// reports false when the body is empty or malformed.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("request body is empty")))
		return false
	}
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return false
	}
	return true
}

func valid(w http.ResponseWriter, s types.Student) bool {
	if err := validate.Struct(s); err != nil {
		var validateErrs validator.ValidationErrors
		if errors.As(err, &validateErrs) {
			response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(validateErrs))
		} else {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		}
		return false
	}
	return true
}

// New handles POST /students.
//
// Success response (201 Created): the stored student, including its id.
func New(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a student")

		var student types.Student
		if !decode(w, r, &student) {
			return
		}
		if !valid(w, student) {
			return
		}

		created, err := storage.CreateStudent(student)
		if err != nil {
			slog.Error("error creating student", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		slog.Info("student created", slog.String("id", created.ID))
		response.WriteJSON(w, http.StatusCreated, created)
	}
}

// GetByID handles GET /students/{id}.
func GetByID(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("getting a student", slog.String("id", id))

		student, err := storage.GetStudentByID(id)
		if err != nil {
			slog.Error("error getting student",
				slog.String("id", id),
				slog.String("error", err.Error()))
			response.WriteJSON(w, statusFor(err), response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, student)
	}
}

// GetList handles GET /students.
// Returns an empty array [] (not null) when there are no students.
func GetList(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("getting all students")

		students, err := storage.GetStudents()
		if err != nil {
			slog.Error("error getting students", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, students)
	}
}

// Update handles PUT /students/{id}.
//
// The body is merged over the stored record: keys the client omits keep
// their stored value. The "_id" in the body is ignored in favour of the
// path. Success response (200 OK) is the stored record.
func Update(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("updating a student", slog.String("id", id))

		student, err := storage.GetStudentByID(id)
		if err != nil {
			slog.Error("error loading student for update",
				slog.String("id", id),
				slog.String("error", err.Error()))
			response.WriteJSON(w, statusFor(err), response.GeneralError(err))
			return
		}

		if !decode(w, r, &student) {
			return
		}
		student.ID = id

		if !valid(w, student) {
			return
		}

		updated, err := storage.UpdateStudentByID(id, student)
		if err != nil {
			slog.Error("error updating student",
				slog.String("id", id),
				slog.String("error", err.Error()))
			response.WriteJSON(w, statusFor(err), response.GeneralError(err))
			return
		}

		slog.Info("student updated", slog.String("id", id))
		response.WriteJSON(w, http.StatusOK, updated)
	}
}

// Delete handles DELETE /students/{id}.
//
// Success response (200 OK):
//
//	{ "status": "deleted" }
func Delete(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("deleting a student", slog.String("id", id))

		if err := storage.DeleteStudentByID(id); err != nil {
			slog.Error("error deleting student",
				slog.String("id", id),
				slog.String("error", err.Error()))
			response.WriteJSON(w, statusFor(err), response.GeneralError(err))
			return
		}

		slog.Info("student deleted", slog.String("id", id))
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// Register mounts every store route on mux.
func Register(mux *http.ServeMux, storage storage.Storage) {
	mux.HandleFunc("POST /students", New(storage))
	mux.HandleFunc("GET /students", GetList(storage))
	mux.HandleFunc("GET /students/{id}", GetByID(storage))
	mux.HandleFunc("PUT /students/{id}", Update(storage))
	mux.HandleFunc("DELETE /students/{id}", Delete(storage))
}
