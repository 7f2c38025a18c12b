// Package storage defines the Storage interface the development student
// store is written against.
//
// Handlers only depend on this interface, so tests can pass a fake and
// the SQLite backend can be swapped without touching the HTTP layer.
package storage

import (
	"errors"

	"github.com/aanand-mishra/students-admin/internal/types"
)

// ErrNotFound is returned when no student matches the given id.
var ErrNotFound = errors.New("student not found")

// NotFoundError names the missing id. It matches ErrNotFound under
// errors.Is, and its text is the message the store sends back on a 404.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return "no student found with id: " + e.ID
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Storage is the database contract.
type Storage interface {
	// CreateStudent inserts a new student and returns it with its
	// generated id.
	CreateStudent(student types.Student) (types.Student, error)

	// GetStudentByID fetches a single student. Returns a *NotFoundError
	// when the id is unknown.
	GetStudentByID(id string) (types.Student, error)

	// GetStudents returns every student in insertion order.
	// Returns an empty slice (not nil) if there are none.
	GetStudents() ([]types.Student, error)

	// UpdateStudentByID replaces the stored fields of an existing student
	// and returns the stored record. An empty Password leaves the stored
	// password untouched.
	UpdateStudentByID(id string, student types.Student) (types.Student, error)

	// DeleteStudentByID removes a student. Returns a *NotFoundError when
	// the id is unknown.
	DeleteStudentByID(id string) error
}
