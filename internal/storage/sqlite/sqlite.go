// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/aanand-mishra/students-admin/internal/storage"
	"github.com/aanand-mishra/students-admin/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the concrete implementation of storage.Storage.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

// New opens the SQLite database at path and creates the students table
// if it does not already exist.
func New(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// Schema:
	//   seq           : insertion order, so listings are stable
	//   id            : opaque uuid handed out to clients
	//   dob           : calendar date as YYYY-MM-DD, "" when unknown
	//   password_hash : bcrypt hash, never selected back out
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			id            TEXT    NOT NULL UNIQUE,
			name          TEXT    NOT NULL,
			username      TEXT    NOT NULL,
			phone         TEXT    NOT NULL DEFAULT '',
			student_class TEXT    NOT NULL DEFAULT '',
			dob           TEXT    NOT NULL DEFAULT '',
			profile_photo TEXT    NOT NULL DEFAULT '',
			password_hash TEXT    NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CreateStudent inserts a new row and assigns it a fresh uuid.
func (s *SQLite) CreateStudent(student types.Student) (types.Student, error) {
	student.ID = uuid.NewString()

	hash, err := hashPassword(student.Password)
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: hash password: %w", err)
	}

	stmt, err := s.Db.Prepare(`
		INSERT INTO students (id, name, username, phone, student_class, dob, profile_photo, password_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: prepare: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(
		student.ID,
		student.Name,
		student.Username,
		student.Phone,
		student.StudentClass,
		student.DOB.String(),
		student.ProfilePhoto,
		hash,
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: exec: %w", err)
	}

	return s.GetStudentByID(student.ID)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (types.Student, error) {
	var (
		student types.Student
		dob     string
	)
	if err := row.Scan(
		&student.ID,
		&student.Name,
		&student.Username,
		&student.Phone,
		&student.StudentClass,
		&dob,
		&student.ProfilePhoto,
	); err != nil {
		return types.Student{}, err
	}

	if dob != "" {
		t, err := time.Parse(types.DateLayout, dob)
		if err != nil {
			return types.Student{}, fmt.Errorf("parse dob %q: %w", dob, err)
		}
		student.DOB = types.Date{Time: t}
	}

	return student, nil
}

const selectColumns = "id, name, username, phone, student_class, dob, profile_photo"

// GetStudentByID fetches exactly one student row matched by id.
func (s *SQLite) GetStudentByID(id string) (types.Student, error) {
	stmt, err := s.Db.Prepare("SELECT " + selectColumns + " FROM students WHERE id = ? LIMIT 1")
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	student, err := scanStudent(stmt.QueryRow(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, &storage.NotFoundError{ID: id}
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: scan: %w", err)
	}

	return student, nil
}

// GetStudents returns all student rows in insertion order.
func (s *SQLite) GetStudents() ([]types.Student, error) {
	stmt, err := s.Db.Prepare("SELECT " + selectColumns + " FROM students ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("GetStudents: prepare: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.Query()
	if err != nil {
		return nil, fmt.Errorf("GetStudents: query: %w", err)
	}
	defer rows.Close()

	students := make([]types.Student, 0)

	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("GetStudents: scan row: %w", err)
		}
		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetStudents: rows iteration: %w", err)
	}

	return students, nil
}

// UpdateStudentByID replaces a student's data with the provided values and
// returns the stored record. The password column only changes when a new
// password is supplied.
func (s *SQLite) UpdateStudentByID(id string, student types.Student) (types.Student, error) {
	hash, err := hashPassword(student.Password)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: hash password: %w", err)
	}

	stmt, err := s.Db.Prepare(`
		UPDATE students
		SET name = ?, username = ?, phone = ?, student_class = ?, dob = ?, profile_photo = ?,
		    password_hash = CASE WHEN ? = '' THEN password_hash ELSE ? END
		WHERE id = ?
	`)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(
		student.Name,
		student.Username,
		student.Phone,
		student.StudentClass,
		student.DOB.String(),
		student.ProfilePhoto,
		hash, hash,
		id,
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: exec: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.Student{}, &storage.NotFoundError{ID: id}
	}

	// Re-fetch the record so we return exactly what is stored in the DB.
	return s.GetStudentByID(id)
}

// PasswordMatches reports whether password is the stored password for id.
// Used by tests and seeding tools; the HTTP surface never exposes it.
func (s *SQLite) PasswordMatches(id, password string) (bool, error) {
	var hash string
	err := s.Db.QueryRow("SELECT password_hash FROM students WHERE id = ?", id).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, &storage.NotFoundError{ID: id}
		}
		return false, fmt.Errorf("PasswordMatches: scan: %w", err)
	}
	if hash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// DeleteStudentByID removes a student row by id.
func (s *SQLite) DeleteStudentByID(id string) error {
	stmt, err := s.Db.Prepare("DELETE FROM students WHERE id = ?")
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(id)
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: exec: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &storage.NotFoundError{ID: id}
	}

	return nil
}
