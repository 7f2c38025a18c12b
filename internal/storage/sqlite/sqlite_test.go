package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-admin/internal/storage"
	"github.com/aanand-mishra/students-admin/internal/types"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateAndGet(t *testing.T) {
	db := newTestDB(t)

	created, err := db.CreateStudent(types.Student{
		Name:         "Ana",
		Username:     "ana",
		Phone:        "555",
		StudentClass: "7B",
		DOB:          types.NewDate(2010, time.May, 6),
		Password:     "pw",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Empty(t, created.Password, "password must never be read back")

	got, err := db.GetStudentByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, "2010-05-06", got.DOB.String())

	ok, err := db.PasswordMatches(created.ID, "pw")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetStudentsKeepsInsertionOrder(t *testing.T) {
	db := newTestDB(t)

	empty, err := db.GetStudents()
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, name := range []string{"c", "a", "b"} {
		_, err := db.CreateStudent(types.Student{Name: name, Username: name})
		require.NoError(t, err)
	}

	all, err := db.GetStudents()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Name)
	assert.Equal(t, "a", all[1].Name)
	assert.Equal(t, "b", all[2].Name)
}

func TestUpdateKeepsPasswordWhenEmpty(t *testing.T) {
	db := newTestDB(t)

	created, err := db.CreateStudent(types.Student{Name: "A", Username: "a", Password: "old"})
	require.NoError(t, err)

	created.Name = "B"
	updated, err := db.UpdateStudentByID(created.ID, created)
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Name)

	ok, err := db.PasswordMatches(created.ID, "old")
	require.NoError(t, err)
	assert.True(t, ok)

	updated.Password = "new"
	_, err = db.UpdateStudentByID(created.ID, updated)
	require.NoError(t, err)

	ok, err = db.PasswordMatches(created.ID, "new")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetStudentByID("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = db.UpdateStudentByID("missing", types.Student{Name: "x", Username: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = db.DeleteStudentByID("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.EqualError(t, err, "no student found with id: missing")

	var nf *storage.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.ID)
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)

	a, err := db.CreateStudent(types.Student{Name: "A", Username: "a"})
	require.NoError(t, err)
	b, err := db.CreateStudent(types.Student{Name: "B", Username: "b"})
	require.NoError(t, err)

	require.NoError(t, db.DeleteStudentByID(a.ID))

	all, err := db.GetStudents()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)
}
