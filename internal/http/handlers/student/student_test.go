package student

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-admin/internal/storage"
	"github.com/aanand-mishra/students-admin/internal/types"
	"github.com/aanand-mishra/students-admin/internal/utils/response"
)

// memStorage is an in-memory storage.Storage for handler tests.
type memStorage struct {
	mu      sync.Mutex
	order   []string
	records map[string]types.Student
	next    int
	updated types.Student
}

func newMemStorage(seed ...types.Student) *memStorage {
	m := &memStorage{records: map[string]types.Student{}}
	for _, s := range seed {
		m.records[s.ID] = s
		m.order = append(m.order, s.ID)
	}
	return m
}

func (m *memStorage) CreateStudent(s types.Student) (types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	s.ID = fmt.Sprintf("new-%d", m.next)
	s.Password = ""
	m.records[s.ID] = s
	m.order = append(m.order, s.ID)
	return s, nil
}

func (m *memStorage) GetStudentByID(id string) (types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[id]
	if !ok {
		return types.Student{}, &storage.NotFoundError{ID: id}
	}
	return s, nil
}

func (m *memStorage) GetStudents() ([]types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Student, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out, nil
}

func (m *memStorage) UpdateStudentByID(id string, s types.Student) (types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return types.Student{}, &storage.NotFoundError{ID: id}
	}
	m.updated = s
	s.Password = ""
	m.records[id] = s
	return s, nil
}

func (m *memStorage) DeleteStudentByID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return &storage.NotFoundError{ID: id}
	}
	delete(m.records, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStorage) lastUpdate() types.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updated
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

func newServer(st storage.Storage) *httptest.Server {
	mux := http.NewServeMux()
	Register(mux, st)
	return httptest.NewServer(mux)
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestGetList(t *testing.T) {
	st := newMemStorage(
		types.Student{ID: "1", Name: "A", Username: "a"},
		types.Student{ID: "2", Name: "B", Username: "b"},
	)
	srv := newServer(st)
	defer srv.Close()

	res := do(t, http.MethodGet, srv.URL+"/students", "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got []types.Student
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "B", got[1].Name)
}

func TestGetListEmptyIsArray(t *testing.T) {
	srv := newServer(newMemStorage())
	defer srv.Close()

	res := do(t, http.MethodGet, srv.URL+"/students", "")
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(body))
}

func TestUpdateMergesFields(t *testing.T) {
	st := newMemStorage(types.Student{ID: "2", Name: "B", Username: "bee", Phone: "555"})
	srv := newServer(st)
	defer srv.Close()

	res := do(t, http.MethodPut, srv.URL+"/students/2", `{"_id":"ignored","name":"C","password":"pw"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got types.Student
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, "2", got.ID)
	assert.Equal(t, "C", got.Name)
	assert.Equal(t, "bee", got.Username)
	assert.Equal(t, "555", got.Phone)
	assert.Empty(t, got.Password)
	assert.Equal(t, "pw", st.lastUpdate().Password)
}

func TestUpdateErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantMsg    string
		exact      bool
	}{
		{
			name:       "unknown id",
			path:       "/students/nope",
			body:       `{"name":"x"}`,
			wantStatus: http.StatusNotFound,
			wantMsg:    "no student found with id: nope",
			exact:      true,
		},
		{
			name:       "empty body",
			path:       "/students/1",
			body:       "",
			wantStatus: http.StatusBadRequest,
			wantMsg:    "request body is empty",
		},
		{
			name:       "required field cleared",
			path:       "/students/1",
			body:       `{"name":""}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "field name is required",
		},
		{
			name:       "bad date",
			path:       "/students/1",
			body:       `{"dob":"yesterday"}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(newMemStorage(types.Student{ID: "1", Name: "A", Username: "a"}))
			defer srv.Close()

			res := do(t, http.MethodPut, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, res.StatusCode)

			var body response.Response
			require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
			assert.Equal(t, response.StatusError, body.Status)
			if tt.exact {
				assert.Equal(t, tt.wantMsg, body.Message)
			} else {
				assert.Contains(t, body.Message, tt.wantMsg)
			}
		})
	}
}

func TestCreateAndDelete(t *testing.T) {
	st := newMemStorage()
	srv := newServer(st)
	defer srv.Close()

	res := do(t, http.MethodPost, srv.URL+"/students", `{"name":"A","username":"a","dob":"2001-02-03"}`)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var created types.Student
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	assert.Equal(t, "new-1", created.ID)
	assert.Equal(t, "2001-02-03", created.DOB.String())

	res = do(t, http.MethodPost, srv.URL+"/students", `{"name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = do(t, http.MethodDelete, srv.URL+"/students/new-1", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Zero(t, st.count())

	res = do(t, http.MethodDelete, srv.URL+"/students/new-1", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestGetByID(t *testing.T) {
	srv := newServer(newMemStorage(types.Student{ID: "1", Name: "A", Username: "a"}))
	defer srv.Close()

	res := do(t, http.MethodGet, srv.URL+"/students/1", "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = do(t, http.MethodGet, srv.URL+"/students/2", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	var body response.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "no student found with id: 2", body.Message)
}
