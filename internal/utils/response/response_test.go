package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusTeapot, GeneralError(errors.New("boom"))))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, Response{Status: StatusError, Message: "boom"}, got)
}

func TestValidationError(t *testing.T) {
	type form struct {
		Name string `validate:"required"`
		Age  int    `validate:"gte=0"`
	}

	err := validator.New().Struct(form{Age: -1})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	res := ValidationError(verrs)
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, "field Name is required, field Age is invalid", res.Message)
}
