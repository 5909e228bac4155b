package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteOK(w, map[string]string{"text": "hi"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]interface{}{"text": "hi"}, resp.Data)
}

func TestWriteErrors(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter) error
		wantStatus int
		wantError  string
		wantMsg    string
	}{
		{"bad request", func(w http.ResponseWriter) error { return WriteBadRequest(w, "bad", nil) }, http.StatusBadRequest, "bad_request", "bad"},
		{"unauthorized default", func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") }, http.StatusUnauthorized, "unauthorized", "Authentication required"},
		{"forbidden default", func(w http.ResponseWriter) error { return WriteForbidden(w, "") }, http.StatusForbidden, "forbidden", "Access forbidden"},
		{"not found", func(w http.ResponseWriter) error { return WriteNotFound(w, "") }, http.StatusNotFound, "not_found", "Resource not found"},
		{"internal", func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") }, http.StatusInternalServerError, "internal_error", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestWriteAttachment(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteAttachment(w, "ai_response.txt", []byte("payload")))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=ai_response.txt`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "7", w.Header().Get("Content-Length"))
	assert.Equal(t, "payload", w.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Query string `json:"query"`
	}

	t.Run("valid", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"hi"}`))
		require.NoError(t, DecodeJSON(r, &b, 1024))
		assert.Equal(t, "hi", b.Query)
	})

	t.Run("unknown field", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"prompt":"hi"}`))
		assert.Error(t, DecodeJSON(r, &b, 1024))
	})

	t.Run("empty", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		assert.EqualError(t, DecodeJSON(r, &b, 1024), "request body is empty")
	})

	t.Run("too large", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"`+strings.Repeat("x", 100)+`"}`))
		assert.ErrorIs(t, DecodeJSON(r, &b, 16), ErrBodyTooLarge)
	})
}

func TestReadText(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain question"))
	text, err := ReadText(r, 1024)
	require.NoError(t, err)
	assert.Equal(t, "plain question", text)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
	_, err = ReadText(r, 8)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}
