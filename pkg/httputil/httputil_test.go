package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cwrk-planet/messaging-service/pkg/errs"

	"github.com/stretchr/testify/require"
)

func TestMiddlewareRequestID_GeneratesAndForwards(t *testing.T) {
	var seen string
	h := MiddlewareRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "req-42", seen)
}

func TestOK_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"n": 1}, "fetched")

	var resp struct {
		StatusCode int            `json:"statusCode"`
		Data       map[string]int `json:"data"`
		Message    string         `json:"message"`
		Success    bool           `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, resp.Data["n"])
	require.Equal(t, "fetched", resp.Message)
	require.True(t, resp.Success)
}

func TestError_HidesServerErrorText(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(t.Context(), rec, fmt.Errorf("append: %w: dial tcp refused", errs.ErrPersistence))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Nil(t, resp.Data)
	require.Equal(t, "Internal Server Error", resp.Message)
}

func TestError_ClientErrorsAreExplained(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(t.Context(), rec, errors.Join(errs.ErrInvalidInput, errors.New("text is empty")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"invalid input", "text is empty"}, resp.Errors)
}

func TestMiddlewareLogging_RecordsStatus(t *testing.T) {
	h := MiddlewareLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}
