package httpx

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline/fabline/internal/shared"
)

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: order", shared.ErrNotFound), http.StatusNotFound},
		{shared.Validationf("parts required"), http.StatusBadRequest},
		{fmt.Errorf("%w: pending to delivered", shared.ErrInvalidTransition), http.StatusBadRequest},
		{fmt.Errorf("%w: 90 vs 100", shared.ErrAmountMismatch), http.StatusBadRequest},
		{fmt.Errorf("%w: quotation consumed", shared.ErrConcurrencyConflict), http.StatusConflict},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{shared.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: gateway down", shared.ErrDependency), http.StatusBadGateway},
		{fmt.Errorf("%w: insert order: boom", shared.ErrPersistence), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, tc.status, StatusFor(tc.err))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Status)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("%w: dial tcp 10.0.0.5:5432", shared.ErrPersistence))
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestRespondErrorShowsInternalDetailWhenExposed(t *testing.T) {
	ExposeInternalErrors(true)
	t.Cleanup(func() { ExposeInternalErrors(false) })

	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("%w: insert order: duplicate key", shared.ErrPersistence))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Detail, "insert order: duplicate key")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	var target struct {
		Name string `json:"name"`
	}
	err := DecodeJSON(req, &target)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCommitRunsAfterResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	var bodyAtCallback string
	Commit(rec, http.StatusCreated, map[string]string{"id": "x"}, func() {
		bodyAtCallback = rec.Body.String()
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, bodyAtCallback, `"id":"x"`)
	assert.True(t, rec.Flushed)
}

func TestPartContentTypeFallsBackToExtension(t *testing.T) {
	h := &multipart.FileHeader{Filename: "drawing.PDF", Header: textproto.MIMEHeader{}}
	assert.Equal(t, "application/pdf", PartContentType(h))

	h.Header.Set("Content-Type", "application/octet-stream")
	assert.Equal(t, "application/pdf", PartContentType(h))

	h.Header.Set("Content-Type", "image/png")
	assert.Equal(t, "image/png", PartContentType(h))

	unknown := &multipart.FileHeader{Filename: "part.xyz123", Header: textproto.MIMEHeader{}}
	assert.Equal(t, "application/octet-stream", PartContentType(unknown))
}
