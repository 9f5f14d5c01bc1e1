package flashes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashfeed/internal/domain/flash"
	"flashfeed/pkg/errors"
	"flashfeed/pkg/logger"
)

type fakeLister struct {
	results  []*flash.Flash
	err      error
	gotSkip  int
	gotLimit int
	called   bool
}

func (l *fakeLister) ListLatest(ctx context.Context, skip, limit int) ([]*flash.Flash, error) {
	l.called = true
	l.gotSkip = skip
	l.gotLimit = limit
	return l.results, l.err
}

func doRequest(t *testing.T, lister *fakeLister, target string) *httptest.ResponseRecorder {
	t.Helper()
	h := New(lister, logger.Get())
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.HandleLatest(rec, req)
	return rec
}

func TestHandleLatest_Defaults(t *testing.T) {
	lister := &fakeLister{results: []*flash.Flash{{ID: "sina_live_1", Content: "news"}}}
	rec := doRequest(t, lister, "/flashes/latest")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, lister.gotSkip)
	assert.Equal(t, 10, lister.gotLimit)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "sina_live_1", body[0]["flash_id"])
}

func TestHandleLatest_ExplicitPagination(t *testing.T) {
	lister := &fakeLister{}
	rec := doRequest(t, lister, "/flashes/latest?skip=5&limit=20")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, lister.gotSkip)
	assert.Equal(t, 20, lister.gotLimit)
}

func TestHandleLatest_EmptyResultIsJSONArray(t *testing.T) {
	rec := doRequest(t, &fakeLister{}, "/flashes/latest")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleLatest_RejectsMalformedParams(t *testing.T) {
	cases := []struct {
		name   string
		target string
	}{
		{"negative skip", "/flashes/latest?skip=-1"},
		{"non-numeric skip", "/flashes/latest?skip=abc"},
		{"zero limit", "/flashes/latest?limit=0"},
		{"limit above cap", "/flashes/latest?limit=101"},
		{"non-numeric limit", "/flashes/latest?limit=ten"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lister := &fakeLister{}
			rec := doRequest(t, lister, tc.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, lister.called)
		})
	}
}

func TestHandleLatest_StoreFailureIsGeneric500(t *testing.T) {
	lister := &fakeLister{err: errors.Wrap(errors.ErrUnavailable, "redis: connection refused")}
	rec := doRequest(t, lister, "/flashes/latest")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis")
	assert.Contains(t, rec.Body.String(), "failed to retrieve flashes")
}

func TestHandleLatest_MethodNotAllowed(t *testing.T) {
	h := New(&fakeLister{}, logger.Get())
	req := httptest.NewRequest(http.MethodPost, "/flashes/latest", nil)
	rec := httptest.NewRecorder()
	h.HandleLatest(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
